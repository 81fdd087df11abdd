package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/middleware"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

// LanguageHandler serves the language selector and the raw dictionaries.
type LanguageHandler struct {
	resolver   *i18n.Resolver
	negotiator *middleware.LanguageNegotiator
}

// NewLanguageHandler constructs the handler.
func NewLanguageHandler(resolver *i18n.Resolver, negotiator *middleware.LanguageNegotiator) *LanguageHandler {
	return &LanguageHandler{resolver: resolver, negotiator: negotiator}
}

// Current godoc
// @Summary Active language
// @Description Returns the negotiated language and the selector options
// @Tags Language
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /language [get]
func (h *LanguageHandler) Current(c *gin.Context) {
	lang := requestLanguage(c, h.resolver)
	response.JSON(c, http.StatusOK, dto.LanguageResponse{Language: lang, Options: h.resolver.Options(lang)})
}

// Set godoc
// @Summary Switch language
// @Description Persists the choice in the preferred-language cookie
// @Tags Language
// @Accept json
// @Produce json
// @Param payload body dto.SetLanguageRequest true "Language"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /language [put]
func (h *LanguageHandler) Set(c *gin.Context) {
	var req dto.SetLanguageRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.resolver, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid language payload"))
		return
	}
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if !h.negotiator.Supports(lang) {
		respondError(c, h.resolver, appErrors.Clone(appErrors.ErrValidation, "unsupported language"))
		return
	}

	h.negotiator.Persist(c.Writer, lang)
	middleware.SetCurrentLanguage(c, lang)
	if wantsHTML(c) {
		redirectBack(c)
		return
	}
	response.JSON(c, http.StatusOK, dto.LanguageResponse{Language: lang, Options: h.resolver.Options(lang)})
}

// Dictionary godoc
// @Summary Raw translation dictionary
// @Tags Language
// @Produce json
// @Param lang path string true "Language code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /i18n/{lang} [get]
func (h *LanguageHandler) Dictionary(c *gin.Context) {
	if !h.resolver.Ready() {
		respondError(c, h.resolver, appErrors.ErrNotReady)
		return
	}
	dict, ok := h.resolver.Dictionary(c.Param("lang"))
	if !ok {
		respondError(c, h.resolver, appErrors.Clone(appErrors.ErrNotFound, "language not found"))
		return
	}
	response.JSON(c, http.StatusOK, dict)
}
