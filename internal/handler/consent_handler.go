package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/models"
	"github.com/noah-isme/labsite-api/internal/repository"
	"github.com/noah-isme/labsite-api/internal/service"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

// BannerHiddenCookie remembers a dismissed banner for the browser session only.
const BannerHiddenCookie = "lab-patagonia-cookie-banner-hidden"

// ConsentCookies binds the consent service to the visitor's cookies.
type ConsentCookies struct {
	service *service.ConsentService
	opts    repository.CookieOptions
}

// NewConsentCookies constructs the binding.
func NewConsentCookies(svc *service.ConsentService, opts repository.CookieOptions) *ConsentCookies {
	return &ConsentCookies{service: svc, opts: opts}
}

func (cc *ConsentCookies) store(c *gin.Context) *repository.CookieStore {
	return repository.NewCookieStore(c.Request, c.Writer, cc.opts)
}

// Load returns the consent state of the current request, honouring a banner
// dismissed earlier in the session.
func (cc *ConsentCookies) Load(c *gin.Context) models.ConsentState {
	state := cc.service.Load(cc.store(c))
	if state.ShowBanner {
		if _, err := c.Cookie(BannerHiddenCookie); err == nil {
			state.ShowBanner = false
		}
	}
	return state
}

func (cc *ConsentCookies) hideForSession(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     BannerHiddenCookie,
		Value:    "1",
		Path:     "/",
		Domain:   cc.opts.Domain,
		Secure:   cc.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cc *ConsentCookies) clearHidden(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     BannerHiddenCookie,
		Value:    "",
		Path:     "/",
		Domain:   cc.opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsentHandler exposes the cookie consent lifecycle.
type ConsentHandler struct {
	cookies  *ConsentCookies
	resolver *i18n.Resolver
}

// NewConsentHandler constructs the handler.
func NewConsentHandler(cookies *ConsentCookies, resolver *i18n.Resolver) *ConsentHandler {
	return &ConsentHandler{cookies: cookies, resolver: resolver}
}

// State godoc
// @Summary Current consent state
// @Tags Consent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consent [get]
func (h *ConsentHandler) State(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.cookies.Load(c))
}

// Accept godoc
// @Summary Accept all cookies
// @Tags Consent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consent/accept [post]
func (h *ConsentHandler) Accept(c *gin.Context) {
	state := h.cookies.service.AcceptAll(h.cookies.store(c))
	h.cookies.clearHidden(c)
	h.respond(c, state)
}

// Reject godoc
// @Summary Reject optional cookies
// @Tags Consent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consent/reject [post]
func (h *ConsentHandler) Reject(c *gin.Context) {
	state := h.cookies.service.RejectAll(h.cookies.store(c))
	h.cookies.clearHidden(c)
	h.respond(c, state)
}

// UpdatePreferences godoc
// @Summary Save granular preferences
// @Description Essential cookies are always enabled
// @Tags Consent
// @Accept json
// @Produce json
// @Param payload body dto.UpdateConsentRequest true "Categories"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /consent/preferences [post]
func (h *ConsentHandler) UpdatePreferences(c *gin.Context) {
	var req dto.UpdateConsentRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.resolver, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid consent payload"))
		return
	}

	state := h.cookies.service.UpdatePreferences(h.cookies.store(c), models.ConsentRecord{
		Essential:   true,
		Analytics:   req.Analytics,
		Preferences: req.Preferences,
	})
	h.cookies.clearHidden(c)
	h.respond(c, state)
}

// Reset godoc
// @Summary Forget the consent decision
// @Tags Consent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consent/reset [post]
func (h *ConsentHandler) Reset(c *gin.Context) {
	state := h.cookies.service.Reset(h.cookies.store(c))
	h.cookies.clearHidden(c)
	h.respond(c, state)
}

// Hide godoc
// @Summary Dismiss the banner without deciding
// @Tags Consent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /consent/hide [post]
func (h *ConsentHandler) Hide(c *gin.Context) {
	state := h.cookies.service.HideBanner(h.cookies.store(c))
	h.cookies.hideForSession(c)
	h.respond(c, state)
}

func (h *ConsentHandler) respond(c *gin.Context, state models.ConsentState) {
	if wantsHTML(c) {
		redirectBack(c)
		return
	}
	response.JSON(c, http.StatusOK, state)
}
