package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest, lang string) (*models.LoginResponse, error)
	Logout(ctx context.Context, claims *models.JWTClaims) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service  authService
	resolver *i18n.Resolver
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, resolver *i18n.Resolver) *AuthHandler {
	return &AuthHandler{service: svc, resolver: resolver}
}

// Login godoc
// @Summary Administrator sign-in
// @Description Authenticate an authorized administrator by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.resolver, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	// Messages coming back from Login are already localized or carry the backend text.
	res, err := h.service.Login(c.Request.Context(), req, requestLanguage(c, h.resolver))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the presented access token until it expires
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		respondError(c, h.resolver, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, h.resolver, err)
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Current administrator
// @Description Return the identity carried by the access token
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		respondError(c, h.resolver, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, models.Identity{ID: claims.Subject, Email: claims.Email})
}
