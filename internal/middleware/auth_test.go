package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/session"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	got    string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (*models.JWTClaims, error) {
	s.got = token
	return s.claims, s.err
}

func protectedRouter(v *stubValidator, policy func(string) bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", JWT(v), RequireAdmin(policy), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.Email)
	})
	return router
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	router := protectedRouter(&stubValidator{}, func(string) bool { return true })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	router := protectedRouter(&stubValidator{}, func(string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	v := &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token revoked")}
	router := protectedRouter(v, func(string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token revoked")
	assert.Equal(t, "abc", v.got)
}

func TestRequireAdminChecksPolicy(t *testing.T) {
	v := &stubValidator{claims: &models.JWTClaims{Email: "someone@example.com"}}
	policy := func(email string) bool { return email == "admin@moleculargeneticslab.cl" }

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	protectedRouter(v, policy).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	v.claims = &models.JWTClaims{Email: "admin@moleculargeneticslab.cl"}
	rec = httptest.NewRecorder()
	protectedRouter(v, policy).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@moleculargeneticslab.cl", rec.Body.String())
}

func TestJWTAttachesBackendSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := &stubValidator{claims: &models.JWTClaims{Email: "admin@moleculargeneticslab.cl", BackendSession: "admin-session-jwt"}}
	router := gin.New()
	router.GET("/admin", JWT(v), func(c *gin.Context) {
		c.String(http.StatusOK, session.Token(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-session-jwt", rec.Body.String())
}

func TestJWTAcceptsAdminSessionCookie(t *testing.T) {
	v := &stubValidator{claims: &models.JWTClaims{Email: "admin@moleculargeneticslab.cl"}}
	router := protectedRouter(v, func(string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie-token", v.got)
}

func TestAdminCookieIsStrictAndHTTPOnly(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminCookie{Secure: true}.Set(rec, "token", 600)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AdminSessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, 600, cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	AdminCookie{}.Clear(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
