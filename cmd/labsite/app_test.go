package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/labsite-api/internal/models"
	"github.com/noah-isme/labsite-api/internal/service"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/config"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/storage"
	"github.com/noah-isme/labsite-api/web"
)

const testAdmin = "admin@moleculargeneticslab.cl"

type memoryPublications struct {
	rows []models.Publication
}

func (m *memoryPublications) List(context.Context) ([]models.Publication, error) {
	return append([]models.Publication(nil), m.rows...), nil
}

func (m *memoryPublications) Create(_ context.Context, in models.PublicationInsert) (*models.Publication, error) {
	now := time.Now().UTC()
	p := models.Publication{ID: "pub-1", Title: in.Title, Abstract: in.Abstract, Year: in.Year, Authors: in.Authors, PDFURL: in.PDFURL, CreatedAt: now, UpdatedAt: now, CreatedBy: in.CreatedBy}
	m.rows = append(m.rows, p)
	return &p, nil
}

func (m *memoryPublications) Delete(_ context.Context, id string) error {
	kept := m.rows[:0]
	for _, p := range m.rows {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	m.rows = kept
	return nil
}

type stubIdentity struct{}

func (stubIdentity) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	if password != "correct-horse" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.Identity{ID: "admin-1", Email: email}, nil
}

type discardStore struct{}

func (discardStore) Put(_ context.Context, obj storage.Object) (string, error) {
	return "https://cdn.example.com/" + obj.Bucket + "/" + obj.Key, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: "test", APIPrefix: "/api/v1", Admin: config.AdminConfig{Emails: []string{testAdmin}}}

	resolver := i18n.NewResolver(i18n.FSSource{FS: web.Locales()}, i18n.Options{})
	require.NoError(t, resolver.Load(context.Background()))
	templates, err := web.Templates(nil)
	require.NoError(t, err)

	metrics := service.NewMetricsService()
	policy := service.NewEmailPolicy(cfg.Admin.Emails...)
	return newRouter(cfg, zap.NewNop(), routerDeps{
		resolver:     resolver,
		metrics:      metrics,
		policy:       policy,
		auth:         service.NewAuthService(stubIdentity{}, policy, resolver, nil, nil, nil, service.AuthConfig{AccessTokenSecret: "test-secret", Issuer: "labsite-test"}),
		publications: service.NewPublicationService(&memoryPublications{}, discardStore{}, nil, metrics, nil, nil, service.PublicationConfig{}),
		consent:      service.NewConsentService(0, nil, metrics, nil),
		templates:    templates,
	})
}

func login(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Email: testAdmin, Password: "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken
}

func TestRouterHealthAndPages(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/ready", "/", "/cookie-policy", "/api/v1/language", "/api/v1/consent"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterAdminRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/publications/pub-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterLoginRejectsUnlistedEmail(t *testing.T) {
	router := newTestRouter(t)
	body, _ := json.Marshal(models.LoginRequest{Email: "intruder@example.com", Password: "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login?lang=en", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Email not authorized to upload publications")
}

func TestRouterAdminCreateThenList(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	body, _ := json.Marshal(models.PublicationInsert{Title: "Genome", Abstract: "a", Year: 2024, Authors: "Rivera, A.", PDFURL: "https://cdn.example.com/g.pdf"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/publications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"created_by":"admin-1"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/publications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/publications/pub-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterBrowserAdminSession(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)
	body, _ := json.Marshal(models.PublicationInsert{Title: "Genome", Abstract: "a", Year: 2024, Authors: "Rivera, A.", PDFURL: "https://cdn.example.com/g.pdf"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/publications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	form := url.Values{"email": {testAdmin}, "password": {"correct-horse"}}
	req = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	var session *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "labsite-admin-session" {
			session = cookie
		}
	}
	require.NotNil(t, session)

	req = httptest.NewRequest(http.MethodGet, "/publications", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/api/v1/publications/pub-1/delete"`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/publications/pub-1/delete", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.AddCookie(session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/publications?status=deleted", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/publications", nil))
	assert.Contains(t, w.Body.String(), `"total":0`)
}
