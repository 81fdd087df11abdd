package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/middleware"
	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/web"
)

func loadedResolver(t *testing.T) *i18n.Resolver {
	t.Helper()
	resolver := i18n.NewResolver(i18n.FSSource{FS: web.Locales()}, i18n.Options{})
	require.NoError(t, resolver.Load(context.Background()))
	return resolver
}

type publicationServiceMock struct {
	items      []models.Publication
	cacheHit   bool
	err        error
	published  *dto.PublishRequest
	pdfBody    string
	uploadKind models.FileKind
	created    *models.PublicationInsert
	deleted    string
	exportFmt  string
}

func (m *publicationServiceMock) ListWithMeta(context.Context) ([]models.Publication, bool, error) {
	return m.items, m.cacheHit, m.err
}

func (m *publicationServiceMock) List(context.Context) ([]models.Publication, error) {
	return m.items, m.err
}

func (m *publicationServiceMock) Get(_ context.Context, id string) (*models.Publication, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
}

func (m *publicationServiceMock) Create(_ context.Context, in models.PublicationInsert) (*models.Publication, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &in
	return &models.Publication{ID: "pub-1", Title: in.Title, Year: in.Year, PDFURL: in.PDFURL, CreatedBy: in.CreatedBy}, nil
}

func (m *publicationServiceMock) Publish(_ context.Context, req dto.PublishRequest) (*models.Publication, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.published = &req
	if req.PDF != nil {
		body, _ := io.ReadAll(req.PDF.Body)
		m.pdfBody = string(body)
	}
	return &models.Publication{ID: "pub-2", Title: req.Form.Title}, nil
}

func (m *publicationServiceMock) UploadFile(_ context.Context, kind models.FileKind, file dto.FileUpload, _ string) (*models.UploadedFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploadKind = kind
	return &models.UploadedFile{Kind: kind, URL: "https://cdn.example.com/" + file.Name}, nil
}

func (m *publicationServiceMock) Delete(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *publicationServiceMock) Export(_ context.Context, format, _ string) ([]byte, string, error) {
	if format != "csv" && format != "pdf" {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	m.exportFmt = format
	return []byte("year,authors"), "text/csv", nil
}

func newPublicationContext(method, target string, body io.Reader, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestPublicationHandlerListIncludesCacheMeta(t *testing.T) {
	svc := &publicationServiceMock{items: []models.Publication{{ID: "a"}, {ID: "b"}}, cacheHit: true}
	handler := NewPublicationHandler(svc, nil)
	c, w := newPublicationContext(http.MethodGet, "/api/v1/publications", nil, "")

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	payload := decodeEnvelope(t, w)
	data := payload["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["total"])
	assert.Equal(t, true, payload["meta"].(map[string]interface{})["cache_hit"])
}

func TestPublicationHandlerListEmptyIsArray(t *testing.T) {
	handler := NewPublicationHandler(&publicationServiceMock{items: []models.Publication{}}, nil)
	c, w := newPublicationContext(http.MethodGet, "/api/v1/publications", nil, "")

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestPublicationHandlerListLocalizesBackendError(t *testing.T) {
	svc := &publicationServiceMock{err: appErrors.Wrap(errors.New("connection refused"), appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "error fetching publications")}
	handler := NewPublicationHandler(svc, loadedResolver(t))
	c, w := newPublicationContext(http.MethodGet, "/api/v1/publications?lang=fr", nil, "")
	middleware.SetCurrentLanguage(c, "fr")

	handler.List(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "BACKEND_ERROR", body["code"])
	assert.Equal(t, "Impossible de charger les données. Veuillez réessayer.", body["message"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestPublicationHandlerGetNotFoundIsLocalized(t *testing.T) {
	handler := NewPublicationHandler(&publicationServiceMock{}, loadedResolver(t))
	c, w := newPublicationContext(http.MethodGet, "/api/v1/publications/missing", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	middleware.SetCurrentLanguage(c, "en")

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Resource not found")
}

const adminSubject = "8d1f7a8e-2c41-4a43-9d2b-3c6a1f0e5b77"

func adminClaims() *models.JWTClaims {
	claims := &models.JWTClaims{Email: "admin@moleculargeneticslab.cl"}
	claims.Subject = adminSubject
	return claims
}

func TestPublicationHandlerCreateStampsAuthor(t *testing.T) {
	svc := &publicationServiceMock{}
	handler := NewPublicationHandler(svc, nil)
	spoofed := "someone-else"
	body, _ := json.Marshal(models.PublicationInsert{Title: "Genome", Abstract: "a", Year: 2024, Authors: "A", PDFURL: "https://cdn.example.com/g.pdf", CreatedBy: &spoofed})
	c, w := newPublicationContext(http.MethodPost, "/api/v1/publications", bytes.NewReader(body), "application/json")
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	require.NotNil(t, svc.created.CreatedBy)
	assert.Equal(t, adminSubject, *svc.created.CreatedBy)
}

func TestPublicationHandlerCreateRejectsInvalidJSON(t *testing.T) {
	handler := NewPublicationHandler(&publicationServiceMock{}, nil)
	c, w := newPublicationContext(http.MethodPost, "/api/v1/publications", bytes.NewReader([]byte("invalid")), "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicationHandlerPublishMultipart(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "Genome study"))
	require.NoError(t, writer.WriteField("abstract", "Abstract"))
	require.NoError(t, writer.WriteField("year", "2024"))
	require.NoError(t, writer.WriteField("authors", "Rivera, A."))
	part, err := writer.CreateFormFile("pdf", "paper.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	svc := &publicationServiceMock{}
	handler := NewPublicationHandler(svc, nil)
	c, w := newPublicationContext(http.MethodPost, "/api/v1/publications/publish", &buf, writer.FormDataContentType())
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Publish(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.published)
	assert.Equal(t, 2024, svc.published.Form.Year)
	require.NotNil(t, svc.published.PDF)
	assert.Equal(t, "paper.pdf", svc.published.PDF.Name)
	assert.Nil(t, svc.published.Image)
	assert.Equal(t, "%PDF-1.4", svc.pdfBody)
	assert.Equal(t, adminSubject, svc.published.CreatedBy)
}

func TestPublicationHandlerUploadRequiresFile(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("kind", "pdf"))
	require.NoError(t, writer.Close())

	handler := NewPublicationHandler(&publicationServiceMock{}, nil)
	c, w := newPublicationContext(http.MethodPost, "/api/v1/publications/files", &buf, writer.FormDataContentType())

	handler.UploadFile(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicationHandlerUploadFile(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("kind", "image"))
	part, err := writer.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, writer.Close())

	svc := &publicationServiceMock{}
	handler := NewPublicationHandler(svc, nil)
	c, w := newPublicationContext(http.MethodPost, "/api/v1/publications/files", &buf, writer.FormDataContentType())

	handler.UploadFile(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.FileKindImage, svc.uploadKind)
}

func newDeleteRouter(svc *publicationServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewPublicationHandler(svc, nil)
	router := gin.New()
	router.DELETE("/api/v1/publications/:id", handler.Delete)
	router.POST("/api/v1/publications/:id/delete", handler.Delete)
	return router
}

func TestPublicationHandlerDelete(t *testing.T) {
	svc := &publicationServiceMock{}
	w := httptest.NewRecorder()
	newDeleteRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/publications/pub-1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "pub-1", svc.deleted)
}

func TestPublicationHandlerDeleteFromBrowserRedirects(t *testing.T) {
	svc := &publicationServiceMock{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/publications/pub-1/delete", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	newDeleteRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/publications?status=deleted", w.Header().Get("Location"))
	assert.Equal(t, "pub-1", svc.deleted)

	svc = &publicationServiceMock{err: appErrors.ErrBackend}
	w = httptest.NewRecorder()
	newDeleteRouter(svc).ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/publications?error=BACKEND_ERROR", w.Header().Get("Location"))
}

func TestPublicationHandlerExport(t *testing.T) {
	svc := &publicationServiceMock{}
	handler := NewPublicationHandler(svc, loadedResolver(t))

	c, w := newPublicationContext(http.MethodGet, "/api/v1/publications/export?format=CSV", nil, "")
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", svc.exportFmt)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "publications.csv")

	c, w = newPublicationContext(http.MethodGet, "/api/v1/publications/export?format=docx", nil, "")
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
