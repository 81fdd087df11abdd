package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/storage"
)

type fakePublicationRepo struct {
	rows      []models.Publication
	listErr   error
	createErr error
	deleteErr error
	listCalls int
	clock     time.Time
	seq       int
}

func (f *fakePublicationRepo) List(context.Context) ([]models.Publication, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Publication, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakePublicationRepo) Create(_ context.Context, in models.PublicationInsert) (*models.Publication, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	f.clock = f.clock.Add(time.Minute)
	p := models.Publication{
		ID: fmt.Sprintf("pub-%d", f.seq), Title: in.Title, Abstract: in.Abstract, Year: in.Year, Authors: in.Authors,
		Journal: in.Journal, DOI: in.DOI, PDFURL: in.PDFURL, ImageURL: in.ImageURL, CreatedAt: f.clock, UpdatedAt: f.clock,
	}
	f.rows = append(f.rows, p)
	return &p, nil
}

func (f *fakePublicationRepo) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[:0]
	for _, p := range f.rows {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.rows = kept
	return nil
}

type fakeObjectStore struct {
	objects map[string]string
	failOn  string
}

func (f *fakeObjectStore) Put(_ context.Context, obj storage.Object) (string, error) {
	if f.failOn != "" && f.failOn == obj.Bucket {
		return "", errors.New("bucket not found")
	}
	body, _ := io.ReadAll(obj.Body)
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[obj.Bucket+"/"+obj.Key] = string(body)
	return "https://cdn.example.com/" + obj.Bucket + "/" + obj.Key, nil
}

type memoryCacheRepo struct {
	values    map[string][]byte
	deleteErr error
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.values[key]
	return ok, nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func newPublicationFixture(t *testing.T) (*PublicationService, *fakePublicationRepo, *fakeObjectStore) {
	t.Helper()
	repo := &fakePublicationRepo{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := &fakeObjectStore{}
	metrics := NewMetricsService()
	cache := NewCacheService(&memoryCacheRepo{values: map[string][]byte{}}, metrics, time.Minute, nil, true)
	svc := NewPublicationService(repo, store, cache, metrics, nil, nil, PublicationConfig{MaxPDFBytes: 1024, MaxImageBytes: 1024})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	svc.random = func() string { return "r4nd0m" }
	return svc, repo, store
}

func pdfUpload(name string) *dto.FileUpload {
	return &dto.FileUpload{Name: name, ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")}
}

func TestPublicationListEmpty(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)

	publications, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, publications)
	assert.Empty(t, publications)
}

func TestPublicationListOrdersByYearThenCreation(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.rows = []models.Publication{
		{ID: "a", Year: 2020, CreatedAt: base},
		{ID: "b", Year: 2024, CreatedAt: base},
		{ID: "c", Year: 2024, CreatedAt: base.Add(time.Hour)},
		{ID: "d", Year: 2022, CreatedAt: base},
	}

	publications, err := svc.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(publications))
	for _, p := range publications {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestPublicationListUsesCacheUntilMutation(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.Create(ctx, models.PublicationInsert{Title: "X", Abstract: "a", Year: 2024, Authors: "A", PDFURL: "https://cdn.example.com/x.pdf"})
	require.NoError(t, err)
	publications, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	require.Len(t, publications, 1)
}

func TestPublicationListBackendError(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	repo.listErr = errors.New("connection refused")

	_, err := svc.List(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBackend.Code, appErr.Code)
	assert.Equal(t, "error fetching publications", appErr.Message)
	assert.NotContains(t, appErr.Message, "connection refused")
	assert.ErrorContains(t, appErr.Err, "connection refused")
}

func TestPublicationCreateValidatesRequiredFields(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)

	_, err := svc.Create(context.Background(), models.PublicationInsert{Title: "X", Year: 2024, Authors: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rows)
}

func TestPublicationCreateThenListPlacesByYear(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	repo.rows = []models.Publication{
		{ID: "old", Year: 2025, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "older", Year: 2019, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	created, err := svc.Create(context.Background(), models.PublicationInsert{Title: "X", Abstract: "a", Year: 2024, Authors: "A", PDFURL: "https://cdn.example.com/x.pdf"})
	require.NoError(t, err)

	publications, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, publications, 3)
	assert.Equal(t, "old", publications[0].ID)
	assert.Equal(t, created.ID, publications[1].ID)
}

func TestPublicationDeleteThenList(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	repo.rows = []models.Publication{{ID: "keep", Year: 2024}, {ID: "drop", Year: 2023}}
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "drop"))

	publications, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, publications, 1)
	assert.Equal(t, "keep", publications[0].ID)

	_, err = svc.Get(ctx, "drop")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPublicationDeleteSurfacesBackendError(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	repo.deleteErr = errors.New("row level security")

	err := svc.Delete(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBackend.Code, appErrors.FromError(err).Code)
}

func TestUploadFileNaming(t *testing.T) {
	svc, _, store := newPublicationFixture(t)

	uploaded, err := svc.UploadFile(context.Background(), models.FileKindPDF, *pdfUpload("Paper.PDF"), "  Genética: ¿Trucha & Salmón? 2024!  ")
	require.NoError(t, err)
	assert.Equal(t, "publications-pdfs", uploaded.Bucket)
	assert.Equal(t, "pdfs/genetica-trucha-salmon-2024-1700000000000-r4nd0m.pdf", uploaded.Key)
	assert.Equal(t, "https://cdn.example.com/publications-pdfs/"+uploaded.Key, uploaded.URL)
	assert.Contains(t, store.objects, "publications-pdfs/"+uploaded.Key)
}

func TestUploadFileEmptySlugFallsBack(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)

	uploaded, err := svc.UploadFile(context.Background(), models.FileKindImage,
		dto.FileUpload{Name: "cover.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}, "¡¿...?!")
	require.NoError(t, err)
	assert.Equal(t, "publications-images", uploaded.Bucket)
	assert.Equal(t, "images/publication-1700000000000-r4nd0m.png", uploaded.Key)
}

func TestUploadFileRejections(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, models.FileKind("video"), *pdfUpload("a.pdf"), "t")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UploadFile(ctx, models.FileKindPDF, dto.FileUpload{Name: "a.pdf", Size: 2048, Body: strings.NewReader("x")}, "t")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UploadFile(ctx, models.FileKindPDF, *pdfUpload("a.docx"), "t")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublishAbortsBeforeInsertWhenUploadFails(t *testing.T) {
	svc, repo, store := newPublicationFixture(t)
	store.failOn = "publications-pdfs"

	_, err := svc.Publish(context.Background(), dto.PublishRequest{
		Form: dto.PublicationForm{Title: "X", Abstract: "a", Year: 2024, Authors: "A"},
		PDF:  pdfUpload("x.pdf"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUploadFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rows)
}

func TestPublishImageFailureLeavesNoRecord(t *testing.T) {
	svc, repo, store := newPublicationFixture(t)
	store.failOn = "publications-images"

	_, err := svc.Publish(context.Background(), dto.PublishRequest{
		Form:  dto.PublicationForm{Title: "X", Abstract: "a", Year: 2024, Authors: "A"},
		PDF:   pdfUpload("x.pdf"),
		Image: &dto.FileUpload{Name: "x.png", ContentType: "image/png", Body: strings.NewReader("png")},
	})
	require.Error(t, err)
	assert.Empty(t, repo.rows)
	assert.Len(t, store.objects, 1)
}

func TestPublishInsertFailureKeepsUploadedFile(t *testing.T) {
	svc, repo, store := newPublicationFixture(t)
	repo.createErr = errors.New("duplicate key value")

	_, err := svc.Publish(context.Background(), dto.PublishRequest{
		Form: dto.PublicationForm{Title: "X", Abstract: "a", Year: 2024, Authors: "A"},
		PDF:  pdfUpload("x.pdf"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBackend.Code, appErrors.FromError(err).Code)
	assert.Len(t, store.objects, 1)
}

func TestPublishSuccess(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)

	created, err := svc.Publish(context.Background(), dto.PublishRequest{
		Form:      dto.PublicationForm{Title: "Huemul", Abstract: "a", Year: 2023, Authors: "A", Journal: " Genes ", DOI: ""},
		PDF:       pdfUpload("x.pdf"),
		Image:     &dto.FileUpload{Name: "x.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpg")},
		CreatedBy: "admin-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "pub-1", created.ID)
	require.NotNil(t, created.Journal)
	assert.Equal(t, "Genes", *created.Journal)
	assert.Nil(t, created.DOI)
	require.NotNil(t, created.ImageURL)
	assert.Contains(t, *created.ImageURL, "images/huemul-")
}

func TestPublishRequiresPDF(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)

	_, err := svc.Publish(context.Background(), dto.PublishRequest{Form: dto.PublicationForm{Title: "X", Abstract: "a", Year: 2024, Authors: "A"}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportFormats(t *testing.T) {
	svc, repo, _ := newPublicationFixture(t)
	repo.rows = []models.Publication{{ID: "a", Title: "T", Authors: "A", Year: 2024, PDFURL: "https://x/a.pdf"}}

	out, contentType, err := svc.Export(context.Background(), "csv", "Publicaciones")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(out), "2024,A,T,,,https://x/a.pdf")

	_, contentType, err = svc.Export(context.Background(), "pdf", "Publicaciones")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)

	_, _, err = svc.Export(context.Background(), "xml", "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "estructura-genetica-del-huemul", Slugify("Estructura genética del huemul"))
	assert.Equal(t, "publication", Slugify(""))
	assert.Equal(t, "publication", Slugify("---"))
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("a b ", 100))), maxSlugLength)
}

func TestPublicationListWithMetaReportsCacheHit(t *testing.T) {
	svc, _, _ := newPublicationFixture(t)
	ctx := context.Background()

	_, hit, err := svc.ListWithMeta(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.ListWithMeta(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestPublicationListBypassesCacheWhenInvalidationFails(t *testing.T) {
	repo := &fakePublicationRepo{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cacheRepo := &memoryCacheRepo{values: map[string][]byte{}}
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewPublicationService(repo, &fakeObjectStore{}, cache, nil, nil, nil, PublicationConfig{})
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	require.Contains(t, cacheRepo.values, publicationListCacheKey)

	cacheRepo.deleteErr = errors.New("redis: connection reset")
	_, err = svc.Create(ctx, models.PublicationInsert{Title: "Hybrid zones", Abstract: "a", Year: 2024, Authors: "Rojas", PDFURL: "https://cdn.example.com/h.pdf"})
	require.NoError(t, err)

	publications, hit, err := svc.ListWithMeta(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, publications, 1)
	assert.Equal(t, "Hybrid zones", publications[0].Title)

	cacheRepo.deleteErr = nil
	_, hit, err = svc.ListWithMeta(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.ListWithMeta(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
}
