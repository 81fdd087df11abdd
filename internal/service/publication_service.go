package service

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/export"
	"github.com/noah-isme/labsite-api/pkg/storage"
)

const (
	publicationListCacheKey = "publications:list"
	publicationCachePattern = "publications:*"
	slugFallback            = "publication"
	maxSlugLength           = 60
)

type publicationRepository interface {
	List(ctx context.Context) ([]models.Publication, error)
	Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error)
	Delete(ctx context.Context, id string) error
}

type bibliographyRenderer interface {
	Render(data export.Bibliography) ([]byte, error)
}

// PublicationConfig names the buckets and size limits for uploads.
type PublicationConfig struct {
	PDFBucket     string
	ImageBucket   string
	MaxPDFBytes   int64
	MaxImageBytes int64
	CacheTTL      time.Duration
}

// PublicationService implements the publication catalog on top of a
// repository and an object store. It performs no authorization.
type PublicationService struct {
	repo      publicationRepository
	store     storage.ObjectStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PublicationConfig
	csv       bibliographyRenderer
	pdf       bibliographyRenderer
	now       func() time.Time
	random    func() string
	// staleCache is set when a write could not invalidate the cached list.
	staleCache atomic.Bool
}

// NewPublicationService constructs a PublicationService.
func NewPublicationService(repo publicationRepository, store storage.ObjectStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PublicationConfig) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PDFBucket == "" {
		cfg.PDFBucket = "publications-pdfs"
	}
	if cfg.ImageBucket == "" {
		cfg.ImageBucket = "publications-images"
	}
	return &PublicationService{
		repo:      repo,
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		now:       time.Now,
		random:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:10] },
	}
}

// List returns every publication ordered by year descending, then by creation
// time descending. An empty catalog is an empty slice.
func (s *PublicationService) List(ctx context.Context) ([]models.Publication, error) {
	publications, _, err := s.ListWithMeta(ctx)
	return publications, err
}

// ListWithMeta behaves like List and also reports whether the cache served it.
func (s *PublicationService) ListWithMeta(ctx context.Context) ([]models.Publication, bool, error) {
	useCache := s.cacheUsable(ctx)
	if useCache {
		var cached []models.Publication
		if hit, _ := s.cache.Get(ctx, publicationListCacheKey, &cached); hit && cached != nil {
			return cached, true, nil
		}
	}

	start := time.Now()
	publications, err := s.repo.List(ctx)
	s.metrics.ObserveBackendCall("publications.list", err, time.Since(start))
	if err != nil {
		return nil, false, s.backendError(err, "publications.list", "error fetching publications")
	}
	if publications == nil {
		publications = []models.Publication{}
	}
	sortPublications(publications)

	if useCache {
		_ = s.cache.Set(ctx, publicationListCacheKey, publications, s.cfg.CacheTTL)
	}
	return publications, false, nil
}

// Get resolves a single publication from the catalog.
func (s *PublicationService) Get(ctx context.Context, id string) (*models.Publication, error) {
	publications, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range publications {
		if publications[i].ID == id {
			return &publications[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
}

// Create validates and inserts a publication.
func (s *PublicationService) Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publication payload")
	}

	start := time.Now()
	created, err := s.repo.Create(ctx, in)
	s.metrics.ObserveBackendCall("publications.create", err, time.Since(start))
	if err != nil {
		return nil, s.backendError(err, "publications.create", "error creating publication")
	}
	s.invalidate(ctx)
	return created, nil
}

// Delete removes a publication by id without checking it exists first.
func (s *PublicationService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "publication id is required")
	}
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.metrics.ObserveBackendCall("publications.delete", err, time.Since(start))
	if err != nil {
		return s.backendError(err, "publications.delete", "error deleting publication")
	}
	s.invalidate(ctx)
	return nil
}

// UploadFile stores a PDF or image under a generated unique name and returns
// its public location. Existing objects with the same name are overwritten.
func (s *PublicationService) UploadFile(ctx context.Context, kind models.FileKind, file dto.FileUpload, title string) (*models.UploadedFile, error) {
	bucket, prefix, limit, err := s.destination(kind)
	if err != nil {
		return nil, err
	}
	if file.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s file is required", kind))
	}
	if limit > 0 && file.Size > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s file exceeds %d bytes", kind, limit))
	}
	if err := checkFileType(kind, file); err != nil {
		return nil, err
	}

	key := prefix + s.objectName(title, fileExtension(kind, file))
	contentType := file.ContentType
	if contentType == "" && kind == models.FileKindPDF {
		contentType = "application/pdf"
	}

	start := time.Now()
	url, err := s.store.Put(ctx, storage.Object{Bucket: bucket, Key: key, ContentType: contentType, Body: file.Body})
	s.metrics.ObserveBackendCall("storage.put", err, time.Since(start))
	s.metrics.RecordUpload(kind, err)
	if err != nil {
		s.logger.Error("publication file upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, fmt.Sprintf("error uploading %s", kind))
	}

	s.logger.Info("publication file uploaded", zap.String("bucket", bucket), zap.String("key", key))
	return &models.UploadedFile{Kind: kind, Bucket: bucket, Key: key, URL: url}, nil
}

// Publish runs the admin upload flow: PDF, then the optional image, then the
// record insert. Any upload failure aborts before the insert. A failed insert
// leaves the uploaded files in place.
func (s *PublicationService) Publish(ctx context.Context, req dto.PublishRequest) (*models.Publication, error) {
	if err := s.validator.Struct(req.Form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publication payload")
	}
	if req.PDF == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pdf file is required")
	}

	pdf, err := s.UploadFile(ctx, models.FileKindPDF, *req.PDF, req.Form.Title)
	if err != nil {
		return nil, err
	}
	uploaded := []*models.UploadedFile{pdf}

	insert := models.PublicationInsert{
		Title:    strings.TrimSpace(req.Form.Title),
		Abstract: strings.TrimSpace(req.Form.Abstract),
		Year:     req.Form.Year,
		Authors:  strings.TrimSpace(req.Form.Authors),
		Journal:  optional(req.Form.Journal),
		DOI:      optional(req.Form.DOI),
		PDFURL:   pdf.URL,
	}
	if req.CreatedBy != "" {
		insert.CreatedBy = &req.CreatedBy
	}

	if req.Image != nil {
		image, err := s.UploadFile(ctx, models.FileKindImage, *req.Image, req.Form.Title)
		if err != nil {
			s.logOrphans(uploaded, err)
			return nil, err
		}
		uploaded = append(uploaded, image)
		insert.ImageURL = &image.URL
	}

	created, err := s.Create(ctx, insert)
	if err != nil {
		s.logOrphans(uploaded, err)
		return nil, err
	}
	return created, nil
}

// Export renders the catalog as "csv" or "pdf".
func (s *PublicationService) Export(ctx context.Context, format, title string) ([]byte, string, error) {
	renderer, contentType := s.csv, "text/csv"
	switch strings.ToLower(format) {
	case "", "csv":
	case "pdf":
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	publications, err := s.List(ctx)
	if err != nil {
		return nil, "", err
	}
	bibliography := export.Bibliography{Title: title, Entries: make([]export.Entry, 0, len(publications))}
	for _, p := range publications {
		bibliography.Entries = append(bibliography.Entries, export.Entry{
			Title:   p.Title,
			Authors: p.Authors,
			Year:    p.Year,
			Journal: deref(p.Journal),
			DOI:     deref(p.DOI),
			URL:     p.PDFURL,
		})
	}
	out, err := renderer.Render(bibliography)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render bibliography")
	}
	return out, contentType, nil
}

func (s *PublicationService) destination(kind models.FileKind) (bucket, prefix string, limit int64, err error) {
	switch kind {
	case models.FileKindPDF:
		return s.cfg.PDFBucket, "pdfs/", s.cfg.MaxPDFBytes, nil
	case models.FileKindImage:
		return s.cfg.ImageBucket, "images/", s.cfg.MaxImageBytes, nil
	default:
		return "", "", 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown file kind %q", kind))
	}
}

func (s *PublicationService) objectName(title, ext string) string {
	return fmt.Sprintf("%s-%d-%s.%s", Slugify(title), s.now().UnixMilli(), s.random(), ext)
}

// invalidate drops the cached list after a write. On failure the list cache
// is bypassed until a later invalidation succeeds.
func (s *PublicationService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, publicationCachePattern); err != nil {
		s.staleCache.Store(true)
	}
}

func (s *PublicationService) cacheUsable(ctx context.Context) bool {
	if !s.staleCache.Load() {
		return true
	}
	if err := s.cache.Invalidate(ctx, publicationCachePattern); err != nil {
		return false
	}
	s.staleCache.Store(false)
	return true
}

// backendError logs the backend detail and returns a generic error that
// handlers replace with the localized message.
func (s *PublicationService) backendError(err error, operation, message string) error {
	s.logger.Error("publication backend call failed", zap.String("operation", operation), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, message)
}

func (s *PublicationService) logOrphans(files []*models.UploadedFile, cause error) {
	for _, f := range files {
		s.logger.Warn("uploaded file left without publication record",
			zap.String("bucket", f.Bucket),
			zap.String("key", f.Key),
			zap.Error(cause),
		)
	}
}

// Slugify lowercases title, strips accents and joins alphanumeric runs with
// dashes. Titles without any usable characters yield "publication".
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return slugFallback
	}
	return slug
}

func sortPublications(publications []models.Publication) {
	sort.SliceStable(publications, func(i, j int) bool {
		if publications[i].Year != publications[j].Year {
			return publications[i].Year > publications[j].Year
		}
		return publications[i].CreatedAt.After(publications[j].CreatedAt)
	})
}

func checkFileType(kind models.FileKind, file dto.FileUpload) error {
	ext := strings.ToLower(filepath.Ext(file.Name))
	switch kind {
	case models.FileKindPDF:
		if ext != "" && ext != ".pdf" {
			return appErrors.Clone(appErrors.ErrValidation, "pdf upload must be a .pdf file")
		}
	case models.FileKindImage:
		if file.ContentType != "" && !strings.HasPrefix(file.ContentType, "image/") {
			return appErrors.Clone(appErrors.ErrValidation, "image upload must be an image")
		}
	}
	return nil
}

func fileExtension(kind models.FileKind, file dto.FileUpload) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), "."); ext != "" {
		return ext
	}
	if kind == models.FileKindPDF {
		return "pdf"
	}
	if exts, err := mime.ExtensionsByType(file.ContentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

