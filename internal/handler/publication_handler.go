package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/dto"
	"github.com/noah-isme/labsite-api/internal/middleware"
	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

type publicationService interface {
	ListWithMeta(ctx context.Context) ([]models.Publication, bool, error)
	Get(ctx context.Context, id string) (*models.Publication, error)
	Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error)
	Publish(ctx context.Context, req dto.PublishRequest) (*models.Publication, error)
	UploadFile(ctx context.Context, kind models.FileKind, file dto.FileUpload, title string) (*models.UploadedFile, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, format, title string) ([]byte, string, error)
}

// PublicationHandler exposes the publication catalog.
type PublicationHandler struct {
	service  publicationService
	resolver *i18n.Resolver
}

// NewPublicationHandler constructs the handler.
func NewPublicationHandler(svc publicationService, resolver *i18n.Resolver) *PublicationHandler {
	return &PublicationHandler{service: svc, resolver: resolver}
}

// List godoc
// @Summary List publications
// @Description Newest year first, then most recently created
// @Tags Publications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /publications [get]
func (h *PublicationHandler) List(c *gin.Context) {
	publications, hit, err := h.service.ListWithMeta(c.Request.Context())
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.PublicationListResponse{Items: publications, Total: len(publications)}, middleware.Meta(c))
}

// Get godoc
// @Summary Publication detail
// @Tags Publications
// @Produce json
// @Param id path string true "Publication ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /publications/{id} [get]
func (h *PublicationHandler) Get(c *gin.Context) {
	publication, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	response.JSON(c, http.StatusOK, publication)
}

// Create godoc
// @Summary Create publication record
// @Description Insert a record whose files are already stored
// @Tags Publications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.PublicationInsert true "Publication payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /publications [post]
func (h *PublicationHandler) Create(c *gin.Context) {
	var req models.PublicationInsert
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.resolver, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publication payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Subject != "" {
		req.CreatedBy = &claims.Subject
	}

	publication, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	response.Created(c, publication)
}

// Publish godoc
// @Summary Upload a publication
// @Description Store the PDF, the optional cover image and then the record
// @Tags Publications
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param abstract formData string true "Abstract"
// @Param year formData int true "Year"
// @Param authors formData string true "Authors"
// @Param journal formData string false "Journal"
// @Param doi formData string false "DOI"
// @Param pdf formData file true "PDF file"
// @Param image formData file false "Cover image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /publications/publish [post]
func (h *PublicationHandler) Publish(c *gin.Context) {
	var form dto.PublicationForm
	if err := c.ShouldBind(&form); err != nil {
		h.adminFailure(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publication payload"))
		return
	}

	pdf, closePDF, err := formFile(c, "pdf")
	if err != nil {
		h.adminFailure(c, err)
		return
	}
	defer closePDF()
	image, closeImage, err := formFile(c, "image")
	if err != nil {
		h.adminFailure(c, err)
		return
	}
	defer closeImage()

	req := dto.PublishRequest{Form: form, PDF: pdf, Image: image}
	if claims := claimsFromContext(c); claims != nil {
		req.CreatedBy = claims.Subject
	}

	publication, err := h.service.Publish(c.Request.Context(), req)
	if err != nil {
		h.adminFailure(c, err)
		return
	}
	if browserNavigation(c) {
		redirectOutcome(c, "/publications", nil, "published")
		return
	}
	response.Created(c, publication)
}

// UploadFile godoc
// @Summary Upload a single file
// @Tags Publications
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param kind formData string true "pdf or image"
// @Param title formData string false "Title used for the file name"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /publications/files [post]
func (h *PublicationHandler) UploadFile(c *gin.Context) {
	var req dto.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.resolver, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}

	file, closeFile, err := formFile(c, "file")
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	defer closeFile()
	if file == nil {
		respondError(c, h.resolver, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	uploaded, err := h.service.UploadFile(c.Request.Context(), req.Kind, *file, req.Title)
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	response.Created(c, uploaded)
}

// Delete godoc
// @Summary Delete publication
// @Tags Publications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Publication ID"
// @Success 204 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /publications/{id} [delete]
// @Router /publications/{id}/delete [post]
func (h *PublicationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.adminFailure(c, err)
		return
	}
	if browserNavigation(c) {
		redirectOutcome(c, "/publications", nil, "deleted")
		return
	}
	response.NoContent(c)
}

// adminFailure reports err to API clients, and sends browsers submitting the
// admin forms back to the publications page.
func (h *PublicationHandler) adminFailure(c *gin.Context, err error) {
	if browserNavigation(c) {
		redirectOutcome(c, "/publications", err, "")
		return
	}
	respondError(c, h.resolver, err)
}

// Export godoc
// @Summary Export bibliography
// @Tags Publications
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "pdf or csv" Enums(pdf, csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /publications/export [get]
func (h *PublicationHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	title := "Publications"
	if h.resolver != nil {
		title = h.resolver.T(requestLanguage(c, h.resolver), "publications.title")
	}

	payload, contentType, err := h.service.Export(c.Request.Context(), format, title)
	if err != nil {
		respondError(c, h.resolver, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"publications.%s\"", format))
	c.Data(http.StatusOK, contentType, payload)
}

// formFile opens an optional multipart file. A missing field yields nil.
func formFile(c *gin.Context, field string) (*dto.FileUpload, func(), error) {
	noop := func() {}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*dto.FileUpload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "unable to read uploaded file")
	}
	upload := &dto.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() { _ = file.Close() }, nil
}
