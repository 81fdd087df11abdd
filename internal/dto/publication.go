package dto

import (
	"io"

	"github.com/noah-isme/labsite-api/internal/models"
)

// PublicationForm is the multipart payload of the admin upload form.
type PublicationForm struct {
	Title    string `form:"title" validate:"required"`
	Abstract string `form:"abstract" validate:"required"`
	Year     int    `form:"year" validate:"required,gte=1900,lte=2100"`
	Authors  string `form:"authors" validate:"required"`
	Journal  string `form:"journal"`
	DOI      string `form:"doi"`
}

// FileUpload is an incoming file independent of the transport that carried it.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PublishRequest is the full admin upload flow: metadata, mandatory PDF and optional image.
type PublishRequest struct {
	Form      PublicationForm
	PDF       *FileUpload
	Image     *FileUpload
	CreatedBy string
}

// UploadFileRequest uploads a single file outside of the publish flow.
type UploadFileRequest struct {
	Kind  models.FileKind `form:"kind" validate:"required,oneof=pdf image"`
	Title string          `form:"title"`
}

// PublicationListResponse wraps the catalog for the JSON API.
type PublicationListResponse struct {
	Items []models.Publication `json:"items"`
	Total int                  `json:"total"`
}
