package models

import "time"

// Publication is a catalog entry as stored by the backend.
type Publication struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Abstract  string    `db:"abstract" json:"abstract"`
	Year      int       `db:"year" json:"year"`
	Authors   string    `db:"authors" json:"authors"`
	Journal   *string   `db:"journal" json:"journal,omitempty"`
	DOI       *string   `db:"doi" json:"doi,omitempty"`
	PDFURL    string    `db:"pdf_url" json:"pdf_url"`
	ImageURL  *string   `db:"image_url" json:"image_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
}

// PublicationInsert carries the fields a caller supplies when creating a publication.
// Identifier and timestamps are assigned by the backend.
type PublicationInsert struct {
	Title     string  `db:"title" json:"title" validate:"required"`
	Abstract  string  `db:"abstract" json:"abstract" validate:"required"`
	Year      int     `db:"year" json:"year" validate:"required,gte=1900,lte=2100"`
	Authors   string  `db:"authors" json:"authors" validate:"required"`
	Journal   *string `db:"journal" json:"journal,omitempty"`
	DOI       *string `db:"doi" json:"doi,omitempty"`
	PDFURL    string  `db:"pdf_url" json:"pdf_url" validate:"required,url"`
	ImageURL  *string `db:"image_url" json:"image_url,omitempty" validate:"omitempty,url"`
	CreatedBy *string `db:"created_by" json:"created_by,omitempty"`
}

// FileKind selects the bucket an upload lands in.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// UploadedFile describes a stored object.
type UploadedFile struct {
	Kind   FileKind `json:"kind"`
	Bucket string   `json:"bucket"`
	Key    string   `json:"key"`
	URL    string   `json:"url"`
}
