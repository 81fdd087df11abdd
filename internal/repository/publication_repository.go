package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/labsite-api/internal/models"
)

const publicationColumns = `id, title, abstract, year, authors, journal, doi, pdf_url, image_url, created_at, updated_at, created_by`

// PublicationRepository stores publications in PostgreSQL.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates a new instance of PublicationRepository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// List returns every publication, newest year first then newest insert first.
func (r *PublicationRepository) List(ctx context.Context) ([]models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications ORDER BY year DESC, created_at DESC`
	publications := make([]models.Publication, 0)
	if err := r.db.SelectContext(ctx, &publications, query); err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	return publications, nil
}

// Create inserts a publication and returns the stored row.
func (r *PublicationRepository) Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error) {
	now := time.Now().UTC()
	query := `INSERT INTO publications (id, title, abstract, year, authors, journal, doi, pdf_url, image_url, created_at, updated_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11)
RETURNING ` + publicationColumns
	var publication models.Publication
	if err := r.db.QueryRowxContext(ctx, query,
		uuid.NewString(), in.Title, in.Abstract, in.Year, in.Authors, in.Journal, in.DOI, in.PDFURL, in.ImageURL, now, in.CreatedBy,
	).StructScan(&publication); err != nil {
		return nil, fmt.Errorf("create publication: %w", err)
	}
	return &publication, nil
}

// Delete removes a publication by id. Unknown ids are not an error.
func (r *PublicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM publications WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	return nil
}
