package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/noah-isme/labsite-api/internal/models"
	"github.com/noah-isme/labsite-api/pkg/session"
)

// PostgrestClient is the table entry point of a PostgREST client.
type PostgrestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// PostgrestSessions opens PostgREST clients authorized by a bearer token.
type PostgrestSessions interface {
	Client(token string) PostgrestClient
}

// SupabaseRest opens REST clients against a hosted project. Each client sends
// the project API key, and the caller's session token as bearer when present.
type SupabaseRest struct {
	url    string
	apiKey string
	schema string
}

// NewSupabaseRest builds clients for the project at projectURL.
func NewSupabaseRest(projectURL, apiKey string) SupabaseRest {
	return SupabaseRest{url: strings.TrimRight(projectURL, "/") + "/rest/v1", apiKey: apiKey, schema: "public"}
}

// Client returns a client whose requests carry token, or the API key when token is empty.
func (s SupabaseRest) Client(token string) PostgrestClient {
	if token == "" {
		token = s.apiKey
	}
	return postgrest.NewClient(s.url, s.schema, map[string]string{"apikey": s.apiKey}).SetAuthToken(token)
}

// SupabasePublicationRepository reads and writes publications through the hosted REST API.
// Requests run under the session token found in the context, so the backend's
// row policies see the signed-in administrator rather than the public key.
type SupabasePublicationRepository struct {
	sessions PostgrestSessions
	table    string
}

// NewSupabasePublicationRepository builds a repository bound to table.
func NewSupabasePublicationRepository(sessions PostgrestSessions, table string) *SupabasePublicationRepository {
	if table == "" {
		table = "publications"
	}
	return &SupabasePublicationRepository{sessions: sessions, table: table}
}

func (r *SupabasePublicationRepository) from(ctx context.Context) *postgrest.QueryBuilder {
	return r.sessions.Client(session.Token(ctx)).From(r.table)
}

// List returns every publication ordered by year then creation time, newest first.
func (r *SupabasePublicationRepository) List(ctx context.Context) ([]models.Publication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.from(ctx).
		Select("*", "", false).
		Order("year", &postgrest.OrderOpts{Ascending: false}).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	publications := make([]models.Publication, 0)
	if len(data) == 0 {
		return publications, nil
	}
	if err := json.Unmarshal(data, &publications); err != nil {
		return nil, fmt.Errorf("decode publications: %w", err)
	}
	return publications, nil
}

// Create inserts a row and returns the representation the backend stored.
func (r *SupabasePublicationRepository) Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.from(ctx).
		Insert(in, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("create publication: %w", err)
	}
	var rows []models.Publication
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode created publication: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create publication: backend returned no row")
	}
	return &rows[0], nil
}

// Delete removes a publication by id.
func (r *SupabasePublicationRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := r.from(ctx).Delete("", "").Eq("id", id).Execute(); err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	return nil
}
