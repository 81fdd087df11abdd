package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/labsite-api/internal/models"
)

// AdminAccountRepository provides database access for locally managed admin accounts.
type AdminAccountRepository struct {
	db *sqlx.DB
}

// NewAdminAccountRepository creates a new instance of AdminAccountRepository.
func NewAdminAccountRepository(db *sqlx.DB) *AdminAccountRepository {
	return &AdminAccountRepository{db: db}
}

// FindByEmail returns an account by email address.
func (r *AdminAccountRepository) FindByEmail(ctx context.Context, email string) (*models.AdminAccount, error) {
	const query = `SELECT id, email, password_hash, last_login, created_at, updated_at FROM admin_accounts WHERE email = $1 LIMIT 1`
	var account models.AdminAccount
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin account by email: %w", err)
	}
	return &account, nil
}

// Upsert creates the account or replaces its password hash.
func (r *AdminAccountRepository) Upsert(ctx context.Context, account *models.AdminAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO admin_accounts (id, email, password_hash, created_at, updated_at) VALUES (:id, :email, :password_hash, :created_at, :updated_at)
ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("upsert admin account: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for an account.
func (r *AdminAccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE admin_accounts SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
