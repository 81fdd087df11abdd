package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
)

type adminAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.AdminAccount, error)
	Upsert(ctx context.Context, account *models.AdminAccount) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// LocalIdentityProvider checks admin credentials against bcrypt hashes in the database.
type LocalIdentityProvider struct {
	repo   adminAccountRepository
	logger *zap.Logger
}

// NewLocalIdentityProvider constructs a LocalIdentityProvider.
func NewLocalIdentityProvider(repo adminAccountRepository, logger *zap.Logger) *LocalIdentityProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalIdentityProvider{repo: repo, logger: logger}
}

// SignIn implements IdentityProvider.
func (p *LocalIdentityProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	account, err := p.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to fetch admin account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := p.repo.UpdateLastLogin(ctx, account.ID, time.Now().UTC()); err != nil {
		p.logger.Warn("failed to update last login", zap.Error(err))
	}
	return &models.Identity{ID: account.ID, Email: account.Email}, nil
}

// Register creates or updates an admin account. Only policy-approved emails
// may be registered.
func (p *LocalIdentityProvider) Register(ctx context.Context, policy AdminPolicy, email, password string) error {
	if policy == nil || !policy(email) {
		return appErrors.ErrEmailNotAuthorized
	}
	if len(password) < 8 {
		return appErrors.Clone(appErrors.ErrValidation, "admin password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := p.repo.Upsert(ctx, &models.AdminAccount{Email: email, PasswordHash: string(hash)}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to store admin account")
	}
	p.logger.Info("admin account registered", zap.String("email", email))
	return nil
}
