package repository

import (
	"context"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go/types"

	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
)

// PasswordSignIn is the subset of the hosted auth client used for admin login.
type PasswordSignIn interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
}

// SupabaseAuthRepository signs administrators in against hosted auth.
type SupabaseAuthRepository struct {
	client PasswordSignIn
	now    func() time.Time
}

// NewSupabaseAuthRepository wraps the auth client of a supabase.Client.
func NewSupabaseAuthRepository(client PasswordSignIn) *SupabaseAuthRepository {
	return &SupabaseAuthRepository{client: client, now: time.Now}
}

// SignIn exchanges credentials for the identity behind them, including the
// backend session token later writes are authorized with. Rejected credentials
// come back as appErrors.ErrInvalidCredentials; other failures keep the
// backend message.
func (r *SupabaseAuthRepository) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := r.client.SignInWithEmailPassword(email, password)
	if err != nil {
		if isInvalidCredentials(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, appErrors.ErrInvalidCredentials.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, err.Error())
	}
	if resp == nil {
		return nil, appErrors.Clone(appErrors.ErrBackend, "empty sign-in response")
	}
	if resp.AccessToken == "" {
		return nil, appErrors.Clone(appErrors.ErrBackend, "sign-in response carried no session")
	}
	identity := &models.Identity{
		ID:           resp.User.ID.String(),
		Email:        resp.User.Email,
		SessionToken: resp.AccessToken,
	}
	if resp.ExpiresIn > 0 {
		identity.SessionExpiresAt = r.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return identity, nil
}

func isInvalidCredentials(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid login credentials") || strings.Contains(msg, "invalid_grant")
}
