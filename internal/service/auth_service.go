package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
)

const revokedTokenPrefix = "auth:revoked:"

// IdentityProvider verifies admin credentials against a backend.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
}

type translator interface {
	T(lang, key string) string
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService signs administrators in and manages their access tokens.
type AuthService struct {
	provider   IdentityProvider
	policy     AdminPolicy
	translator translator
	revocation *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(provider IdentityProvider, policy AdminPolicy, tr translator, revocation *CacheService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy == nil {
		policy = func(string) bool { return false }
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 8 * time.Hour
	}
	return &AuthService{
		provider:   provider,
		policy:     policy,
		translator: tr,
		revocation: revocation,
		validator:  validate,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// Authorized reports whether email passes the admin policy.
func (s *AuthService) Authorized(email string) bool {
	return s.policy(email)
}

// Login authenticates an administrator. Emails outside the policy are
// rejected before the identity provider is contacted.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, lang string) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	if !s.policy(req.Email) {
		s.logger.Info("admin login rejected by policy", zap.String("email", req.Email))
		return nil, appErrors.Clone(appErrors.ErrEmailNotAuthorized, s.message(lang, "admin.login.notAuthorized"))
	}

	identity, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrInvalidCredentials.Code {
			return nil, appErrors.Wrap(err, appErr.Code, appErr.Status, s.message(lang, "admin.login.invalidCredentials"))
		}
		if appErr.Code == appErrors.ErrInternal.Code {
			return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, err.Error())
		}
		return nil, appErr
	}

	if identity == nil || !s.policy(identity.Email) {
		return nil, appErrors.Clone(appErrors.ErrEmailNotAuthorized, s.message(lang, "admin.login.notAuthorized"))
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	// the backend session would reject writes past its own expiry
	if !identity.SessionExpiresAt.IsZero() && identity.SessionExpiresAt.Before(expiresAt) {
		expiresAt = identity.SessionExpiresAt.UTC()
	}
	token, err := s.generateAccessToken(identity, issuedAt, expiresAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("admin signed in", zap.String("email", identity.Email))
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(issuedAt).Seconds()),
		User:        *identity,
		IssuedAt:    issuedAt,
	}, nil
}

// ValidateToken parses an access token and rejects revoked ones.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if claims.ID != "" {
		revoked, err := s.revocation.Has(ctx, revokedTokenPrefix+claims.ID)
		if err != nil {
			s.logger.Warn("token revocation check failed", zap.Error(err))
		}
		if revoked {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token revoked")
		}
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocation.Set(ctx, revokedTokenPrefix+claims.ID, true, ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke token")
	}
	return nil
}

func (s *AuthService) generateAccessToken(identity *models.Identity, issuedAt, expiresAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		Email:          identity.Email,
		BackendSession: identity.SessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) message(lang, key string) string {
	if s.translator == nil {
		return key
	}
	return s.translator.T(lang, key)
}
