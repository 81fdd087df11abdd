package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is an authenticated principal as returned by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	// SessionToken and SessionExpiresAt describe the hosted backend session,
	// when the provider issues one.
	SessionToken     string    `json:"-"`
	SessionExpiresAt time.Time `json:"-"`
}

// LoginRequest holds credentials for the admin sign-in.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// LoginResponse returns the issued token and identity.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        Identity  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for admin access tokens.
type JWTClaims struct {
	Email string `json:"email"`
	// BackendSession is the hosted backend access token writes are sent with.
	BackendSession string `json:"backend_session,omitempty"`
	jwt.RegisteredClaims
}

// AdminAccount is a locally managed administrator used by the self-hosted backend.
type AdminAccount struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
