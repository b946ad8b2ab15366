package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultIssuer is the iss claim on tokens when none is configured
const DefaultIssuer = "taskflow-api"

// TokenTypeBearer is the token_type returned on login
const TokenTypeBearer = "bearer"

// minSecretLength is the shortest HS256 secret accepted
const minSecretLength = 32

// ErrInvalidToken is returned for tokens that fail signature, expiry, or claim checks
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies HS256 access tokens whose subject is the user ID
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  jwt.Clock
}

// TokenOption configures a TokenManager
type TokenOption func(*TokenManager)

// WithIssuer overrides the iss claim
func WithIssuer(issuer string) TokenOption {
	return func(m *TokenManager) {
		if issuer != "" {
			m.issuer = issuer
		}
	}
}

// WithClock overrides the clock used for issuing and validating tokens
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.clock = jwt.ClockFunc(now)
		}
	}
}

// NewTokenManager creates a token manager. The secret must be at least 32 bytes.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	m := &TokenManager{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		ttl:    ttl,
		clock:  jwt.ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the lifetime of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new access token for userID
func (m *TokenManager) Issue(userID uuid.UUID) (string, error) {
	now := m.clock.Now()
	token, err := jwt.NewBuilder().
		Subject(userID.String()).
		Issuer(m.issuer).
		IssuedAt(now).
		Expiration(now.Add(m.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature, expiry and issuer, then extracts the claims
func (m *TokenManager) Verify(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.issuer),
		jwt.WithClock(m.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &models.JWTClaims{
		Sub: token.Subject(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
		Iss: token.Issuer(),
	}, nil
}

// UserIDFromClaims parses the subject claim as a user ID
func UserIDFromClaims(claims *models.JWTClaims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return id, nil
}
