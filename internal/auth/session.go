package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenLifetime is fixed at seven days from issuance.
const SessionTokenLifetime = 7 * 24 * time.Hour

var (
	ErrMissingSigningSecret = errors.New("session codec: signing secret required")
	ErrMissingSessionIssuer = errors.New("session codec: issuer required")
	ErrMissingUserID        = errors.New("session codec: user id required")
	ErrMissingSessionToken  = errors.New("session codec: token required")
	ErrInvalidSessionToken  = errors.New("session codec: invalid token")
	ErrExpiredSessionToken  = errors.New("session codec: token expired")
)

// SessionClaims is the JWT payload carried by the session cookie.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"user_email"`
	jwt.RegisteredClaims
}

// SessionCodecConfig describes how session tokens are minted and verified.
type SessionCodecConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// SessionCodec mints and verifies HS256 session tokens.
type SessionCodec struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewSessionCodec constructs a codec with validated configuration.
func NewSessionCodec(cfg SessionCodecConfig) (*SessionCodec, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionCodec{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// Mint produces a signed session token for the given user identity.
func (c *SessionCodec) Mint(userID string, email string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrMissingUserID
	}

	now := c.clock().UTC()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.signingSecret)
}

// Verify validates the supplied token string and returns the parsed claims.
func (c *SessionCodec) Verify(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return c.signingSecret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredSessionToken
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	return *claims, nil
}
