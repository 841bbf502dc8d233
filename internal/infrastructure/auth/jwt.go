// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 7 * 24 * time.Hour

// JWTConfig configures the HS256 identity provider
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Claims is the signed principal
type Claims struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider implements port.IdentityProvider with HS256 tokens
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  port.Clock
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewJWTProvider creates a provider; clock may be nil
func NewJWTProvider(cfg JWTConfig, clock port.Clock) (*JWTProvider, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &JWTProvider{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  clock,
	}, nil
}

// Issue signs principal and returns the token with its expiry
func (p *JWTProvider) Issue(ctx context.Context, principal *entity.Principal) (string, time.Time, error) {
	if principal == nil {
		return "", time.Time{}, fmt.Errorf("cannot issue token without principal")
	}

	now := p.clock.Now()
	expiresAt := now.Add(p.ttl)
	claims := Claims{
		ID:         principal.ID,
		Name:       principal.Name,
		EmployeeID: principal.EmployeeID,
		Role:       string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principal.ID, 10),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Authenticate verifies token and returns the principal it carries
func (p *JWTProvider) Authenticate(ctx context.Context, token string) (*entity.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthenticated("token expired")
		}
		return nil, apperr.Unauthenticated("invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperr.Unauthenticated("invalid token")
	}

	role, ok := entity.ParseRole(claims.Role)
	if !ok || claims.ID <= 0 {
		return nil, apperr.Unauthenticated("invalid token claims")
	}

	return &entity.Principal{
		ID:         claims.ID,
		Name:       claims.Name,
		EmployeeID: claims.EmployeeID,
		Role:       role,
	}, nil
}

var _ port.IdentityProvider = (*JWTProvider)(nil)
