package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestJWTProvider_IssueAndAuthenticate(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
	p, err := NewJWTProvider(JWTConfig{Secret: "s3cret"}, clock)
	require.NoError(t, err)

	principal := &entity.Principal{ID: 42, Name: "Ana Ruiz", EmployeeID: "E-42", Role: entity.RoleEngineer}
	token, expiresAt, err := p.Issue(context.Background(), principal)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(DefaultTokenTTL), expiresAt)

	got, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)

	clock.Advance(DefaultTokenTTL + time.Second)
	_, err = p.Authenticate(context.Background(), token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestJWTProvider_RejectsForgedTokens(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{Secret: "right", TTL: time.Hour}, nil)
	require.NoError(t, err)
	other, err := NewJWTProvider(JWTConfig{Secret: "wrong", TTL: time.Hour}, nil)
	require.NoError(t, err)

	token, _, err := other.Issue(context.Background(), &entity.Principal{ID: 1, Role: entity.RoleAdmin})
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = p.Authenticate(context.Background(), "not.a.token")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: 1, Role: "Admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Authenticate(context.Background(), unsigned)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestJWTProvider_RejectsUnknownRole(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{Secret: "k", TTL: time.Hour}, nil)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: 3, Role: "Superuser",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	signed, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), signed)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestNewJWTProvider_RequiresSecret(t *testing.T) {
	_, err := NewJWTProvider(JWTConfig{}, nil)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, h.Verify(hash, "hunter22"))
	assert.False(t, h.Verify(hash, "hunter23"))
	assert.False(t, h.Verify("garbage", "hunter22"))
}
