package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/memory"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(hash, password string) bool    { return hash == "hashed:"+password }

// tokenProvider encodes the principal into the token string
type tokenProvider struct {
	users map[string]*entity.Principal
}

func (p *tokenProvider) Issue(ctx context.Context, principal *entity.Principal) (string, time.Time, error) {
	token := fmt.Sprintf("tok-%d", principal.ID)
	p.users[token] = principal
	return token, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (p *tokenProvider) Authenticate(ctx context.Context, token string) (*entity.Principal, error) {
	if principal, ok := p.users[token]; ok {
		return principal, nil
	}
	return nil, fmt.Errorf("token signature is invalid")
}

func newIdentityService() IdentityService {
	return NewIdentityService(
		memory.NewUserRepository(),
		plainHasher{},
		&tokenProvider{users: map[string]*entity.Principal{}},
		policy.New(policy.DefaultConfig()),
		&fixedClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		&mockLogger{},
	)
}

func signup(role string) RegisterInput {
	return RegisterInput{
		Name:       "Sam Lee",
		Email:      "Sam.Lee@Plant.example.com",
		EmployeeID: "E-100",
		Password:   "secret1",
		Role:       role,
	}
}

func TestIdentityService_RegisterForcesInspector(t *testing.T) {
	svc := newIdentityService()
	ctx := context.Background()

	session, err := svc.Register(ctx, signup("admin"))
	require.NoError(t, err)
	assert.Equal(t, entity.RoleInspector, session.User.Role)
	assert.Equal(t, "sam.lee@plant.example.com", session.User.Email)
	assert.NotEmpty(t, session.Token)

	principal, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, principal.ID)
	assert.Equal(t, "E-100", principal.EmployeeID)

	_, err = svc.Register(ctx, signup(""))
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, []string{"email"}, appErr.Fields)
}

func TestIdentityService_RegisterValidation(t *testing.T) {
	svc := newIdentityService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "x@y.com"})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, []string{"name", "employee_id", "password"}, appErr.Fields)

	in := signup("")
	in.Email = "not-an-email"
	_, err = svc.Register(ctx, in)
	requireKind(t, err, apperr.KindValidation)

	in = signup("")
	in.Password = "abc"
	_, err = svc.Register(ctx, in)
	requireKind(t, err, apperr.KindValidation)
}

func TestIdentityService_Login(t *testing.T) {
	svc := newIdentityService()
	ctx := context.Background()

	_, err := svc.Register(ctx, signup(""))
	require.NoError(t, err)

	session, err := svc.Login(ctx, "SAM.LEE@plant.example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Lee", session.User.Name)

	_, err = svc.Login(ctx, "sam.lee@plant.example.com", "wrong")
	appErr := requireKind(t, err, apperr.KindUnauthenticated)
	assert.Equal(t, "invalid credentials", appErr.Message)

	_, err = svc.Login(ctx, "nobody@plant.example.com", "secret1")
	requireKind(t, err, apperr.KindUnauthenticated)

	_, err = svc.Login(ctx, "", "")
	requireKind(t, err, apperr.KindValidation)
}

func TestIdentityService_Authenticate(t *testing.T) {
	svc := newIdentityService()

	_, err := svc.Authenticate(context.Background(), "")
	requireKind(t, err, apperr.KindUnauthenticated)

	_, err = svc.Authenticate(context.Background(), "forged")
	requireKind(t, err, apperr.KindUnauthenticated)
}

func TestIdentityService_RegisterByAdmin(t *testing.T) {
	svc := newIdentityService()
	ctx := context.Background()
	admin := principalWith(1, entity.RoleAdmin)

	in := signup("MANAGER")
	user, err := svc.RegisterByAdmin(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleManager, user.Role)

	in.Email = "other@plant.example.com"
	_, err = svc.RegisterByAdmin(ctx, principalWith(2, entity.RoleManager), in)
	appErr := requireKind(t, err, apperr.KindForbidden)
	assert.Equal(t, []string{"Admin"}, appErr.RequiredRoles)

	in.Role = "superuser"
	_, err = svc.RegisterByAdmin(ctx, admin, in)
	appErr = requireKind(t, err, apperr.KindValidation)
	assert.True(t, strings.Contains(appErr.Message, "Inspector, Engineer, Manager, Admin"))

	users, err := svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = svc.ListUsers(ctx, principalWith(2, entity.RoleEngineer))
	requireKind(t, err, apperr.KindForbidden)
}

func TestIdentityService_SeedAdminIsIdempotent(t *testing.T) {
	svc := newIdentityService()
	ctx := context.Background()

	in := RegisterInput{Name: "Admin", Email: "admin@plant.example.com", EmployeeID: "ADM-1", Password: "changeme"}
	require.NoError(t, svc.SeedAdmin(ctx, in))
	require.NoError(t, svc.SeedAdmin(ctx, in))

	session, err := svc.Login(ctx, in.Email, in.Password)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, session.User.Role)

	me, err := svc.Me(ctx, session.User.Principal())
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, me.ID)

	assert.NoError(t, svc.SeedAdmin(ctx, RegisterInput{}), "no seed configured")
}
