package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/pkg/utils"
)

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 6

// RegisterInput carries a new identity. Role is ignored on self-signup.
type RegisterInput struct {
	Name       string
	Email      string
	EmployeeID string
	Password   string
	Role       string
}

// Session is the result of a successful signup or login
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *entity.User `json:"user"`
}

// IdentityService registers users and exchanges credentials for tokens
type IdentityService interface {
	// Register self-registers an Inspector and logs them in
	Register(ctx context.Context, input RegisterInput) (*Session, error)

	// RegisterByAdmin creates an identity with any role
	RegisterByAdmin(ctx context.Context, principal *entity.Principal, input RegisterInput) (*entity.User, error)

	// Login verifies credentials and issues a token
	Login(ctx context.Context, email, password string) (*Session, error)

	// Authenticate resolves a bearer token to a principal
	Authenticate(ctx context.Context, token string) (*entity.Principal, error)

	// Me returns the stored user behind principal
	Me(ctx context.Context, principal *entity.Principal) (*entity.User, error)

	// ListUsers returns every identity; same permission as RegisterByAdmin
	ListUsers(ctx context.Context, principal *entity.Principal) ([]*entity.User, error)

	// SeedAdmin creates an Admin with input's credentials unless the email is taken
	SeedAdmin(ctx context.Context, input RegisterInput) error
}

type identityServiceImpl struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	provider port.IdentityProvider
	policy   *policy.Policy
	clock    port.Clock
	logger   Logger
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	provider port.IdentityProvider,
	pol *policy.Policy,
	clock port.Clock,
	logger Logger,
) IdentityService {
	return &identityServiceImpl{
		users:    users,
		hasher:   hasher,
		provider: provider,
		policy:   pol,
		clock:    clock,
		logger:   logger,
	}
}

func (s *identityServiceImpl) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := s.create(ctx, input, entity.RoleInspector)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, user)
}

func (s *identityServiceImpl) RegisterByAdmin(ctx context.Context, principal *entity.Principal, input RegisterInput) (*entity.User, error) {
	if err := s.policy.Authorize(principal, policy.OpRegisterIdentity, nil); err != nil {
		return nil, err
	}

	role := entity.RoleInspector
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := entity.ParseRole(input.Role)
		if !ok {
			return nil, apperr.Validation(
				fmt.Sprintf("invalid role %q; valid values: %s", input.Role, strings.Join(policy.RoleNames(entity.Roles), ", ")),
				"role")
		}
		role = parsed
	}

	user, err := s.create(ctx, input, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Identity registered by admin", "user_id", user.ID, "role", user.Role, "registered_by", principal.ID)
	return user, nil
}

func (s *identityServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation("email and password are required", "email", "password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("Failed to load user", "error", err)
		return nil, apperr.Storage("load user", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Info("Login rejected", "email", entity.NormalizeEmail(email))
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return s.session(ctx, user)
}

func (s *identityServiceImpl) Authenticate(ctx context.Context, token string) (*entity.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Unauthenticated("no token provided")
	}
	principal, err := s.provider.Authenticate(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthenticated) {
			return nil, err
		}
		return nil, apperr.Unauthenticated("invalid token")
	}
	return principal, nil
}

func (s *identityServiceImpl) Me(ctx context.Context, principal *entity.Principal) (*entity.User, error) {
	if principal == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, apperr.Storage("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user", principal.ID)
	}
	return user, nil
}

func (s *identityServiceImpl) ListUsers(ctx context.Context, principal *entity.Principal) ([]*entity.User, error) {
	if err := s.policy.Authorize(principal, policy.OpRegisterIdentity, nil); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Storage("list users", err)
	}
	return users, nil
}

func (s *identityServiceImpl) SeedAdmin(ctx context.Context, input RegisterInput) error {
	if strings.TrimSpace(input.Email) == "" {
		return nil
	}
	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return fmt.Errorf("check seed admin: %w", err)
	}
	if existing != nil {
		s.logger.Info("Seed admin already exists", "user_id", existing.ID)
		return nil
	}

	user, err := s.create(ctx, input, entity.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	s.logger.Info("Seed admin created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (s *identityServiceImpl) create(ctx context.Context, input RegisterInput, role entity.Role) (*entity.User, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", input.Name},
		{"email", input.Email},
		{"employee_id", input.EmployeeID},
		{"password", input.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.MissingFields(missing)
	}

	email := entity.NormalizeEmail(input.Email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error(), "email")
	}
	if err := utils.ValidatePassword(input.Password, MinPasswordLength); err != nil {
		return nil, apperr.Validation(err.Error(), "password")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Storage("check email", err)
	}
	if existing != nil {
		return nil, apperr.Validation("email already registered", "email")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Storage("hash password", err)
	}

	user := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		EmployeeID:   strings.TrimSpace(input.EmployeeID),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "email", email)
		return nil, apperr.Storage("create user", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *identityServiceImpl) session(ctx context.Context, user *entity.User) (*Session, error) {
	token, expiresAt, err := s.provider.Issue(ctx, user.Principal())
	if err != nil {
		s.logger.Error("Failed to issue token", "error", err, "user_id", user.ID)
		return nil, apperr.Storage("issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
