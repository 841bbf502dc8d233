// Package policy decides which principals may perform which operations.
// Every role set is configuration; nothing here hard-codes a variant.
package policy

import (
	"fmt"

	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
)

// Operation is an authorizable action
type Operation string

const (
	OpCreate           Operation = "create"
	OpRead             Operation = "read"
	OpUpdate           Operation = "update"
	OpDelete           Operation = "delete"
	OpChangeStatus     Operation = "changeStatus"
	OpRegisterIdentity Operation = "registerNewIdentity"
)

// Config holds the role sets for gated operations
type Config struct {
	// DeleteRoles may hard-delete records (Manager+Admin or Admin-only)
	DeleteRoles []entity.Role

	// ChangeStatusRoles may run status transitions
	ChangeStatusRoles []entity.Role

	// UpdateAnyRoles may update records created by someone else
	UpdateAnyRoles []entity.Role

	// RegisterRoles may create identities with an arbitrary role
	RegisterRoles []entity.Role

	// TargetStatusRoles narrows ChangeStatusRoles for specific targets
	TargetStatusRoles map[entity.Status][]entity.Role
}

// DefaultConfig returns the permissive single-facility defaults
func DefaultConfig() Config {
	return Config{
		DeleteRoles:       []entity.Role{entity.RoleManager, entity.RoleAdmin},
		ChangeStatusRoles: []entity.Role{entity.RoleEngineer, entity.RoleManager, entity.RoleAdmin},
		UpdateAnyRoles:    append([]entity.Role(nil), entity.Roles...),
		RegisterRoles:     []entity.Role{entity.RoleAdmin},
		TargetStatusRoles: map[entity.Status][]entity.Role{},
	}
}

// Policy is a pure authorization predicate over principals
type Policy struct {
	cfg Config
}

// New creates a policy from cfg
func New(cfg Config) *Policy {
	if cfg.TargetStatusRoles == nil {
		cfg.TargetStatusRoles = map[entity.Status][]entity.Role{}
	}
	return &Policy{cfg: cfg}
}

// RequiredRoles returns the roles that unlock op; nil means any authenticated principal
func (p *Policy) RequiredRoles(op Operation) []entity.Role {
	switch op {
	case OpDelete:
		return p.cfg.DeleteRoles
	case OpChangeStatus:
		return p.cfg.ChangeStatusRoles
	case OpRegisterIdentity:
		return p.cfg.RegisterRoles
	default:
		return nil
	}
}

// CanPerform reports whether principal may perform op. ownerID is the creator
// of the target record; it only matters for OpUpdate.
func (p *Policy) CanPerform(principal *entity.Principal, op Operation, ownerID *int64) bool {
	return p.Authorize(principal, op, ownerID) == nil
}

// Authorize is CanPerform returning the Unauthenticated or Forbidden error
func (p *Policy) Authorize(principal *entity.Principal, op Operation, ownerID *int64) error {
	if principal == nil {
		return apperr.Unauthenticated("authentication required")
	}

	switch op {
	case OpCreate, OpRead:
		return nil
	case OpUpdate:
		if ownerID == nil || *ownerID == principal.ID || principal.HasRole(p.cfg.UpdateAnyRoles...) {
			return nil
		}
		return forbidden(op, p.cfg.UpdateAnyRoles)
	case OpDelete, OpChangeStatus, OpRegisterIdentity:
		required := p.RequiredRoles(op)
		if principal.HasRole(required...) {
			return nil
		}
		return forbidden(op, required)
	default:
		return apperr.Forbidden(fmt.Sprintf("unknown operation %q", op), nil)
	}
}

// CanMoveTo reports whether principal may move a report into target
func (p *Policy) CanMoveTo(principal *entity.Principal, target entity.Status) bool {
	return principal.HasRole(p.TargetRoles(target)...)
}

// TargetRoles returns the roles allowed to move a report into target
func (p *Policy) TargetRoles(target entity.Status) []entity.Role {
	if roles, ok := p.cfg.TargetStatusRoles[target]; ok && len(roles) > 0 {
		return roles
	}
	return p.cfg.ChangeStatusRoles
}

// ForbiddenTarget builds the error for a transition blocked by TargetRoles
func (p *Policy) ForbiddenTarget(target entity.Status) error {
	roles := p.TargetRoles(target)
	return apperr.Forbidden(
		fmt.Sprintf("access denied: moving to %q requires one of %v", target, roles),
		RoleNames(roles),
	)
}

// RoleNames converts roles to their wire names
func RoleNames(roles []entity.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func forbidden(op Operation, roles []entity.Role) error {
	return apperr.Forbidden(
		fmt.Sprintf("access denied: %s requires one of %v", op, roles),
		RoleNames(roles),
	)
}
