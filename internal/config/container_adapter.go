package config

import (
	"fmt"
	"strings"

	"github.com/garyjia/ncr-tracker/internal/container"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/export"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/external/lark"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/storage"
)

// ToContainerConfig converts the application config to container config.
// Role and status names are parsed here so typos fail at startup.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	pol, err := c.Policy.toPolicy()
	if err != nil {
		return nil, err
	}

	loc, err := export.LoadLocation(c.Export.Timezone)
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Auth: container.AuthConfig{
			JWTSecret:           c.Auth.JWTSecret,
			TokenTTL:            c.Auth.TokenTTL,
			Issuer:              c.Auth.Issuer,
			BcryptCost:          c.Auth.BcryptCost,
			SeedAdminName:       c.Auth.SeedAdmin.Name,
			SeedAdminEmail:      c.Auth.SeedAdmin.Email,
			SeedAdminEmployeeID: c.Auth.SeedAdmin.EmployeeID,
			SeedAdminPassword:   c.Auth.SeedAdmin.Password,
		},
		Policy: pol,
		NCR: container.NCRConfig{
			RequireDepartmentFields: c.Policy.RequireDepartmentFields,
		},
		Attachments: storage.Config{
			BaseDir:           c.Attachments.Dir,
			AllowedExtensions: c.Attachments.AllowedExtensions,
			MaxSizeBytes:      c.Attachments.MaxSizeBytes,
		},
		Export: container.ExportConfig{
			DefaultFormat: strings.ToLower(c.Export.DefaultFormat),
			BaseName:      c.Export.BaseName,
			Format: export.Config{
				DateLayout:     c.Export.DateLayout,
				DateTimeLayout: c.Export.DateTimeLayout,
				Location:       loc,
			},
		},
		Lark: container.LarkConfig{
			Enabled: c.Lark.Enabled,
			Client: lark.Config{
				AppID:         c.Lark.AppID,
				AppSecret:     c.Lark.AppSecret,
				BaseURL:       c.Lark.BaseURL,
				ChatID:        c.Lark.ChatID,
				ReceiveIDType: c.Lark.ReceiveIDType,
			},
		},
		Worker: container.WorkerConfig{
			OverdueEnabled:    c.Worker.OverdueEnabled,
			OverdueInterval:   c.Worker.OverdueInterval,
			OverdueRunOnStart: c.Worker.OverdueRunOnStart,
		},
	}, nil
}

func (p PolicyConfig) toPolicy() (policy.Config, error) {
	cfg := policy.DefaultConfig()

	sets := []struct {
		key  string
		name []string
		dst  *[]entity.Role
	}{
		{"policy.delete_roles", p.DeleteRoles, &cfg.DeleteRoles},
		{"policy.change_status_roles", p.ChangeStatusRoles, &cfg.ChangeStatusRoles},
		{"policy.update_any_roles", p.UpdateAnyRoles, &cfg.UpdateAnyRoles},
		{"policy.register_roles", p.RegisterRoles, &cfg.RegisterRoles},
	}
	for _, s := range sets {
		if len(s.name) == 0 {
			continue
		}
		roles, err := parseRoles(s.key, s.name)
		if err != nil {
			return policy.Config{}, err
		}
		*s.dst = roles
	}

	for name, roleNames := range p.TargetStatusRoles {
		status, ok := entity.ParseStatus(name)
		if !ok {
			return policy.Config{}, fmt.Errorf("policy.target_status_roles: unknown status %q", name)
		}
		roles, err := parseRoles("policy.target_status_roles."+name, roleNames)
		if err != nil {
			return policy.Config{}, err
		}
		cfg.TargetStatusRoles[status] = roles
	}

	return cfg, nil
}

func parseRoles(key string, names []string) ([]entity.Role, error) {
	roles, invalid := entity.ParseRoles(names)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%s: unknown roles %v", key, invalid)
	}
	return roles, nil
}
