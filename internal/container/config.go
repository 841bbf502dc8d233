// Package container provides dependency injection and lifecycle management
// for the NCR tracker.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/export"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/external/lark"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/storage"
)

// Config holds all configuration for the Container.
// Role names are already parsed; see config.ToContainerConfig.
type Config struct {
	Database    DatabaseConfig
	Auth        AuthConfig
	Policy      policy.Config
	NCR         NCRConfig
	Attachments storage.Config
	Export      ExportConfig
	Lark        LarkConfig
	Worker      WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	Issuer     string
	BcryptCost int

	// SeedAdmin is created at startup when Email is set
	SeedAdminName       string
	SeedAdminEmail      string
	SeedAdminEmployeeID string
	SeedAdminPassword   string
}

// NCRConfig holds NCR service switches.
type NCRConfig struct {
	RequireDepartmentFields bool
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	DefaultFormat string
	BaseName      string
	Format        export.Config
}

// LarkConfig holds Lark notification settings.
type LarkConfig struct {
	Enabled bool
	Client  lark.Config
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	OverdueEnabled    bool
	OverdueInterval   time.Duration
	OverdueRunOnStart bool
}

// Validate validates the container configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	if c.Attachments.BaseDir == "" {
		return fmt.Errorf("attachment directory is required")
	}

	if c.Lark.Enabled && c.Lark.Client.ChatID == "" {
		return fmt.Errorf("lark chat id is required when lark is enabled")
	}

	if c.Worker.OverdueEnabled && c.Worker.OverdueInterval <= 0 {
		return fmt.Errorf("overdue interval must be positive")
	}

	return nil
}
