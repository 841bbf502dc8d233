// Package config loads application configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Export      ExportConfig      `mapstructure:"export"`
	Lark        LarkConfig        `mapstructure:"lark"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ExposeErrors    bool          `mapstructure:"expose_errors"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds token and bootstrap-identity settings
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	SeedAdmin  SeedAdmin     `mapstructure:"seed_admin"`
}

// SeedAdmin is created at startup when Email is set and unused
type SeedAdmin struct {
	Name       string `mapstructure:"name"`
	Email      string `mapstructure:"email"`
	EmployeeID string `mapstructure:"employee_id"`
	Password   string `mapstructure:"password"`
}

// PolicyConfig holds the role sets; values are role names
type PolicyConfig struct {
	DeleteRoles             []string            `mapstructure:"delete_roles"`
	ChangeStatusRoles       []string            `mapstructure:"change_status_roles"`
	UpdateAnyRoles          []string            `mapstructure:"update_any_roles"`
	RegisterRoles           []string            `mapstructure:"register_roles"`
	TargetStatusRoles       map[string][]string `mapstructure:"target_status_roles"`
	RequireDepartmentFields bool                `mapstructure:"require_department_fields"`
}

// AttachmentsConfig holds the upload store settings
type AttachmentsConfig struct {
	Dir               string   `mapstructure:"dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxSizeBytes      int64    `mapstructure:"max_size_bytes"`
}

// ExportConfig holds report export settings
type ExportConfig struct {
	DefaultFormat  string `mapstructure:"default_format"`
	BaseName       string `mapstructure:"base_name"`
	DateLayout     string `mapstructure:"date_layout"`
	DateTimeLayout string `mapstructure:"datetime_layout"`
	Timezone       string `mapstructure:"timezone"`
}

// LarkConfig holds Lark notification settings
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ChatID        string `mapstructure:"chat_id"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	OverdueEnabled    bool          `mapstructure:"overdue_enabled"`
	OverdueInterval   time.Duration `mapstructure:"overdue_interval"`
	OverdueRunOnStart bool          `mapstructure:"overdue_run_on_start"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error; a malformed one is.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.New(), configPath, ".env")
}

// LoadWith loads configuration into v, reading envFile first when it exists
func LoadWith(v *viper.Viper, configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 12<<20)
	v.SetDefault("server.expose_errors", false)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/ncr.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.issuer", "ncr-tracker")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.seed_admin.name", "Administrator")
	v.SetDefault("auth.seed_admin.email", "")
	v.SetDefault("auth.seed_admin.employee_id", "ADMIN")
	v.SetDefault("auth.seed_admin.password", "")

	// Policy defaults
	v.SetDefault("policy.delete_roles", []string{"Manager", "Admin"})
	v.SetDefault("policy.change_status_roles", []string{"Engineer", "Manager", "Admin"})
	v.SetDefault("policy.update_any_roles", []string{"Inspector", "Engineer", "Manager", "Admin"})
	v.SetDefault("policy.register_roles", []string{"Admin"})
	v.SetDefault("policy.target_status_roles", map[string][]string{})
	v.SetDefault("policy.require_department_fields", false)

	// Attachment defaults
	v.SetDefault("attachments.dir", "uploads")
	v.SetDefault("attachments.allowed_extensions", []string{"jpeg", "jpg", "png", "gif", "pdf", "doc", "docx"})
	v.SetDefault("attachments.max_size_bytes", 10<<20)

	// Export defaults
	v.SetDefault("export.default_format", "xlsx")
	v.SetDefault("export.base_name", "ncr_reports")
	v.SetDefault("export.date_layout", "2006-01-02")
	v.SetDefault("export.datetime_layout", "2006-01-02 15:04:05")
	v.SetDefault("export.timezone", "UTC")

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "")
	v.SetDefault("lark.chat_id", "")
	v.SetDefault("lark.receive_id_type", "chat_id")

	// Worker defaults
	v.SetDefault("worker.overdue_enabled", true)
	v.SetDefault("worker.overdue_interval", 24*time.Hour)
	v.SetDefault("worker.overdue_run_on_start", false)
}

// bindEnvVars binds secrets to their conventional environment names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.seed_admin.email", "ADMIN_EMAIL")
	_ = v.BindEnv("auth.seed_admin.password", "ADMIN_PASSWORD")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.chat_id", "LARK_CHAT_ID")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite or memory, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.SeedAdmin.Email != "" && c.Auth.SeedAdmin.Password == "" {
		return fmt.Errorf("auth.seed_admin.password is required when auth.seed_admin.email is set")
	}

	if c.Attachments.Dir == "" {
		return fmt.Errorf("attachments.dir is required")
	}

	switch strings.ToLower(c.Export.DefaultFormat) {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("export.default_format must be csv or xlsx, got %q", c.Export.DefaultFormat)
	}
	if _, err := time.LoadLocation(c.Export.Timezone); err != nil {
		return fmt.Errorf("export.timezone: %w", err)
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("lark.chat_id is required when lark is enabled")
		}
	}

	if c.Worker.OverdueEnabled && c.Worker.OverdueInterval <= 0 {
		return fmt.Errorf("worker.overdue_interval must be positive")
	}

	return nil
}
