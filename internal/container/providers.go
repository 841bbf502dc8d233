package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/application/service"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/auth"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/export"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/external/lark"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/memory"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/storage"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/worker"
	"github.com/garyjia/ncr-tracker/pkg/database"
	"github.com/garyjia/ncr-tracker/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr port.TransactionManager
}

// IdentityBundle holds token and password components.
type IdentityBundle struct {
	Tokens *auth.JWTProvider
	Hasher *auth.BcryptHasher
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
// The memory driver returns a bundle with no SqlDB.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == "memory" {
		logger.Info("Using in-memory store")
		return &DatabaseBundle{TransactionMgr: memory.NewTxManager()}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsFrom(ctx, os.DirFS(cfg.MigrationsDir), ".")
	} else {
		err = migrator.RunMigrations(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories for the bundle's backend.
func ProvideRepositories(bundle *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if bundle == nil {
		return nil, fmt.Errorf("database bundle is required")
	}

	if bundle.SqlDB == nil {
		return &RepositoryBundle{
			NCR:       memory.NewNCRRepository(),
			Sequence:  memory.NewSequenceRepository(),
			Rejection: memory.NewRejectionRepository(),
			User:      memory.NewUserRepository(),
		}, nil
	}

	return &RepositoryBundle{
		NCR:       repository.NewNCRRepository(bundle.SqlDB, logger),
		Sequence:  repository.NewSequenceRepository(bundle.SqlDB, logger),
		Rejection: repository.NewRejectionRepository(bundle.SqlDB, logger),
		User:      repository.NewUserRepository(bundle.SqlDB, logger),
	}, nil
}

// ProvideIdentity creates the JWT provider and the bcrypt hasher.
func ProvideIdentity(cfg *AuthConfig, clock port.Clock) (*IdentityBundle, error) {
	tokens, err := auth.NewJWTProvider(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.Issuer,
	}, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create token provider: %w", err)
	}

	return &IdentityBundle{
		Tokens: tokens,
		Hasher: auth.NewBcryptHasher(cfg.BcryptCost),
	}, nil
}

// ProvideAttachmentStore creates the local attachment directory store.
func ProvideAttachmentStore(cfg storage.Config, logger *zap.Logger) (port.AttachmentStore, error) {
	store, err := storage.NewLocalAttachmentStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment store: %w", err)
	}
	return store, nil
}

// ProvideNotifier creates the Lark notifier, or a no-op one when Lark is disabled.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if !cfg.Enabled {
		logger.Info("Lark notifications disabled")
		return lark.NoopNotifier{}, nil
	}

	client := lark.NewSDKClient(cfg.Client, logger)
	notifier, err := lark.NewNotifier(client, cfg.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark notifier: %w", err)
	}

	logger.Info("Lark notifications enabled", zap.String("chat_id", cfg.Client.ChatID))
	return notifier, nil
}

// ProvideExporters creates the tabular exporters in preference order.
func ProvideExporters(cfg *ExportConfig, logger *zap.Logger) []port.TabularExporter {
	return []port.TabularExporter{
		export.NewXLSXExporter(cfg.Format, logger),
		export.NewCSVExporter(cfg.Format),
	}
}

// ProvideDispatcher creates the event dispatcher and subscribes the notification handlers.
func ProvideDispatcher(notifier port.Notifier, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	service.RegisterNotificationHandlers(d, notifier)
	return d
}

// ServiceDeps carries everything ProvideServices wires together.
type ServiceDeps struct {
	Config      *Config
	DB          *DatabaseBundle
	Repos       *RepositoryBundle
	Identity    *IdentityBundle
	Attachments port.AttachmentStore
	Exporters   []port.TabularExporter
	Events      dispatcher.Publisher
	Clock       port.Clock
}

// ProvideServices creates all application services.
func ProvideServices(deps ServiceDeps, logger *zap.Logger) *ServiceBundle {
	svcLogger := utils.NewKVLogger(logger)
	pol := policy.New(deps.Config.Policy)

	return &ServiceBundle{
		NCR: service.NewNCRService(
			service.NCRServiceConfig{
				RequireDepartmentFields: deps.Config.NCR.RequireDepartmentFields,
				DefaultExportFormat:     deps.Config.Export.DefaultFormat,
				ExportBaseName:          deps.Config.Export.BaseName,
			},
			deps.Repos.NCR,
			deps.Repos.Sequence,
			deps.DB.TransactionMgr,
			deps.Attachments,
			deps.Exporters,
			pol,
			deps.Events,
			deps.Clock,
			svcLogger,
		),
		Rejection: service.NewRejectionService(
			deps.Repos.Rejection,
			deps.Attachments,
			pol,
			deps.Events,
			deps.Clock,
			svcLogger,
		),
		Identity: service.NewIdentityService(
			deps.Repos.User,
			deps.Identity.Hasher,
			deps.Identity.Tokens,
			pol,
			deps.Clock,
			svcLogger,
		),
		Reminder: service.NewReminderService(
			deps.Repos.NCR,
			deps.Events,
			deps.Clock,
			svcLogger,
		),
	}
}

// ProvideWorkers creates the worker manager with the configured workers registered.
func ProvideWorkers(cfg *WorkerConfig, reminder worker.Reminder, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)

	if cfg.OverdueEnabled {
		manager.Register(worker.NewOverdueWorker(worker.OverdueWorkerConfig{
			Interval:   cfg.OverdueInterval,
			RunOnStart: cfg.OverdueRunOnStart,
		}, reminder, logger))
	} else {
		logger.Info("Overdue reminder worker disabled")
	}

	return manager
}
