package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/application/dispatcher"
	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/application/service"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  port.Clock

	// Infrastructure - Data
	database     *DatabaseBundle
	repositories *RepositoryBundle

	// Infrastructure - Identity, storage, notifications
	identity    *IdentityBundle
	attachments port.AttachmentStore
	notifier    port.Notifier

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	NCR       port.NCRRepository
	Sequence  port.SequenceRepository
	Rejection port.RejectionRepository
	User      port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	NCR       service.NCRService
	Rejection service.RejectionService
	Identity  service.IdentityService
	Reminder  service.ReminderService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customizes a Container.
type Option func(*Container)

// WithClock replaces the system clock.
func WithClock(clock port.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		clock:  service.SystemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Identity (tokens, hashing, seed admin)
// 3. Attachment storage
// 4. Notifier and event dispatcher
// 5. Application services
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	// Step 2: Initialize identity
	if err := c.initIdentity(); err != nil {
		return fmt.Errorf("failed to initialize identity: %w", err)
	}
	c.logger.Info("Identity initialized")

	// Step 3: Initialize storage
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	// Step 4: Initialize notifier and dispatcher
	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	// Step 5: Initialize application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 6: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
// It is safe to call after a failed Start.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 6)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Drain the dispatcher so queued notifications finish (reverse of step 4)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.database != nil && c.database.SqlDB != nil {
		if err := c.database.SqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.database == nil:
		set("database", ComponentHealth{Healthy: false, Message: "not initialized"})
	case c.database.SqlDB == nil:
		set("database", ComponentHealth{Healthy: true, Message: "in-memory"})
	default:
		if err := c.database.SqlDB.PingContext(context.Background()); err != nil {
			set("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	// Check workers
	if c.workers != nil {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	} else {
		set("workers", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	// Check dispatcher
	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	// Check services
	if c.services != nil {
		set("services", ComponentHealth{Healthy: true})
	} else {
		set("services", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle

	repos, err := ProvideRepositories(bundle, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	c.repositories = repos

	return nil
}

// initIdentity creates the token provider and hasher. The admin seed runs
// after services exist; see initServices.
func (c *Container) initIdentity() error {
	identity, err := ProvideIdentity(&c.config.Auth, c.clock)
	if err != nil {
		return err
	}
	c.identity = identity
	return nil
}

// initStorage creates the attachment store.
func (c *Container) initStorage() error {
	store, err := ProvideAttachmentStore(c.config.Attachments, c.logger)
	if err != nil {
		return err
	}
	c.attachments = store
	return nil
}

// initDispatcher creates the notifier and the dispatcher that delivers to it.
func (c *Container) initDispatcher() error {
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.notifier = notifier
	c.dispatcher = ProvideDispatcher(notifier, c.logger)
	return nil
}

// initServices creates the application services and seeds the admin identity.
func (c *Container) initServices() error {
	c.services = ProvideServices(ServiceDeps{
		Config:      c.config,
		DB:          c.database,
		Repos:       c.repositories,
		Identity:    c.identity,
		Attachments: c.attachments,
		Exporters:   ProvideExporters(&c.config.Export, c.logger),
		Events:      c.dispatcher,
		Clock:       c.clock,
	}, c.logger)

	auth := c.config.Auth
	if auth.SeedAdminEmail == "" {
		return nil
	}
	return c.services.Identity.SeedAdmin(c.ctx, service.RegisterInput{
		Name:       auth.SeedAdminName,
		Email:      auth.SeedAdminEmail,
		EmployeeID: auth.SeedAdminEmployeeID,
		Password:   auth.SeedAdminPassword,
	})
}

// initWorkers creates and starts background workers.
func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(&c.config.Worker, c.services.Reminder, c.logger)
	return c.workers.StartAll(c.ctx)
}

// Accessor methods

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// SqlDB returns the SQLite handle, or nil for the memory driver.
func (c *Container) SqlDB() *sql.DB {
	if c.database == nil {
		return nil
	}
	return c.database.SqlDB
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the configuration.
func (c *Container) Config() *Config {
	return c.config
}
