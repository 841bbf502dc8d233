// Package http exposes the NCR tracker over a JSON API.
// Handlers translate requests into application service calls and nothing more.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ncr-tracker/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps request bodies, uploads included
	MaxBodyBytes int64

	// ExposeErrors returns storage error details to clients
	ExposeErrors bool

	// Mode is the gin mode: debug, release or test
	Mode string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    12 << 20,
		Mode:            gin.ReleaseMode,
	}
}

// Services are the application services the API fronts
type Services struct {
	NCR        service.NCRService
	Rejections service.RejectionService
	Identity   service.IdentityService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxBodyBytes

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.config.MaxBodyBytes > 0 {
		s.router.Use(bodyLimit(s.config.MaxBodyBytes))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.ExposeErrors, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.GET("/me", h.authenticate(), h.Me)
		auth.POST("/users", h.authenticate(), h.RegisterUser)
		auth.GET("/users", h.authenticate(), h.ListUsers)
	}

	ncr := api.Group("/ncr", h.authenticate())
	{
		ncr.POST("", h.CreateNCR)
		ncr.POST("/create", h.CreateNCR)
		ncr.GET("", h.ListNCRs)
		ncr.GET("/summary", h.SummarizeNCRs)
		ncr.GET("/export", h.ExportNCRs)
		ncr.GET("/:id", h.GetNCR)
		ncr.PUT("/:id", h.UpdateNCR)
		ncr.PATCH("/:id/status", h.ChangeNCRStatus)
		ncr.DELETE("/:id", h.DeleteNCR)
		ncr.GET("/:id/attachment", h.DownloadAttachment)
	}

	rejections := api.Group("/rejections", h.authenticate())
	{
		rejections.POST("", h.CreateRejection)
		rejections.POST("/create", h.CreateRejection)
		rejections.GET("", h.ListRejections)
		rejections.GET("/:id", h.GetRejection)
		rejections.DELETE("/:id", h.DeleteRejection)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
