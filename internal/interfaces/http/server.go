// Package http exposes the approval services over a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/approval"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "0.0.0.0:8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services are the application services served by the API
type Services struct {
	Invoices service.InvoiceService
	Expenses service.ExpenseService
	Prices   service.PriceService
	Users    service.UserService
	Inbox    service.InboxService
	Reports  service.ReportService
}

// HealthFunc reports whether the process can serve traffic, with details
type HealthFunc func(ctx context.Context) (bool, interface{})

// Option customizes a Server
type Option func(*Server)

// WithMetrics records request metrics and serves handler on path
func WithMetrics(observer HTTPObserver, handler http.Handler, path string) Option {
	return func(s *Server) {
		s.observer = observer
		s.metricsHandler = handler
		s.metricsPath = path
	}
}

// WithHealth sets the health check used by GET /health
func WithHealth(fn HealthFunc) Option {
	return func(s *Server) {
		s.health = fn
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger

	observer       HTTPObserver
	metricsHandler http.Handler
	metricsPath    string
	health         HealthFunc
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.logger, s.observer))
	s.router.Use(corsMiddleware(s.config.CORSOrigins))
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", s.healthCheck)
	if s.metricsHandler != nil && s.metricsPath != "" {
		s.router.GET(s.metricsPath, gin.WrapH(s.metricsHandler))
	}

	api := s.router.Group("/api/v1", identityMiddleware(s.services.Users, s.logger))

	invoices := api.Group("/invoices")
	{
		invoices.POST("", h.CreateInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.PUT("/:id/approve", h.approve(s.services.Invoices))
		invoices.PUT("/:id/reject", h.reject(s.services.Invoices))
		invoices.PUT("/:id/pay", h.PayInvoice)
	}

	expenses := api.Group("/expenses")
	{
		expenses.POST("", h.CreateExpense)
		expenses.GET("", h.ListExpenses)
		expenses.GET("/:id", h.GetExpense)
		expenses.PUT("/:id/approve", h.approve(s.services.Expenses))
		expenses.PUT("/:id/reject", h.reject(s.services.Expenses))
		expenses.PUT("/:id/disburse", h.DisburseExpense)
	}

	senior := requireRole(approval.IsSenior, "fuel prices are managed by senior roles", s.logger)
	prices := api.Group("/prices")
	{
		prices.GET("", h.ListPrices)
		prices.GET("/:id", h.GetPrice)
		prices.POST("", senior, h.CreatePrice)
		prices.PUT("/:id/approve", senior, h.approve(s.services.Prices))
		prices.PUT("/:id/reject", senior, h.reject(s.services.Prices))
	}

	users := api.Group("/users")
	{
		users.POST("", requireRole(func(r entity.Role) bool { return r == entity.RoleSuperAdmin },
			"only a super admin can create users", s.logger), h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.POST("/:id/delegate", h.Delegate)
		users.DELETE("/:id/delegate", h.ClearDelegation)
	}

	api.GET("/approvals/pending", h.PendingApprovals)
	api.GET("/reports/approvals.xlsx", h.ExportLedger)

	s.router.NoRoute(func(c *gin.Context) {
		respondError(c, s.logger, apperror.New(apperror.CodeNotFound, "route not found"))
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.health == nil {
		respond(c, http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
		return
	}

	healthy, details := s.health(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{Success: healthy, Data: details})
}

// Start starts the HTTP server and blocks until ctx is done or the listener
// fails
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.config.Addr)

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
	return s.config.Addr
}
