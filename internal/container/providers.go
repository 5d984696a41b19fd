// Package container wires the fuel station approval service together and
// owns the lifecycle of its components.
package container

import (
	"fmt"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/dispatcher"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/config"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/metrics"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/repository"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/worker"
	"github.com/briceletutour/AlcomV4-sub001/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components
type DatabaseBundle struct {
	Conn      *database.DB
	TxManager *sqldb.DB
}

// RepositoryBundle groups all repositories
type RepositoryBundle struct {
	Users    port.UserRepository
	Invoices port.InvoiceRepository
	Expenses port.ExpenseRepository
	Prices   port.FuelPriceRepository
	Steps    port.ApprovalStepRepository
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Engine   *service.ApprovalEngine
	Invoices service.InvoiceService
	Expenses service.ExpenseService
	Prices   service.PriceService
	Users    service.UserService
	Inbox    service.InboxService
	Reports  service.ReportService
}

// ServiceDeps are the inputs of ProvideServices
type ServiceDeps struct {
	Approval   config.ApprovalConfig
	Report     config.ReportConfig
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    service.Metrics
	Clock      service.Clock
	Logger     *zap.Logger
}

// ProvideDatabase opens the configured database and applies pending
// migrations
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	conn, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dialect := sqldb.DialectSQLite
	if cfg.Driver == database.DriverPostgres {
		dialect = sqldb.DialectPostgres
	}

	return &DatabaseBundle{
		Conn:      conn,
		TxManager: sqldb.NewDB(conn.DB, dialect, logger),
	}, nil
}

// ProvideRepositories creates the SQL repositories
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Users:    repository.NewUserRepository(db, logger),
		Invoices: repository.NewInvoiceRepository(db, logger),
		Expenses: repository.NewExpenseRepository(db, logger),
		Prices:   repository.NewFuelPriceRepository(db, logger),
		Steps:    repository.NewApprovalStepRepository(db, logger),
	}
}

// ProvideDispatcher creates the event dispatcher with the audit log handler
// subscribed to every event
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	adapter := NewLoggerAdapter(logger.Named("dispatcher"))
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(adapter))
	disp.SubscribeAll("audit", dispatcher.AuditHandler(NewLoggerAdapter(logger.Named("audit"))))
	return disp
}

// ProvideMetrics returns the Prometheus recorder, or nil when metrics are
// disabled
func ProvideMetrics(cfg config.MetricsConfig) *metrics.Recorder {
	if !cfg.Enabled {
		return nil
	}
	return metrics.NewRecorder(cfg.Namespace)
}

// ProvideServices creates the approval engine and the services on top of it
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	policy, err := deps.Approval.Policy()
	if err != nil {
		return nil, fmt.Errorf("invalid approval policy: %w", err)
	}

	logger := NewLoggerAdapter(deps.Logger.Named("service"))
	repos := deps.Repos

	engine := service.NewApprovalEngine(
		service.EngineConfig{Policy: policy, MaxRetries: deps.Approval.MaxRetries},
		repos.Users,
		repos.Steps,
		deps.TxManager,
		deps.Dispatcher,
		deps.Metrics,
		logger,
		deps.Clock,
	)

	return &ServiceBundle{
		Engine:   engine,
		Invoices: service.NewInvoiceService(repos.Invoices, repos.Users, engine, logger),
		Expenses: service.NewExpenseService(repos.Expenses, repos.Users, engine, logger),
		Prices:   service.NewPriceService(repos.Prices, repos.Users, engine, logger),
		Users:    service.NewUserService(repos.Users, deps.Dispatcher, logger),
		Inbox:    service.NewInboxService(repos.Invoices, repos.Expenses, repos.Prices, engine, logger),
		Reports:  service.NewReportService(repos.Steps, deps.Report.SheetName, logger),
	}, nil
}

// ProvideWorkers creates the worker manager and registers enabled workers
func ProvideWorkers(cfg config.WorkerConfig, prices service.PriceService, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger.Named("worker"))

	if pa := cfg.PriceActivation; pa.Enabled {
		manager.Register(worker.NewPriceActivationWorker(worker.PriceActivationConfig{
			PollInterval: pa.PollInterval,
			BatchSize:    pa.BatchSize,
			RunTimeout:   pa.RunTimeout,
		}, prices, logger.Named("price_activation")))
	}

	return manager
}
