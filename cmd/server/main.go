package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/briceletutour/AlcomV4-sub001/internal/config"
	"github.com/briceletutour/AlcomV4-sub001/internal/container"
	httpapi "github.com/briceletutour/AlcomV4-sub001/internal/interfaces/http"
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fuel station approvals: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "fuel-approvals",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting fuel station approval service",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("database", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close application", zap.Error(err))
		}
	}()

	svc := app.Services()
	opts := []httpapi.Option{
		httpapi.WithHealth(func(ctx context.Context) (bool, interface{}) {
			h := app.Health(ctx)
			return h.Overall, h
		}),
	}
	if rec := app.Metrics(); rec != nil {
		opts = append(opts, httpapi.WithMetrics(rec, rec.Handler(), cfg.Metrics.Path))
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.Server.Addr(),
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, httpapi.Services{
		Invoices: svc.Invoices,
		Expenses: svc.Expenses,
		Prices:   svc.Prices,
		Users:    svc.Users,
		Inbox:    svc.Inbox,
		Reports:  svc.Reports,
	}, container.NewLoggerAdapter(logger.Named("http")), opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Server exited successfully")
	return nil
}
