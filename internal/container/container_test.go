package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/config"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(t.TempDir(), "container.db"),
		},
		Approval: config.ApprovalConfig{CFOThreshold: "5000000", FinanceThreshold: "500000", MaxRetries: 3},
		Worker: config.WorkerConfig{PriceActivation: config.PriceActivationConfig{
			Enabled:      true,
			PollInterval: time.Hour,
			BatchSize:    10,
		}},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "test"},
	}
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.Equal(t, 1, c.Workers().WorkerCount())
	assert.NotNil(t, c.Metrics())

	// End to end through the wired services and SQLite
	svc := c.Services()
	accountant, err := svc.Users.Create(ctx, service.CreateUserInput{Email: "acc@station.example", FullName: "Accountant", Role: entity.RoleAccountant})
	require.NoError(t, err)
	fd, err := svc.Users.Create(ctx, service.CreateUserInput{Email: "fd@station.example", FullName: "Finance Director", Role: entity.RoleFinanceDirector})
	require.NoError(t, err)

	exp, err := svc.Expenses.Create(ctx, accountant.ID, service.CreateExpenseInput{
		Category: "SUPPLIES",
		Amount:   decimal.NewFromInt(12500),
	})
	require.NoError(t, err)

	result, err := svc.Expenses.Approve(ctx, exp.Expense.ID, fd.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, result.Status)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	adapter := NewLoggerAdapter(zap.New(core))

	adapter.Info("Approval step recorded", "request_id", int64(7), 42, "ignored", "status", "APPROVED")
	adapter.Error("Failed", "error", assert.AnError)

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(7), fields["request_id"])
	assert.Equal(t, "APPROVED", fields["status"])
	assert.Len(t, fields, 2)
	assert.Equal(t, assert.AnError.Error(), entries[1].ContextMap()["error"])
}
