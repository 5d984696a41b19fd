package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

const fuelPriceColumns = `id, fuel_type, price, effective_date, comment, created_by_id, status,
	is_active, activated_at, deactivated_at, idempotency_key, version, created_at, updated_at`

// FuelPriceRepository implements port.FuelPriceRepository
type FuelPriceRepository struct {
	base
	logger *zap.Logger
}

// NewFuelPriceRepository creates a new fuel price repository
func NewFuelPriceRepository(db *sqldb.DB, logger *zap.Logger) *FuelPriceRepository {
	return &FuelPriceRepository{
		base:   base{db: db},
		logger: logger,
	}
}

// Create inserts a proposed price at version 1
func (r *FuelPriceRepository) Create(ctx context.Context, p *entity.FuelPrice) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt, p.Version = now, now, 1

	id, err := r.insertReturningID(ctx, `
		INSERT INTO fuel_prices (
			fuel_type, price, effective_date, comment, created_by_id, status,
			is_active, idempotency_key, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.FuelType,
		p.Price,
		dateParam(p.EffectiveDate),
		p.Comment,
		p.CreatedByID,
		p.Status,
		p.IsActive,
		nullableString(p.IdempotencyKey),
		p.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create fuel price", zap.String("fuel_type", string(p.FuelType)), zap.Error(err))
		return fmt.Errorf("failed to create fuel price: %w", err)
	}

	p.ID = id
	return nil
}

// GetByID retrieves a fuel price by ID
func (r *FuelPriceRepository) GetByID(ctx context.Context, id int64) (*entity.FuelPrice, error) {
	return r.getOne(ctx, `SELECT `+fuelPriceColumns+` FROM fuel_prices WHERE id = ?`, id)
}

// GetForUpdate retrieves a fuel price and locks its row inside a transaction
func (r *FuelPriceRepository) GetForUpdate(ctx context.Context, id int64) (*entity.FuelPrice, error) {
	return r.getOne(ctx, `SELECT `+fuelPriceColumns+` FROM fuel_prices WHERE id = ?`+r.db.ForUpdate(ctx), id)
}

// GetByIdempotencyKey retrieves the price created with key
func (r *FuelPriceRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.FuelPrice, error) {
	return r.getOne(ctx, `SELECT `+fuelPriceColumns+` FROM fuel_prices WHERE idempotency_key = ?`, key)
}

// FindOpen returns a proposal for the same fuel and date that is neither
// rejected nor activated yet
func (r *FuelPriceRepository) FindOpen(ctx context.Context, fuelType entity.FuelType, effectiveDate time.Time) (*entity.FuelPrice, error) {
	return r.getOne(ctx, `
		SELECT `+fuelPriceColumns+` FROM fuel_prices
		WHERE fuel_type = ? AND effective_date = ? AND status <> ? AND activated_at IS NULL
		ORDER BY id LIMIT 1`,
		fuelType, dateParam(effectiveDate), entity.StatusRejected)
}

// GetActive returns the active price of a fuel type
func (r *FuelPriceRepository) GetActive(ctx context.Context, fuelType entity.FuelType) (*entity.FuelPrice, error) {
	return r.getOne(ctx, `SELECT `+fuelPriceColumns+` FROM fuel_prices WHERE fuel_type = ? AND is_active = ?`+r.db.ForUpdate(ctx),
		fuelType, true)
}

// ListDueForActivation returns approved, never activated prices whose
// effective date is on or before asOf, oldest first
func (r *FuelPriceRepository) ListDueForActivation(ctx context.Context, asOf time.Time, limit int) ([]*entity.FuelPrice, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.exec(ctx).QueryContext(ctx, r.q(`
		SELECT `+fuelPriceColumns+` FROM fuel_prices
		WHERE status = ? AND activated_at IS NULL AND effective_date <= ?
		ORDER BY effective_date, id LIMIT ?`),
		entity.StatusApproved, dateParam(asOf), limit)
	if err != nil {
		r.logger.Error("Failed to list prices due for activation", zap.Error(err))
		return nil, fmt.Errorf("failed to list due prices: %w", err)
	}
	defer rows.Close()

	return collectFuelPrices(rows)
}

// List returns prices newest first, optionally filtered by status
func (r *FuelPriceRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.FuelPrice, error) {
	limit, offset := normalizePage(filter)

	query := `SELECT ` + fuelPriceColumns + ` FROM fuel_prices`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.exec(ctx).QueryContext(ctx, r.q(query), args...)
	if err != nil {
		r.logger.Error("Failed to list fuel prices", zap.Error(err))
		return nil, fmt.Errorf("failed to list fuel prices: %w", err)
	}
	defer rows.Close()

	return collectFuelPrices(rows)
}

// Update writes status and activation fields under optimistic locking
func (r *FuelPriceRepository) Update(ctx context.Context, p *entity.FuelPrice) error {
	now := time.Now().UTC()

	err := r.updateVersioned(ctx, `
		UPDATE fuel_prices
		SET status = ?, is_active = ?, activated_at = ?, deactivated_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Status,
		p.IsActive,
		nullableTime(p.ActivatedAt),
		nullableTime(p.DeactivatedAt),
		now,
		p.ID,
		p.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update fuel price", zap.Int64("id", p.ID), zap.Int64("version", p.Version), zap.Error(err))
		return fmt.Errorf("failed to update fuel price %d: %w", p.ID, err)
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

func (r *FuelPriceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.FuelPrice, error) {
	p, err := scanFuelPrice(r.exec(ctx).QueryRowContext(ctx, r.q(query), args...))
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			r.logger.Error("Failed to get fuel price", zap.Any("args", args), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to get fuel price: %w", err)
	}
	return p, nil
}

func collectFuelPrices(rows *sql.Rows) ([]*entity.FuelPrice, error) {
	var prices []*entity.FuelPrice
	for rows.Next() {
		p, err := scanFuelPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fuel price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func scanFuelPrice(row rowScanner) (*entity.FuelPrice, error) {
	var (
		p              entity.FuelPrice
		activatedAt    sql.NullTime
		deactivatedAt  sql.NullTime
		idempotencyKey sql.NullString
	)

	err := row.Scan(
		&p.ID,
		&p.FuelType,
		&p.Price,
		&p.EffectiveDate,
		&p.Comment,
		&p.CreatedByID,
		&p.Status,
		&p.IsActive,
		&activatedAt,
		&deactivatedAt,
		&idempotencyKey,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	p.ActivatedAt = timePtr(activatedAt)
	p.DeactivatedAt = timePtr(deactivatedAt)
	p.IdempotencyKey = stringPtr(idempotencyKey)
	return &p, nil
}

// Verify interface compliance
var _ port.FuelPriceRepository = (*FuelPriceRepository)(nil)
