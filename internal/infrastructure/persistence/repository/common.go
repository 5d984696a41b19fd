package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
)

const (
	dateLayout       = "2006-01-02"
	defaultListLimit = 50
	maxListLimit     = 500
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// base holds what every repository shares: the connection and its dialect
type base struct {
	db *sqldb.DB
}

func (b base) exec(ctx context.Context) sqldb.Executor {
	return b.db.Executor(ctx)
}

func (b base) q(query string) string {
	return b.db.Rebind(query)
}

// insertReturningID runs an INSERT ... RETURNING id statement
func (b base) insertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := b.exec(ctx).QueryRowContext(ctx, b.q(query), args...).Scan(&id); err != nil {
		return 0, sqldb.Classify(err)
	}
	return id, nil
}

// updateVersioned runs an UPDATE guarded by "AND version = ?" and reports a
// conflict when no row matched
func (b base) updateVersioned(ctx context.Context, query string, args ...interface{}) error {
	result, err := b.exec(ctx).ExecContext(ctx, b.q(query), args...)
	if err != nil {
		return sqldb.Classify(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: stale version", port.ErrConflict)
	}
	return nil
}

// notFound maps sql.ErrNoRows onto port.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	return err
}

func normalizePage(filter port.ListFilter) (limit, offset int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = filter.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func dateParam(t time.Time) string {
	return t.Format(dateLayout)
}

func nullableDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dateParam(*t)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
