package sqldb

import (
	"errors"
	"fmt"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// PostgreSQL SQLSTATE codes that mean "another transaction got there first"
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Classify maps driver errors that signal a lost race onto port.ErrConflict,
// keeping the driver error in the chain. Other errors are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %w", port.ErrConflict, err)
	}
	return err
}

// IsConflict reports whether err is a uniqueness, serialization or lock error
func IsConflict(err error) bool {
	if errors.Is(err, port.ErrConflict) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrConstraint:
			return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
	}
	return false
}
