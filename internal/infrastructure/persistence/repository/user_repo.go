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

const userColumns = `id, email, full_name, role, is_active, line_manager_id,
	backup_approver_id, delegation_start, delegation_end, created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	base
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		base:   base{db: db},
		logger: logger,
	}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	id, err := r.insertReturningID(ctx, `
		INSERT INTO users (
			email, full_name, role, is_active, line_manager_id,
			backup_approver_id, delegation_start, delegation_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		nullableInt64(user.LineManagerID),
		nullableInt64(user.BackupApproverID),
		nullableTime(user.DelegationStart),
		nullableTime(user.DelegationEnd),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.exec(ctx).QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)

	user, err := scanUser(row)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.exec(ctx).QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// ListByRole returns every user holding role, active or not
func (r *UserRepository) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	rows, err := r.exec(ctx).QueryContext(ctx,
		r.q(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id`), role)
	if err != nil {
		r.logger.Error("Failed to list users by role", zap.String("role", role.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// List returns users ordered by id
func (r *UserRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.User, error) {
	limit, offset := normalizePage(filter)

	rows, err := r.exec(ctx).QueryContext(ctx,
		r.q(`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// SetDelegation stores or clears a user's backup approver window
func (r *UserRepository) SetDelegation(ctx context.Context, userID int64, d *entity.Delegation) error {
	var backup, start, end interface{}
	if d != nil {
		backup, start, end = d.BackupApproverID, d.Start.UTC(), d.End.UTC()
	}

	result, err := r.exec(ctx).ExecContext(ctx, r.q(`
		UPDATE users
		SET backup_approver_id = ?, delegation_start = ?, delegation_end = ?, updated_at = ?
		WHERE id = ?`),
		backup, start, end, time.Now().UTC(), userID,
	)
	if err != nil {
		r.logger.Error("Failed to set delegation", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to set delegation: %w", sqldb.Classify(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to set delegation for user %d: %w", userID, port.ErrNotFound)
	}
	return nil
}

func collectUsers(rows *sql.Rows) ([]*entity.User, error) {
	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u           entity.User
		lineManager sql.NullInt64
		backup      sql.NullInt64
		delegStart  sql.NullTime
		delegEnd    sql.NullTime
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&lineManager,
		&backup,
		&delegStart,
		&delegEnd,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	u.LineManagerID = int64Ptr(lineManager)
	u.BackupApproverID = int64Ptr(backup)
	u.DelegationStart = timePtr(delegStart)
	u.DelegationEnd = timePtr(delegEnd)
	return &u, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
