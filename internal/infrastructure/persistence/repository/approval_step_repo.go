package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

const stepColumns = `id, request_type, request_id, tier_index, tier_role, actor_id, action,
	comment, on_behalf_of_id, via_override, acted_at`

// ApprovalStepRepository implements port.ApprovalStepRepository. The table
// is append-only: there is no update or delete.
type ApprovalStepRepository struct {
	base
	logger *zap.Logger
}

// NewApprovalStepRepository creates a new ledger repository
func NewApprovalStepRepository(db *sqldb.DB, logger *zap.Logger) *ApprovalStepRepository {
	return &ApprovalStepRepository{
		base:   base{db: db},
		logger: logger,
	}
}

// Append records a step. The (request_type, request_id, tier_index) unique
// index turns a second step for one tier into port.ErrConflict.
func (r *ApprovalStepRepository) Append(ctx context.Context, step *entity.ApprovalStep) error {
	if step.ActedAt.IsZero() {
		step.ActedAt = time.Now().UTC()
	}

	id, err := r.insertReturningID(ctx, `
		INSERT INTO approval_steps (
			request_type, request_id, tier_index, tier_role, actor_id, action,
			comment, on_behalf_of_id, via_override, acted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		step.RequestType,
		step.RequestID,
		step.TierIndex,
		step.TierRole,
		step.ActorID,
		step.Action,
		step.Comment,
		nullableInt64(step.OnBehalfOfID),
		step.ViaOverride,
		step.ActedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append approval step",
			zap.String("request_type", step.RequestType.String()),
			zap.Int64("request_id", step.RequestID),
			zap.Int("tier_index", step.TierIndex),
			zap.Error(err))
		return fmt.Errorf("failed to append approval step: %w", err)
	}

	step.ID = id
	return nil
}

// ListByRequest returns the steps of one request in tier order
func (r *ApprovalStepRepository) ListByRequest(ctx context.Context, requestType entity.RequestType, requestID int64) ([]*entity.ApprovalStep, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, r.q(`
		SELECT `+stepColumns+` FROM approval_steps
		WHERE request_type = ? AND request_id = ?
		ORDER BY tier_index, id`),
		requestType, requestID)
	if err != nil {
		r.logger.Error("Failed to list approval steps", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	return collectSteps(rows)
}

// ListByType returns every step of a request type
func (r *ApprovalStepRepository) ListByType(ctx context.Context, requestType entity.RequestType) ([]*entity.ApprovalStep, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, r.q(`
		SELECT `+stepColumns+` FROM approval_steps
		WHERE request_type = ?
		ORDER BY request_id, tier_index, id`),
		requestType)
	if err != nil {
		r.logger.Error("Failed to list approval steps by type", zap.String("request_type", requestType.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	return collectSteps(rows)
}

func collectSteps(rows *sql.Rows) ([]*entity.ApprovalStep, error) {
	var steps []*entity.ApprovalStep
	for rows.Next() {
		var (
			s          entity.ApprovalStep
			onBehalfOf sql.NullInt64
		)
		err := rows.Scan(
			&s.ID,
			&s.RequestType,
			&s.RequestID,
			&s.TierIndex,
			&s.TierRole,
			&s.ActorID,
			&s.Action,
			&s.Comment,
			&onBehalfOf,
			&s.ViaOverride,
			&s.ActedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		s.OnBehalfOfID = int64Ptr(onBehalfOf)
		s.ActedAt = s.ActedAt.UTC()
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

// Verify interface compliance
var _ port.ApprovalStepRepository = (*ApprovalStepRepository)(nil)
