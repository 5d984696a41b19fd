// Package service implements the approval use cases on top of the domain
// rules and the repository ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/approval"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Metrics receives approval engine counters
type Metrics interface {
	ActionRecorded(requestType entity.RequestType, action string, outcome string)
	ActionDenied(requestType entity.RequestType, reason string)
	ConflictRetried(requestType entity.RequestType)
	PriceActivated(fuelType entity.FuelType)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) ActionRecorded(entity.RequestType, string, string) {}
func (NopMetrics) ActionDenied(entity.RequestType, string)           {}
func (NopMetrics) ConflictRetried(entity.RequestType)                {}
func (NopMetrics) PriceActivated(entity.FuelType)                    {}

// Clock returns the current time; tests pin it
type Clock func() time.Time

// Progress messages returned by approve actions
const (
	MessageAwaitingApprovals = "waiting for additional approvals"
	MessageFullyApproved     = "fully approved"
	MessageRejected          = "request rejected"
)

type correlationKey struct{}

// WithCorrelationID tags ctx so events raised while serving it share an id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// userDirectory adapts the user repository to approval.Directory
type userDirectory struct {
	users port.UserRepository
}

func (d userDirectory) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	u, err := d.users.GetByID(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", approval.ErrUserNotFound, id)
	}
	return u, err
}

func (d userDirectory) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return d.users.ListByRole(ctx, role)
}

// notFoundOr maps port.ErrNotFound onto a NOT_FOUND application error
func notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, port.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}

// loadActor returns the calling user; unknown ids are unauthorized
func loadActor(ctx context.Context, users port.UserRepository, actorID int64) (*entity.User, error) {
	actor, err := users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, apperror.Newf(apperror.CodeUnauthorized, "unknown user %d", actorID)
		}
		return nil, fmt.Errorf("failed to load user %d: %w", actorID, err)
	}
	return actor, nil
}

func stringPtr(s string) *string {
	return &s
}

func int64Ptr(v int64) *int64 {
	return &v
}
