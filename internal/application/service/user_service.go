package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/dispatcher"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/approval"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/event"
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
)

// CreateUserInput describes a new directory entry
type CreateUserInput struct {
	Email         string
	FullName      string
	Role          entity.Role
	LineManagerID *int64
}

// UserService manages the user directory and backup approver windows
type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context, filter port.ListFilter) ([]*entity.User, error)

	// Delegate names a backup approver for userID over [start, end)
	Delegate(ctx context.Context, callerID, userID int64, delegation entity.Delegation) (*entity.User, error)

	// ClearDelegation removes the backup approver of userID
	ClearDelegation(ctx context.Context, callerID, userID int64) (*entity.User, error)
}

type userServiceImpl struct {
	users  port.UserRepository
	events dispatcher.Dispatcher
	logger Logger
}

// NewUserService creates a new UserService
func NewUserService(users port.UserRepository, events dispatcher.Dispatcher, logger Logger) UserService {
	return &userServiceImpl{
		users:  users,
		events: events,
		logger: logger,
	}
}

func (s *userServiceImpl) Create(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = utils.SanitizeString(input.FullName)

	if err := utils.ValidateEmail(input.Email); err != nil {
		return nil, apperror.Validation("email", err.Error())
	}
	if input.FullName == "" {
		return nil, apperror.Validation("fullName", "full name is required")
	}
	if !approval.IsKnownRole(input.Role) {
		return nil, apperror.Validation("role", fmt.Sprintf("unknown role %q", input.Role))
	}
	if input.LineManagerID != nil {
		if _, err := s.users.GetByID(ctx, *input.LineManagerID); err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return nil, apperror.Validation("lineManagerId", "line manager does not exist")
			}
			return nil, fmt.Errorf("failed to load line manager: %w", err)
		}
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperror.New(apperror.CodeDuplicateSubmission, "a user with this email already exists")
	} else if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	user := &entity.User{
		Email:         input.Email,
		FullName:      input.FullName,
		Role:          input.Role,
		IsActive:      true,
		LineManagerID: input.LineManagerID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *userServiceImpl) Get(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return user, nil
}

func (s *userServiceImpl) List(ctx context.Context, filter port.ListFilter) ([]*entity.User, error) {
	return s.users.List(ctx, filter)
}

// Delegate validates and stores a delegation window. Users manage their own
// backup; SUPER_ADMIN may manage anyone's.
func (s *userServiceImpl) Delegate(ctx context.Context, callerID, userID int64, d entity.Delegation) (*entity.User, error) {
	if d.Start.IsZero() || d.End.IsZero() {
		return nil, apperror.Validation("delegationStart", "delegation start and end are required")
	}
	if !d.End.After(d.Start) {
		return nil, apperror.Validation("delegationEnd", "delegation end must be after its start")
	}
	if d.BackupApproverID == userID {
		return nil, apperror.Validation("backupApproverId", "a user cannot be their own backup approver")
	}

	if _, err := s.authorizeManage(ctx, callerID, userID); err != nil {
		return nil, err
	}

	backup, err := s.users.GetByID(ctx, d.BackupApproverID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, apperror.Validation("backupApproverId", "backup approver does not exist")
		}
		return nil, fmt.Errorf("failed to load backup approver: %w", err)
	}
	if !backup.IsActive {
		return nil, apperror.Validation("backupApproverId", "backup approver is inactive")
	}

	d.Start, d.End = d.Start.UTC(), d.End.UTC()
	if err := s.users.SetDelegation(ctx, userID, &d); err != nil {
		return nil, notFoundOr(err, "user", userID)
	}

	s.logger.Info("Delegation set",
		"user_id", userID,
		"backup_approver_id", d.BackupApproverID,
		"start", d.Start.Format(time.RFC3339),
		"end", d.End.Format(time.RFC3339),
	)
	s.publish(ctx, callerID, userID, map[string]interface{}{
		"backup_approver_id": d.BackupApproverID,
		"start":              d.Start.Format(time.RFC3339),
		"end":                d.End.Format(time.RFC3339),
	})

	return s.Get(ctx, userID)
}

func (s *userServiceImpl) ClearDelegation(ctx context.Context, callerID, userID int64) (*entity.User, error) {
	if _, err := s.authorizeManage(ctx, callerID, userID); err != nil {
		return nil, err
	}

	if err := s.users.SetDelegation(ctx, userID, nil); err != nil {
		return nil, notFoundOr(err, "user", userID)
	}

	s.logger.Info("Delegation cleared", "user_id", userID)
	s.publish(ctx, callerID, userID, map[string]interface{}{"cleared": true})

	return s.Get(ctx, userID)
}

func (s *userServiceImpl) authorizeManage(ctx context.Context, callerID, userID int64) (*entity.User, error) {
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	if callerID == userID {
		return target, nil
	}

	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != entity.RoleSuperAdmin || !caller.IsActive {
		return nil, apperror.Forbidden("only the user or a super admin can manage a delegation")
	}
	return target, nil
}

func (s *userServiceImpl) publish(ctx context.Context, actorID, userID int64, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	evt := event.NewEventWithCorrelation(event.TypeDelegationChanged, "", userID, actorID, payload, CorrelationID(ctx))
	if err := s.events.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Event handlers failed", "event_type", evt.Type, "error", err)
	}
}
