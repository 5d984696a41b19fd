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
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateExpenseInput is what an employee submits for an expense
type CreateExpenseInput struct {
	StationID      *int64
	Category       string
	Description    string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// ExpenseCreation reports the outcome of Create
type ExpenseCreation struct {
	Expense  *entity.Expense
	Replayed bool
}

// ExpenseDetail is an expense with its approval state for one viewer
type ExpenseDetail struct {
	*entity.Expense
	ApprovalView
	CanDisburse bool `json:"canDisburse"`
}

// ExpenseService manages internal expenses through approval and disbursement
type ExpenseService interface {
	Create(ctx context.Context, requesterID int64, input CreateExpenseInput) (*ExpenseCreation, error)
	Get(ctx context.Context, id, viewerID int64) (*ExpenseDetail, error)
	List(ctx context.Context, filter port.ListFilter) ([]*entity.Expense, error)
	Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error)
	Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error)
	Disburse(ctx context.Context, id, actorID int64, method entity.DisbursementMethod) (*ActionResult, error)
}

type expenseServiceImpl struct {
	expenses port.ExpenseRepository
	users    port.UserRepository
	engine   *ApprovalEngine
	subject  expenseSubject
	logger   Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenses port.ExpenseRepository,
	users port.UserRepository,
	engine *ApprovalEngine,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenses: expenses,
		users:    users,
		engine:   engine,
		subject:  expenseSubject{expenses: expenses},
		logger:   logger,
	}
}

// Create stores a new expense and snapshots the requester's line manager
func (s *expenseServiceImpl) Create(ctx context.Context, requesterID int64, input CreateExpenseInput) (*ExpenseCreation, error) {
	input.Category = utils.SanitizeString(input.Category)
	input.Description = utils.SanitizeString(input.Description)
	if input.Category == "" {
		return nil, apperror.Validation("category", "category is required")
	}
	if err := utils.ValidateAmount(input.Amount); err != nil {
		return nil, apperror.Validation("amount", err.Error())
	}

	requester, err := loadActor(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsActive {
		return nil, apperror.Forbidden("inactive users cannot submit expenses")
	}

	if input.IdempotencyKey != "" {
		if replay, err := s.replay(ctx, requesterID, input.IdempotencyKey); replay != nil || err != nil {
			return replay, err
		}
	} else {
		input.IdempotencyKey = uuid.NewString()
	}

	manager, err := s.lineManagerOf(ctx, requester)
	if err != nil {
		return nil, err
	}

	expense := &entity.Expense{
		RequesterID:           requesterID,
		StationID:             input.StationID,
		Category:              input.Category,
		Description:           input.Description,
		Amount:                input.Amount,
		ApproverLineManagerID: manager,
		IdempotencyKey:        stringPtr(input.IdempotencyKey),
	}

	status, err := s.engine.initialStatus(s.subject, expense)
	if err != nil {
		return nil, err
	}
	expense.Status = status

	if err := s.expenses.Create(ctx, expense); err != nil {
		if errors.Is(err, port.ErrConflict) {
			if replay, rerr := s.replay(ctx, requesterID, input.IdempotencyKey); replay != nil || rerr != nil {
				return replay, rerr
			}
		}
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	s.logger.Info("Expense submitted",
		"expense_id", expense.ID,
		"requester_id", requesterID,
		"amount", expense.Amount.String(),
		"status", expense.Status,
	)
	s.engine.publishCreated(ctx, expense, expense.Status)

	return &ExpenseCreation{Expense: expense}, nil
}

// lineManagerOf returns the manager to pin on the expense. A missing,
// inactive or self-referencing manager counts as none.
func (s *expenseServiceImpl) lineManagerOf(ctx context.Context, requester *entity.User) (*int64, error) {
	if requester.LineManagerID == nil || *requester.LineManagerID == requester.ID {
		return nil, nil
	}

	manager, err := s.users.GetByID(ctx, *requester.LineManagerID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			s.logger.Info("Line manager not found, skipping tier", "requester_id", requester.ID, "manager_id", *requester.LineManagerID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load line manager: %w", err)
	}
	if !manager.IsActive {
		s.logger.Info("Line manager inactive, skipping tier", "requester_id", requester.ID, "manager_id", manager.ID)
		return nil, nil
	}
	return int64Ptr(manager.ID), nil
}

func (s *expenseServiceImpl) replay(ctx context.Context, requesterID int64, key string) (*ExpenseCreation, error) {
	existing, err := s.expenses.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing.RequesterID != requesterID {
		return nil, apperror.New(apperror.CodeDuplicateSubmission, "idempotency key was used by another user")
	}
	return &ExpenseCreation{Expense: existing, Replayed: true}, nil
}

func (s *expenseServiceImpl) Get(ctx context.Context, id, viewerID int64) (*ExpenseDetail, error) {
	req, view, err := s.engine.view(ctx, s.subject, id, viewerID)
	if err != nil {
		return nil, err
	}

	expense := req.(*entity.Expense)
	expense.Status = view.Status
	return &ExpenseDetail{Expense: expense, ApprovalView: *view, CanDisburse: view.CanSettle}, nil
}

func (s *expenseServiceImpl) List(ctx context.Context, filter port.ListFilter) ([]*entity.Expense, error) {
	return s.expenses.List(ctx, filter)
}

func (s *expenseServiceImpl) Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error) {
	return s.engine.act(ctx, s.subject, id, actorID, entity.ActionApprove, comment)
}

func (s *expenseServiceImpl) Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error) {
	return s.engine.act(ctx, s.subject, id, actorID, entity.ActionReject, reason)
}

// Disburse pays out an approved expense by petty cash or bank transfer
func (s *expenseServiceImpl) Disburse(ctx context.Context, id, actorID int64, method entity.DisbursementMethod) (*ActionResult, error) {
	if !method.IsValid() {
		return nil, apperror.Validation("method", fmt.Sprintf("disbursement method must be %s or %s",
			entity.DisbursementPettyCash, entity.DisbursementBankTransfer))
	}

	return s.engine.settle(ctx, s.subject, id, actorID, "expense disbursed", func(_ context.Context, req approval.Approvable, now time.Time) error {
		expense := req.(*entity.Expense)
		disbursedAt := now.UTC()
		expense.DisbursementMethod = &method
		expense.DisbursedAt = &disbursedAt
		expense.DisbursedByID = int64Ptr(actorID)
		return nil
	})
}

// expenseSubject plugs expenses into the approval engine
type expenseSubject struct {
	expenses port.ExpenseRepository
}

func (expenseSubject) requestType() entity.RequestType { return entity.RequestTypeExpense }
func (expenseSubject) resource() string                { return "expense" }
func (expenseSubject) permits(*entity.User) bool       { return true }

func (expenseSubject) settledLabel(approval.Approvable) string { return entity.StatusDisbursed }

func (s expenseSubject) load(ctx context.Context, id int64, forUpdate bool) (approval.Approvable, error) {
	var (
		expense *entity.Expense
		err     error
	)
	if forUpdate {
		expense, err = s.expenses.GetForUpdate(ctx, id)
	} else {
		expense, err = s.expenses.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func (s expenseSubject) save(ctx context.Context, req approval.Approvable, status string) error {
	expense := req.(*entity.Expense)
	expense.Status = status
	return s.expenses.Update(ctx, expense)
}

func (expenseSubject) onApproved(context.Context, approval.Approvable, time.Time) error {
	return nil
}

func (s expenseSubject) list(ctx context.Context, filter port.ListFilter) ([]approval.Approvable, error) {
	expenses, err := s.expenses.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	reqs := make([]approval.Approvable, len(expenses))
	for i, exp := range expenses {
		reqs[i] = exp
	}
	return reqs, nil
}
