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
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/workflow"
)

// DefaultMaxRetries is how many times a unit of work is replayed after a
// concurrent modification
const DefaultMaxRetries = 3

// subject adapts one kind of approvable entity to the engine
type subject interface {
	requestType() entity.RequestType
	resource() string

	// permits reports whether the actor's role may decide this kind of request
	permits(actor *entity.User) bool

	// load fetches the request; forUpdate locks its row inside a transaction
	load(ctx context.Context, id int64, forUpdate bool) (approval.Approvable, error)

	// settledLabel is the status shown once the request is settled
	settledLabel(req approval.Approvable) string

	// save persists the status cache and any mutated fields
	save(ctx context.Context, req approval.Approvable, status string) error

	// onApproved runs inside the transaction that recorded the last approval
	onApproved(ctx context.Context, req approval.Approvable, now time.Time) error

	// list returns requests newest first
	list(ctx context.Context, filter port.ListFilter) ([]approval.Approvable, error)
}

// ActionResult is returned by approve, reject and settlement actions
type ActionResult struct {
	RequestType entity.RequestType   `json:"requestType"`
	RequestID   int64                `json:"requestId"`
	Status      string               `json:"status"`
	Message     string               `json:"message"`
	Step        *entity.ApprovalStep `json:"step,omitempty"`
	Request     approval.Approvable  `json:"request"`

	State workflow.State `json:"-"`
}

// ApprovalView is the approval state of a request as seen by one user
type ApprovalView struct {
	Approvals         []*entity.ApprovalStep `json:"approvals"`
	RequiredApprovers []entity.Role          `json:"requiredApprovers"`
	NextApproverRoles []entity.Role          `json:"nextApproverRoles"`
	CanApprove        bool                   `json:"canApprove"`
	CanReject         bool                   `json:"canReject"`

	Status    string         `json:"-"`
	State     workflow.State `json:"-"`
	CanSettle bool           `json:"-"`
}

// EngineConfig tunes the approval engine
type EngineConfig struct {
	Policy     approval.Policy
	MaxRetries int
}

// ApprovalEngine runs approval actions against any approvable entity. Each
// action reads the request, its chain and ledger, checks eligibility,
// appends a step and recomputes the status in one transaction.
type ApprovalEngine struct {
	policy     approval.Policy
	checker    *approval.Checker
	users      port.UserRepository
	steps      port.ApprovalStepRepository
	txManager  port.TransactionManager
	events     dispatcher.Dispatcher
	metrics    Metrics
	logger     Logger
	maxRetries int
	clock      Clock
}

// NewApprovalEngine creates an engine. A nil clock uses time.Now and nil
// metrics are discarded.
func NewApprovalEngine(
	cfg EngineConfig,
	users port.UserRepository,
	steps port.ApprovalStepRepository,
	txManager port.TransactionManager,
	events dispatcher.Dispatcher,
	metrics Metrics,
	logger Logger,
	clock Clock,
) *ApprovalEngine {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = time.Now
	}

	return &ApprovalEngine{
		policy:     cfg.Policy,
		checker:    approval.NewChecker(approval.NewDelegationResolver(userDirectory{users: users})),
		users:      users,
		steps:      steps,
		txManager:  txManager,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		clock:      clock,
	}
}

// Policy returns the approval policy used to derive chains
func (e *ApprovalEngine) Policy() approval.Policy {
	return e.policy
}

// Now returns the engine's current time
func (e *ApprovalEngine) Now() time.Time {
	return e.clock()
}

// initialStatus checks that a new request has a derivable chain and returns
// its first status label
func (e *ApprovalEngine) initialStatus(s subject, req approval.Approvable) (string, error) {
	chain, err := e.policy.ChainFor(req)
	if err != nil {
		return "", fmt.Errorf("failed to derive approval chain: %w", err)
	}

	status, _, err := approval.StatusLabel(chain, nil, false, s.settledLabel(req))
	if err != nil {
		return "", fmt.Errorf("failed to derive initial status: %w", err)
	}
	return status, nil
}

// act records an APPROVE or REJECT step
func (e *ApprovalEngine) act(ctx context.Context, s subject, id, actorID int64, action entity.Action, comment string) (*ActionResult, error) {
	var result *ActionResult
	err := e.inTransaction(ctx, s.requestType(), func(txCtx context.Context) error {
		r, err := e.record(txCtx, s, id, actorID, action, comment)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		e.observeFailure(s.requestType(), string(action), err)
		return nil, err
	}

	e.metrics.ActionRecorded(s.requestType(), string(action), "recorded")
	e.logger.Info("Approval step recorded",
		"request_type", s.requestType(),
		"request_id", id,
		"actor_id", actorID,
		"action", action,
		"status", result.Status,
	)

	e.publishAction(ctx, result, actorID)
	return result, nil
}

func (e *ApprovalEngine) record(ctx context.Context, s subject, id, actorID int64, action entity.Action, comment string) (*ActionResult, error) {
	req, chain, ledger, err := e.loadState(ctx, s, id, true)
	if err != nil {
		return nil, err
	}

	actor, err := loadActor(ctx, e.users, actorID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	decision, err := e.checker.Check(ctx, approval.Input{
		Request: req,
		Chain:   chain,
		Ledger:  ledger,
		Actor:   actor,
		Action:  action,
		Comment: comment,
	}, now)
	if err != nil {
		return nil, denialError(err)
	}

	machine, err := workflow.NewRequestMachine(ledger.Progress(chain, req.Settled()))
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	trigger := workflow.TriggerApprove
	if action == entity.ActionReject {
		trigger = workflow.TriggerReject
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidStatus, "action is not permitted in the current status")
	}

	step := &entity.ApprovalStep{
		RequestType:  s.requestType(),
		RequestID:    id,
		TierIndex:    decision.Tier.Index,
		TierRole:     decision.Tier.Role,
		ActorID:      actor.ID,
		Action:       action,
		Comment:      strings.TrimSpace(comment),
		OnBehalfOfID: decision.OnBehalfOf,
		ViaOverride:  decision.ViaOverride,
		ActedAt:      now.UTC(),
	}
	if err := e.steps.Append(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to record approval step: %w", err)
	}
	ledger = append(ledger, step)

	if machine.State() == workflow.StateApproved {
		if err := s.onApproved(ctx, req, now); err != nil {
			return nil, err
		}
		if req.Settled() {
			if err := machine.Fire(ctx, workflow.TriggerSettle); err != nil {
				return nil, fmt.Errorf("failed to settle on approval: %w", err)
			}
		}
	}

	status, err := e.saveStatus(ctx, s, req, chain, ledger, machine.State())
	if err != nil {
		return nil, err
	}

	message := MessageRejected
	if action == entity.ActionApprove {
		message = MessageFullyApproved
		if machine.State() == workflow.StatePending {
			message = MessageAwaitingApprovals
		}
	}

	return &ActionResult{
		RequestType: s.requestType(),
		RequestID:   id,
		Status:      status,
		Message:     message,
		Step:        step,
		Request:     req,
		State:       machine.State(),
	}, nil
}

// settlement applies the settlement fields of an approved request
type settlement func(ctx context.Context, req approval.Approvable, now time.Time) error

// settle moves an APPROVED request to its settled status. actorID 0 means
// the system acts, as the price activation worker does.
func (e *ApprovalEngine) settle(ctx context.Context, s subject, id, actorID int64, message string, apply settlement) (*ActionResult, error) {
	var result *ActionResult
	err := e.inTransaction(ctx, s.requestType(), func(txCtx context.Context) error {
		req, chain, ledger, err := e.loadState(txCtx, s, id, true)
		if err != nil {
			return err
		}

		machine, err := workflow.NewRequestMachine(ledger.Progress(chain, req.Settled()))
		if err != nil {
			return fmt.Errorf("failed to build state machine: %w", err)
		}
		if !machine.CanFire(txCtx, workflow.TriggerSettle) {
			return apperror.Newf(apperror.CodeInvalidStatus, "%s %d is %s, only approved requests can be settled",
				s.resource(), id, machine.State())
		}

		if actorID != 0 {
			actor, err := loadActor(txCtx, e.users, actorID)
			if err != nil {
				return err
			}
			if !actor.IsActive || !approval.CanSettle(actor.Role) {
				return apperror.Newf(apperror.CodeForbidden, "role %s cannot settle %s requests", actor.Role, s.resource())
			}
		}

		now := e.clock()
		if err := apply(txCtx, req, now); err != nil {
			return err
		}
		if err := machine.Fire(txCtx, workflow.TriggerSettle); err != nil {
			return fmt.Errorf("failed to settle: %w", err)
		}

		status, err := e.saveStatus(txCtx, s, req, chain, ledger, machine.State())
		if err != nil {
			return err
		}

		result = &ActionResult{
			RequestType: s.requestType(),
			RequestID:   id,
			Status:      status,
			Message:     message,
			Request:     req,
			State:       machine.State(),
		}
		return nil
	})
	if err != nil {
		e.observeFailure(s.requestType(), string(workflow.TriggerSettle), err)
		return nil, err
	}

	e.metrics.ActionRecorded(s.requestType(), string(workflow.TriggerSettle), "recorded")
	e.logger.Info("Request settled",
		"request_type", s.requestType(),
		"request_id", id,
		"actor_id", actorID,
		"status", result.Status,
	)

	e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestSettled, s.requestType(), id, actorID,
		map[string]interface{}{"status": result.Status}, CorrelationID(ctx)))
	return result, nil
}

// view builds the approval state of a request for one user
func (e *ApprovalEngine) view(ctx context.Context, s subject, id, viewerID int64) (approval.Approvable, *ApprovalView, error) {
	req, chain, ledger, err := e.loadState(ctx, s, id, false)
	if err != nil {
		return nil, nil, err
	}

	status, state, err := approval.StatusLabel(chain, ledger, req.Settled(), s.settledLabel(req))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive status of %s %d: %w", s.resource(), id, err)
	}

	v := &ApprovalView{
		Approvals:         make([]*entity.ApprovalStep, 0, len(ledger)),
		RequiredApprovers: chain.Roles(),
		NextApproverRoles: []entity.Role{},
		Status:            status,
		State:             state,
	}
	v.Approvals = append(v.Approvals, ledger...)
	if tier, ok := ledger.PendingTier(chain); ok {
		v.NextApproverRoles = chain[tier.Index:].Roles()
	}

	viewer, err := e.users.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return req, v, nil
		}
		return nil, nil, fmt.Errorf("failed to load viewer %d: %w", viewerID, err)
	}

	if s.permits(viewer) {
		now := e.clock()
		in := approval.Input{Request: req, Chain: chain, Ledger: ledger, Actor: viewer, Action: entity.ActionApprove}
		v.CanApprove = e.checker.CanAct(ctx, in, now)
		in.Action = entity.ActionReject
		v.CanReject = e.checker.CanAct(ctx, in, now)
	}
	v.CanSettle = state == workflow.StateApproved && viewer.IsActive && approval.CanSettle(viewer.Role)

	return req, v, nil
}

func (e *ApprovalEngine) loadState(ctx context.Context, s subject, id int64, forUpdate bool) (approval.Approvable, approval.Chain, approval.Ledger, error) {
	req, err := s.load(ctx, id, forUpdate)
	if err != nil {
		return nil, nil, nil, notFoundOr(err, s.resource(), id)
	}

	chain, err := e.policy.ChainFor(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to derive approval chain of %s %d: %w", s.resource(), id, err)
	}

	steps, err := e.steps.ListByRequest(ctx, s.requestType(), id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load approval ledger: %w", err)
	}

	ledger := approval.Ledger(steps)
	if err := ledger.Validate(chain, req.Requester()); err != nil {
		e.logger.Error("Approval ledger is inconsistent", "request_type", s.requestType(), "request_id", id, "error", err)
		return nil, nil, nil, err
	}
	return req, chain, ledger, nil
}

// saveStatus derives the label from the ledger, cross-checks it against the
// state machine and persists it
func (e *ApprovalEngine) saveStatus(ctx context.Context, s subject, req approval.Approvable, chain approval.Chain, ledger approval.Ledger, want workflow.State) (string, error) {
	status, state, err := approval.StatusLabel(chain, ledger, req.Settled(), s.settledLabel(req))
	if err != nil {
		return "", fmt.Errorf("failed to derive status: %w", err)
	}
	if state != want {
		return "", fmt.Errorf("%w: ledger says %s, state machine says %s", workflow.ErrInconsistentProgress, state, want)
	}

	if err := s.save(ctx, req, status); err != nil {
		return "", fmt.Errorf("failed to save %s %d: %w", s.resource(), req.RequestID(), err)
	}
	return status, nil
}

// inTransaction runs fn in a transaction and replays it when it lost a race
// with a concurrent writer
func (e *ApprovalEngine) inTransaction(ctx context.Context, requestType entity.RequestType, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.metrics.ConflictRetried(requestType)
			e.logger.Info("Retrying after concurrent modification", "request_type", requestType, "attempt", attempt)
		}

		err = e.txManager.WithTransaction(ctx, fn)
		if !errors.Is(err, port.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return apperror.Wrap(err, apperror.CodeConflict, "request was modified concurrently, please retry")
}

func (e *ApprovalEngine) observeFailure(requestType entity.RequestType, action string, err error) {
	code := apperror.CodeOf(err)
	switch code {
	case apperror.CodeInternal:
		e.logger.Error("Approval action failed", "request_type", requestType, "action", action, "error", err)
		e.metrics.ActionRecorded(requestType, action, "error")
	case apperror.CodeConflict:
		e.metrics.ActionRecorded(requestType, action, "conflict")
	default:
		e.metrics.ActionDenied(requestType, string(code))
		e.metrics.ActionRecorded(requestType, action, "denied")
	}
}

func (e *ApprovalEngine) publishAction(ctx context.Context, result *ActionResult, actorID int64) {
	correlationID := CorrelationID(ctx)
	payload := map[string]interface{}{
		"status":     result.Status,
		"tier_index": result.Step.TierIndex,
		"tier_role":  string(result.Step.TierRole),
	}

	if result.Step.Action == entity.ActionReject {
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestRejected, result.RequestType, result.RequestID, actorID,
			payload, correlationID).WithPayload("reason", result.Step.Comment))
		return
	}

	e.publish(ctx, event.NewEventWithCorrelation(event.TypeStepApproved, result.RequestType, result.RequestID, actorID,
		payload, correlationID))

	switch result.State {
	case workflow.StateApproved:
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestApproved, result.RequestType, result.RequestID, actorID,
			map[string]interface{}{"status": result.Status}, correlationID))
	case workflow.StateSettled:
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestApproved, result.RequestType, result.RequestID, actorID,
			map[string]interface{}{"status": result.Status}, correlationID))
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestSettled, result.RequestType, result.RequestID, actorID,
			map[string]interface{}{"status": result.Status}, correlationID))
	}
}

func (e *ApprovalEngine) publishCreated(ctx context.Context, req approval.Approvable, status string) {
	e.publish(ctx, event.NewEventWithCorrelation(event.TypeRequestCreated, req.RequestType(), req.RequestID(), req.Requester(),
		map[string]interface{}{"status": status, "amount": req.ApprovalAmount().String()}, CorrelationID(ctx)))
}

// publish dispatches committed events; handler failures are logged only
func (e *ApprovalEngine) publish(ctx context.Context, evt *event.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Dispatch(ctx, evt); err != nil {
		e.logger.Error("Event handlers failed", "event_type", evt.Type, "event_id", evt.ID, "error", err)
	}
}

// denialError turns an eligibility denial into an application error
func denialError(err error) error {
	var denial *approval.Denial
	if errors.As(err, &denial) {
		return apperror.New(apperror.Code(denial.Reason), denial.Message)
	}
	return fmt.Errorf("eligibility check failed: %w", err)
}
