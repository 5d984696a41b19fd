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
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/event"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/workflow"
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePriceInput proposes a new per-litre price for a fuel type
type CreatePriceInput struct {
	FuelType       entity.FuelType
	Price          decimal.Decimal
	EffectiveDate  time.Time
	Comment        string
	IdempotencyKey string
}

// PriceCreation reports the outcome of Create
type PriceCreation struct {
	Price    *entity.FuelPrice
	Replayed bool
}

// PriceDetail is a fuel price with its approval state for one viewer
type PriceDetail struct {
	*entity.FuelPrice
	ApprovalView
}

// PriceService manages fuel price proposals, their four-eyes approval and
// their activation on the effective date
type PriceService interface {
	Create(ctx context.Context, creatorID int64, input CreatePriceInput) (*PriceCreation, error)
	Get(ctx context.Context, id, viewerID int64) (*PriceDetail, error)
	List(ctx context.Context, filter port.ListFilter) ([]*entity.FuelPrice, error)
	Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error)
	Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error)

	// ActivateDue activates approved prices whose effective date has
	// arrived and returns how many were activated
	ActivateDue(ctx context.Context, limit int) (int, error)
}

type priceServiceImpl struct {
	prices  port.FuelPriceRepository
	users   port.UserRepository
	engine  *ApprovalEngine
	subject priceSubject
	logger  Logger
}

// NewPriceService creates a new PriceService
func NewPriceService(
	prices port.FuelPriceRepository,
	users port.UserRepository,
	engine *ApprovalEngine,
	logger Logger,
) PriceService {
	return &priceServiceImpl{
		prices:  prices,
		users:   users,
		engine:  engine,
		subject: priceSubject{prices: prices},
		logger:  logger,
	}
}

// Create stores a price proposal. The effective date must be after today and
// no other open proposal may exist for the same fuel type and date.
func (s *priceServiceImpl) Create(ctx context.Context, creatorID int64, input CreatePriceInput) (*PriceCreation, error) {
	if !input.FuelType.IsValid() {
		return nil, apperror.Validation("fuelType", fmt.Sprintf("unknown fuel type %q", input.FuelType))
	}
	if !input.Price.IsPositive() {
		return nil, apperror.Validation("price", "price must be positive")
	}
	if input.EffectiveDate.IsZero() {
		return nil, apperror.Validation("effectiveDate", "effective date is required")
	}

	creator, err := s.seniorActor(ctx, creatorID, "propose")
	if err != nil {
		return nil, err
	}

	// A replay returns the stored proposal even once its date has passed
	if input.IdempotencyKey != "" {
		if replay, err := s.replay(ctx, creator.ID, input.IdempotencyKey); replay != nil || err != nil {
			return replay, err
		}
	} else {
		input.IdempotencyKey = uuid.NewString()
	}

	effective := dateOnly(input.EffectiveDate)
	if !effective.After(dateOnly(s.engine.Now())) {
		return nil, apperror.Newf(apperror.CodeInvalidDate, "effective date %s must be in the future", effective.Format(time.DateOnly))
	}

	price := &entity.FuelPrice{
		FuelType:       input.FuelType,
		Price:          input.Price,
		EffectiveDate:  effective,
		Comment:        utils.SanitizeString(input.Comment),
		CreatedByID:    creator.ID,
		IdempotencyKey: stringPtr(input.IdempotencyKey),
	}
	if price.Status, err = s.engine.initialStatus(s.subject, price); err != nil {
		return nil, err
	}

	// The duplicate check and the insert share one write transaction
	err = s.engine.inTransaction(ctx, entity.RequestTypePrice, func(txCtx context.Context) error {
		open, err := s.prices.FindOpen(txCtx, price.FuelType, effective)
		switch {
		case err == nil:
			return apperror.Newf(apperror.CodeDuplicatePending,
				"price %d for %s effective %s is already pending", open.ID, open.FuelType, effective.Format(time.DateOnly)).
				WithDetail("existingId", open.ID)
		case !errors.Is(err, port.ErrNotFound):
			return fmt.Errorf("failed to check pending prices: %w", err)
		}
		return s.prices.Create(txCtx, price)
	})
	if err != nil {
		if apperror.Is(err, apperror.CodeConflict) {
			if replay, rerr := s.replay(ctx, creator.ID, input.IdempotencyKey); replay != nil || rerr != nil {
				return replay, rerr
			}
		}
		return nil, err
	}

	s.logger.Info("Fuel price proposed",
		"price_id", price.ID,
		"fuel_type", price.FuelType,
		"price", price.Price.String(),
		"effective_date", effective.Format(time.DateOnly),
	)
	s.engine.publishCreated(ctx, price, price.Status)

	return &PriceCreation{Price: price}, nil
}

func (s *priceServiceImpl) replay(ctx context.Context, creatorID int64, key string) (*PriceCreation, error) {
	existing, err := s.prices.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing.CreatedByID != creatorID {
		return nil, apperror.New(apperror.CodeDuplicateSubmission, "idempotency key was used by another user")
	}
	return &PriceCreation{Price: existing, Replayed: true}, nil
}

func (s *priceServiceImpl) Get(ctx context.Context, id, viewerID int64) (*PriceDetail, error) {
	req, view, err := s.engine.view(ctx, s.subject, id, viewerID)
	if err != nil {
		return nil, err
	}

	price := req.(*entity.FuelPrice)
	price.Status = view.Status
	return &PriceDetail{FuelPrice: price, ApprovalView: *view}, nil
}

func (s *priceServiceImpl) List(ctx context.Context, filter port.ListFilter) ([]*entity.FuelPrice, error) {
	return s.prices.List(ctx, filter)
}

// Approve records the single approval of a price. When the effective date
// has already arrived the price is activated in the same transaction.
func (s *priceServiceImpl) Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error) {
	if _, err := s.seniorActor(ctx, actorID, "approve"); err != nil {
		return nil, err
	}

	result, err := s.engine.act(ctx, s.subject, id, actorID, entity.ActionApprove, comment)
	if err != nil {
		return nil, err
	}
	if result.State == workflow.StateSettled {
		s.activated(ctx, result.Request.(*entity.FuelPrice), actorID)
	}
	return result, nil
}

func (s *priceServiceImpl) Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error) {
	if _, err := s.seniorActor(ctx, actorID, "reject"); err != nil {
		return nil, err
	}
	return s.engine.act(ctx, s.subject, id, actorID, entity.ActionReject, reason)
}

func (s *priceServiceImpl) ActivateDue(ctx context.Context, limit int) (int, error) {
	due, err := s.prices.ListDueForActivation(ctx, s.engine.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due prices: %w", err)
	}

	activated := 0
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return activated, err
		}

		result, err := s.engine.settle(ctx, s.subject, p.ID, 0, "price activated", func(txCtx context.Context, req approval.Approvable, now time.Time) error {
			price := req.(*entity.FuelPrice)
			if !effectiveDateReached(price.EffectiveDate, now) {
				return apperror.Newf(apperror.CodeInvalidDate, "price %d is effective from %s", price.ID, price.EffectiveDate.Format(time.DateOnly))
			}
			return s.subject.activate(txCtx, price, now)
		})
		if err != nil {
			s.logger.Error("Failed to activate price", "price_id", p.ID, "error", err)
			continue
		}

		s.activated(ctx, result.Request.(*entity.FuelPrice), 0)
		activated++
	}
	return activated, nil
}

func (s *priceServiceImpl) activated(ctx context.Context, price *entity.FuelPrice, actorID int64) {
	if !price.IsActive {
		s.logger.Info("Price superseded before activation", "price_id", price.ID, "fuel_type", price.FuelType)
		return
	}

	s.engine.metrics.PriceActivated(price.FuelType)
	s.logger.Info("Price activated", "price_id", price.ID, "fuel_type", price.FuelType, "price", price.Price.String())
	s.engine.publish(ctx, event.NewEventWithCorrelation(event.TypePriceActivated, entity.RequestTypePrice, price.ID, actorID,
		map[string]interface{}{
			"fuel_type": string(price.FuelType),
			"price":     price.Price.String(),
		}, CorrelationID(ctx)))
}

// seniorActor loads an active user allowed to manage prices
func (s *priceServiceImpl) seniorActor(ctx context.Context, userID int64, verb string) (*entity.User, error) {
	actor, err := loadActor(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if !actor.IsActive || !s.subject.permits(actor) {
		return nil, apperror.Newf(apperror.CodeForbidden, "role %s cannot %s fuel prices", actor.Role, verb)
	}
	return actor, nil
}

// priceSubject plugs fuel prices into the approval engine
type priceSubject struct {
	prices port.FuelPriceRepository
}

func (priceSubject) requestType() entity.RequestType { return entity.RequestTypePrice }
func (priceSubject) resource() string                { return "price" }

// permits limits price decisions to senior roles
func (priceSubject) permits(actor *entity.User) bool { return approval.IsSenior(actor.Role) }

// settledLabel is ACTIVE while the price is in force and ARCHIVED once it
// was replaced or superseded
func (priceSubject) settledLabel(req approval.Approvable) string {
	if req.(*entity.FuelPrice).IsActive {
		return entity.StatusActive
	}
	return entity.StatusArchived
}

func (s priceSubject) load(ctx context.Context, id int64, forUpdate bool) (approval.Approvable, error) {
	var (
		price *entity.FuelPrice
		err   error
	)
	if forUpdate {
		price, err = s.prices.GetForUpdate(ctx, id)
	} else {
		price, err = s.prices.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return price, nil
}

func (s priceSubject) save(ctx context.Context, req approval.Approvable, status string) error {
	price := req.(*entity.FuelPrice)
	price.Status = status
	return s.prices.Update(ctx, price)
}

func (s priceSubject) onApproved(ctx context.Context, req approval.Approvable, now time.Time) error {
	price := req.(*entity.FuelPrice)
	if !effectiveDateReached(price.EffectiveDate, now) {
		return nil
	}
	return s.activate(ctx, price, now)
}

func (s priceSubject) list(ctx context.Context, filter port.ListFilter) ([]approval.Approvable, error) {
	prices, err := s.prices.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	reqs := make([]approval.Approvable, len(prices))
	for i, p := range prices {
		reqs[i] = p
	}
	return reqs, nil
}

// activate makes price the active one for its fuel type, deactivating the
// previous active price first. A price whose effective date is older than
// the active one is settled as superseded instead.
func (s priceSubject) activate(ctx context.Context, price *entity.FuelPrice, now time.Time) error {
	at := now.UTC()

	current, err := s.prices.GetActive(ctx, price.FuelType)
	switch {
	case err == nil && current.ID != price.ID:
		if current.EffectiveDate.After(price.EffectiveDate) {
			price.ActivatedAt = &at
			price.DeactivatedAt = &at
			return nil
		}

		current.IsActive = false
		current.DeactivatedAt = &at
		current.Status = entity.StatusArchived
		if err := s.prices.Update(ctx, current); err != nil {
			return fmt.Errorf("failed to deactivate price %d: %w", current.ID, err)
		}
	case err != nil && !errors.Is(err, port.ErrNotFound):
		return fmt.Errorf("failed to load active %s price: %w", price.FuelType, err)
	}

	price.IsActive = true
	price.ActivatedAt = &at
	return nil
}

// dateOnly truncates t to its UTC calendar day
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func effectiveDateReached(effective, now time.Time) bool {
	return !dateOnly(effective).After(dateOnly(now))
}
