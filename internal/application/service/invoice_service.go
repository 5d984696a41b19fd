package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/approval"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceInput is what a requester submits for a supplier invoice
type CreateInvoiceInput struct {
	SupplierName   string
	InvoiceNumber  string
	Amount         decimal.Decimal
	InvoiceDate    time.Time
	DueDate        *time.Time
	FileURL        string
	IdempotencyKey string
}

// InvoiceCreation reports the outcome of Create. Replayed is true when an
// earlier submission with the same idempotency key was returned.
type InvoiceCreation struct {
	Invoice  *entity.Invoice
	Replayed bool
	Warnings []string
}

// InvoiceDetail is an invoice with its approval state for one viewer
type InvoiceDetail struct {
	*entity.Invoice
	ApprovalView
	CanPay bool `json:"canPay"`
}

// InvoiceService manages supplier invoices through approval and payment
type InvoiceService interface {
	Create(ctx context.Context, requesterID int64, input CreateInvoiceInput) (*InvoiceCreation, error)
	Get(ctx context.Context, id, viewerID int64) (*InvoiceDetail, error)
	List(ctx context.Context, filter port.ListFilter) ([]*entity.Invoice, error)
	Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error)
	Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error)
	Pay(ctx context.Context, id, actorID int64, proofOfPaymentURL string) (*ActionResult, error)
}

type invoiceServiceImpl struct {
	invoices port.InvoiceRepository
	users    port.UserRepository
	engine   *ApprovalEngine
	subject  invoiceSubject
	logger   Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoices port.InvoiceRepository,
	users port.UserRepository,
	engine *ApprovalEngine,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoices: invoices,
		users:    users,
		engine:   engine,
		subject:  invoiceSubject{invoices: invoices},
		logger:   logger,
	}
}

// Create validates and stores a new invoice. A reused invoice number is
// only a warning; a reused idempotency key returns the original invoice.
func (s *invoiceServiceImpl) Create(ctx context.Context, requesterID int64, input CreateInvoiceInput) (*InvoiceCreation, error) {
	input.SupplierName = utils.SanitizeString(input.SupplierName)
	input.InvoiceNumber = utils.SanitizeString(input.InvoiceNumber)
	if err := validateInvoiceInput(input); err != nil {
		return nil, err
	}

	requester, err := loadActor(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsActive {
		return nil, apperror.Forbidden("inactive users cannot submit invoices")
	}

	if input.IdempotencyKey != "" {
		if replay, err := s.replay(ctx, requesterID, input.IdempotencyKey); replay != nil || err != nil {
			return replay, err
		}
	} else {
		input.IdempotencyKey = uuid.NewString()
	}

	var warnings []string
	count, err := s.invoices.CountByInvoiceNumber(ctx, input.InvoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check invoice number: %w", err)
	}
	if count > 0 {
		warnings = append(warnings, fmt.Sprintf("invoice number %s was already submitted %d time(s)", input.InvoiceNumber, count))
	}

	invoice := &entity.Invoice{
		SupplierName:   input.SupplierName,
		InvoiceNumber:  input.InvoiceNumber,
		Amount:         input.Amount,
		InvoiceDate:    input.InvoiceDate,
		DueDate:        input.DueDate,
		FileURL:        strings.TrimSpace(input.FileURL),
		CreatedByID:    requesterID,
		IdempotencyKey: stringPtr(input.IdempotencyKey),
	}

	status, err := s.engine.initialStatus(s.subject, invoice)
	if err != nil {
		return nil, err
	}
	invoice.Status = status

	if err := s.invoices.Create(ctx, invoice); err != nil {
		// Lost a race with the same idempotency key
		if errors.Is(err, port.ErrConflict) {
			if replay, rerr := s.replay(ctx, requesterID, input.IdempotencyKey); replay != nil || rerr != nil {
				return replay, rerr
			}
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.logger.Info("Invoice submitted",
		"invoice_id", invoice.ID,
		"invoice_number", invoice.InvoiceNumber,
		"amount", invoice.Amount.String(),
		"status", invoice.Status,
	)
	s.engine.publishCreated(ctx, invoice, invoice.Status)

	return &InvoiceCreation{Invoice: invoice, Warnings: warnings}, nil
}

func (s *invoiceServiceImpl) replay(ctx context.Context, requesterID int64, key string) (*InvoiceCreation, error) {
	existing, err := s.invoices.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existing.CreatedByID != requesterID {
		return nil, apperror.New(apperror.CodeDuplicateSubmission, "idempotency key was used by another user")
	}

	s.logger.Info("Invoice submission replayed", "invoice_id", existing.ID)
	return &InvoiceCreation{Invoice: existing, Replayed: true}, nil
}

// Get returns the invoice with its ledger and the viewer's permitted actions
func (s *invoiceServiceImpl) Get(ctx context.Context, id, viewerID int64) (*InvoiceDetail, error) {
	req, view, err := s.engine.view(ctx, s.subject, id, viewerID)
	if err != nil {
		return nil, err
	}

	invoice := req.(*entity.Invoice)
	invoice.Status = view.Status
	return &InvoiceDetail{Invoice: invoice, ApprovalView: *view, CanPay: view.CanSettle}, nil
}

func (s *invoiceServiceImpl) List(ctx context.Context, filter port.ListFilter) ([]*entity.Invoice, error) {
	return s.invoices.List(ctx, filter)
}

func (s *invoiceServiceImpl) Approve(ctx context.Context, id, actorID int64, comment string) (*ActionResult, error) {
	return s.engine.act(ctx, s.subject, id, actorID, entity.ActionApprove, comment)
}

func (s *invoiceServiceImpl) Reject(ctx context.Context, id, actorID int64, reason string) (*ActionResult, error) {
	return s.engine.act(ctx, s.subject, id, actorID, entity.ActionReject, reason)
}

// Pay records the payment of an approved invoice. The proof of payment is
// mandatory; it is whatever reference document storage returned.
func (s *invoiceServiceImpl) Pay(ctx context.Context, id, actorID int64, proofOfPaymentURL string) (*ActionResult, error) {
	proof := strings.TrimSpace(proofOfPaymentURL)
	if proof == "" {
		return nil, apperror.Validation("proofOfPaymentUrl", "proof of payment is required")
	}
	if err := utils.ValidateReference(proof); err != nil {
		return nil, apperror.Validation("proofOfPaymentUrl", err.Error())
	}

	return s.engine.settle(ctx, s.subject, id, actorID, "invoice paid", func(_ context.Context, req approval.Approvable, now time.Time) error {
		invoice := req.(*entity.Invoice)
		paidAt := now.UTC()
		invoice.ProofOfPaymentURL = stringPtr(proof)
		invoice.PaidAt = &paidAt
		invoice.PaidByID = int64Ptr(actorID)
		return nil
	})
}

func validateInvoiceInput(input CreateInvoiceInput) error {
	if input.SupplierName == "" {
		return apperror.Validation("supplierName", "supplier name is required")
	}
	if input.InvoiceNumber == "" {
		return apperror.Validation("invoiceNumber", "invoice number is required")
	}
	if err := utils.ValidateAmount(input.Amount); err != nil {
		return apperror.Validation("amount", err.Error())
	}
	if input.InvoiceDate.IsZero() {
		return apperror.Validation("invoiceDate", "invoice date is required")
	}
	if input.DueDate != nil && input.DueDate.Before(input.InvoiceDate) {
		return apperror.Validation("dueDate", "due date cannot be before the invoice date")
	}
	return nil
}

// invoiceSubject plugs invoices into the approval engine
type invoiceSubject struct {
	invoices port.InvoiceRepository
}

func (invoiceSubject) requestType() entity.RequestType { return entity.RequestTypeInvoice }
func (invoiceSubject) resource() string                { return "invoice" }
func (invoiceSubject) permits(*entity.User) bool       { return true }

func (invoiceSubject) settledLabel(approval.Approvable) string { return entity.StatusPaid }

func (s invoiceSubject) load(ctx context.Context, id int64, forUpdate bool) (approval.Approvable, error) {
	var (
		invoice *entity.Invoice
		err     error
	)
	if forUpdate {
		invoice, err = s.invoices.GetForUpdate(ctx, id)
	} else {
		invoice, err = s.invoices.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s invoiceSubject) save(ctx context.Context, req approval.Approvable, status string) error {
	invoice := req.(*entity.Invoice)
	invoice.Status = status
	return s.invoices.Update(ctx, invoice)
}

func (invoiceSubject) onApproved(context.Context, approval.Approvable, time.Time) error {
	return nil
}

func (s invoiceSubject) list(ctx context.Context, filter port.ListFilter) ([]approval.Approvable, error) {
	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	reqs := make([]approval.Approvable, len(invoices))
	for i, inv := range invoices {
		reqs[i] = inv
	}
	return reqs, nil
}
