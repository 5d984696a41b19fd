package service

import (
	"context"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// inboxScanLimit bounds how many recent requests of each type are inspected
const inboxScanLimit = 200

// PendingApproval is a request the caller can act on now
type PendingApproval struct {
	RequestType       entity.RequestType `json:"requestType"`
	RequestID         int64              `json:"requestId"`
	Status            string             `json:"status"`
	Amount            decimal.Decimal    `json:"amount"`
	RequesterID       int64              `json:"requesterId"`
	NextApproverRoles []entity.Role      `json:"nextApproverRoles"`
}

// InboxService lists the requests waiting on a user
type InboxService interface {
	Pending(ctx context.Context, userID int64) ([]PendingApproval, error)
}

type inboxServiceImpl struct {
	engine   *ApprovalEngine
	subjects []subject
	logger   Logger
}

// NewInboxService creates a new InboxService
func NewInboxService(
	invoices port.InvoiceRepository,
	expenses port.ExpenseRepository,
	prices port.FuelPriceRepository,
	engine *ApprovalEngine,
	logger Logger,
) InboxService {
	return &inboxServiceImpl{
		engine: engine,
		subjects: []subject{
			invoiceSubject{invoices: invoices},
			expenseSubject{expenses: expenses},
			priceSubject{prices: prices},
		},
		logger: logger,
	}
}

// Pending returns every recent open request the user may approve
func (s *inboxServiceImpl) Pending(ctx context.Context, userID int64) ([]PendingApproval, error) {
	start := time.Now()
	pending := []PendingApproval{}

	for _, subj := range s.subjects {
		reqs, err := subj.list(ctx, port.ListFilter{Limit: inboxScanLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s requests: %w", subj.resource(), err)
		}

		for _, req := range reqs {
			if !openStatus(req) {
				continue
			}

			_, view, err := s.engine.view(ctx, subj, req.RequestID(), userID)
			if err != nil {
				return nil, err
			}
			if !view.CanApprove {
				continue
			}

			pending = append(pending, PendingApproval{
				RequestType:       req.RequestType(),
				RequestID:         req.RequestID(),
				Status:            view.Status,
				Amount:            req.ApprovalAmount(),
				RequesterID:       req.Requester(),
				NextApproverRoles: view.NextApproverRoles,
			})
		}
	}

	s.logger.Info("Pending approvals listed", "user_id", userID, "count", len(pending), "elapsed", time.Since(start).String())
	return pending, nil
}

// openStatus filters on the cached status before the ledger is read
func openStatus(req interface{}) bool {
	var status string
	switch r := req.(type) {
	case *entity.Invoice:
		status = r.Status
	case *entity.Expense:
		status = r.Status
	case *entity.FuelPrice:
		status = r.Status
	}
	return status == string(workflow.StateSubmitted) || workflow.IsPendingLabel(status)
}
