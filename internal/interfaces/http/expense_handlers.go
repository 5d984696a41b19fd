package http

import (
	"net/http"
	"strings"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createExpenseRequest struct {
	StationID   *int64          `json:"stationId"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type disburseExpenseRequest struct {
	Method string `json:"method"`
}

// CreateExpense submits an internal expense for approval
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req createExpenseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	created, err := h.services.Expenses.Create(c.Request.Context(), currentUser(c).ID, service.CreateExpenseInput{
		StationID:      req.StationID,
		Category:       req.Category,
		Description:    req.Description,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, createdStatus(created.Replayed), gin.H{
		"expense":  created.Expense,
		"replayed": created.Replayed,
	})
}

// ListExpenses returns a page of expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	expenses, err := h.services.Expenses.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, expenses)
}

// GetExpense returns an expense with its approval ledger
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	detail, err := h.services.Expenses.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, detail)
}

// DisburseExpense pays out an approved expense
func (h *Handlers) DisburseExpense(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req disburseExpenseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	method := entity.DisbursementMethod(strings.ToUpper(strings.TrimSpace(req.Method)))
	result, err := h.services.Expenses.Disburse(c.Request.Context(), id, currentUser(c).ID, method)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}
