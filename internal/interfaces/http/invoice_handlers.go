package http

import (
	"net/http"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createInvoiceRequest struct {
	SupplierName  string          `json:"supplierName"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceDate   string          `json:"invoiceDate"`
	DueDate       string          `json:"dueDate"`
	FileURL       string          `json:"fileUrl"`
}

type payInvoiceRequest struct {
	ProofOfPaymentURL string `json:"proofOfPaymentUrl"`
}

// CreateInvoice submits a supplier invoice for approval
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	input := service.CreateInvoiceInput{
		SupplierName:   req.SupplierName,
		InvoiceNumber:  req.InvoiceNumber,
		Amount:         req.Amount,
		FileURL:        req.FileURL,
		IdempotencyKey: idempotencyKey(c),
	}
	invoiceDate, err := parseDate("invoiceDate", req.InvoiceDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	input.InvoiceDate = invoiceDate
	if req.DueDate != "" {
		due, err := parseDate("dueDate", req.DueDate)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		input.DueDate = &due
	}

	created, err := h.services.Invoices.Create(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, createdStatus(created.Replayed), gin.H{
		"invoice":  created.Invoice,
		"replayed": created.Replayed,
		"warnings": created.Warnings,
	})
}

// ListInvoices returns a page of invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	invoices, err := h.services.Invoices.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, invoices)
}

// GetInvoice returns an invoice with its approval ledger
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	detail, err := h.services.Invoices.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, detail)
}

// PayInvoice records the payment of an approved invoice
func (h *Handlers) PayInvoice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req payInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.services.Invoices.Pay(c.Request.Context(), id, currentUser(c).ID, req.ProofOfPaymentURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}
