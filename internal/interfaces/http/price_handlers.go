package http

import (
	"net/http"
	"strings"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPriceRequest struct {
	FuelType      string          `json:"fuelType"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate string          `json:"effectiveDate"`
	Comment       string          `json:"comment"`
}

// CreatePrice proposes a new pump price
func (h *Handlers) CreatePrice(c *gin.Context) {
	var req createPriceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	effective, err := parseDate("effectiveDate", req.EffectiveDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	created, err := h.services.Prices.Create(c.Request.Context(), currentUser(c).ID, service.CreatePriceInput{
		FuelType:       entity.FuelType(strings.ToUpper(strings.TrimSpace(req.FuelType))),
		Price:          req.Price,
		EffectiveDate:  effective,
		Comment:        req.Comment,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, createdStatus(created.Replayed), gin.H{
		"price":    created.Price,
		"replayed": created.Replayed,
	})
}

// ListPrices returns a page of price proposals
func (h *Handlers) ListPrices(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	prices, err := h.services.Prices.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, prices)
}

// GetPrice returns a price proposal with its approval ledger
func (h *Handlers) GetPrice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	detail, err := h.services.Prices.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, detail)
}
