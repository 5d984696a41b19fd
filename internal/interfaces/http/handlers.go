package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/port"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// decider is implemented by every service whose requests go through approval
type decider interface {
	Approve(ctx context.Context, id, actorID int64, comment string) (*service.ActionResult, error)
	Reject(ctx context.Context, id, actorID int64, reason string) (*service.ActionResult, error)
}

type approveRequest struct {
	Comment string `json:"comment"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type listQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (h *Handlers) approve(svc decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c)
		if !ok {
			return
		}
		var req approveRequest
		if !h.bindOptional(c, &req) {
			return
		}

		result, err := svc.Approve(c.Request.Context(), id, currentUser(c).ID, req.Comment)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

func (h *Handlers) reject(svc decider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c)
		if !ok {
			return
		}
		var req rejectRequest
		if !h.bindOptional(c, &req) {
			return
		}

		result, err := svc.Reject(c.Request.Context(), id, currentUser(c).ID, req.Reason)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

// PendingApprovals lists the requests waiting on the caller
func (h *Handlers) PendingApprovals(c *gin.Context) {
	pending, err := h.services.Inbox.Pending(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, pending)
}

// pathID parses the :id parameter, writing a validation error on failure
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, h.logger, apperror.Validation("id", "invalid id"))
		return 0, false
	}
	return id, true
}

// bindJSON decodes a required JSON body
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, h.logger, apperror.Validation("body", "invalid request body: "+err.Error()))
		return false
	}
	return true
}

// bindOptional decodes a JSON body that may be absent
func (h *Handlers) bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, h.logger, apperror.Validation("body", "invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (h *Handlers) listFilter(c *gin.Context) (port.ListFilter, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.logger, apperror.Validation("query", "invalid query: "+err.Error()))
		return port.ListFilter{}, false
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return port.ListFilter{Status: strings.ToUpper(strings.TrimSpace(q.Status)), Limit: q.Limit, Offset: q.Offset}, true
}

// parseDate accepts YYYY-MM-DD or an RFC3339 timestamp
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperror.Validation(field, "expected YYYY-MM-DD or RFC3339 date")
	}
	return t.UTC(), nil
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
}

// createdStatus is 201 for a new resource and 200 for a replayed one
func createdStatus(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}
