package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	Role          string `json:"role"`
	LineManagerID *int64 `json:"lineManagerId"`
}

type delegateRequest struct {
	BackupApproverID int64  `json:"backupApproverId"`
	Start            string `json:"delegationStart"`
	End              string `json:"delegationEnd"`
}

// CreateUser adds a user to the directory
func (h *Handlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.services.Users.Create(c.Request.Context(), service.CreateUserInput{
		Email:         req.Email,
		FullName:      req.FullName,
		Role:          entity.Role(strings.ToUpper(strings.TrimSpace(req.Role))),
		LineManagerID: req.LineManagerID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// ListUsers returns a page of users
func (h *Handlers) ListUsers(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	users, err := h.services.Users.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, users)
}

// GetUser returns one user
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	user, err := h.services.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// Delegate names a backup approver for a time window
func (h *Handlers) Delegate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req delegateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	start, err := parseTimestamp("delegationStart", req.Start)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	end, err := parseTimestamp("delegationEnd", req.End)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.services.Users.Delegate(c.Request.Context(), currentUser(c).ID, id, entity.Delegation{
		BackupApproverID: req.BackupApproverID,
		Start:            start,
		End:              end,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// ClearDelegation removes a user's backup approver
func (h *Handlers) ClearDelegation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	user, err := h.services.Users.ClearDelegation(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// parseTimestamp requires an RFC3339 instant
func parseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperror.Validation(field, "is required")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperror.Validation(field, "expected an RFC3339 timestamp")
	}
	return t.UTC(), nil
}
