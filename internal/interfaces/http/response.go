package http

import (
	"errors"
	"net/http"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    apperror.Code          `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var statusByCode = map[apperror.Code]int{
	apperror.CodeValidation:          http.StatusBadRequest,
	apperror.CodeInvalidStatus:       http.StatusBadRequest,
	apperror.CodeAlreadyApproved:     http.StatusBadRequest,
	apperror.CodeInvalidDate:         http.StatusBadRequest,
	apperror.CodeUnauthorized:        http.StatusUnauthorized,
	apperror.CodeSelfApproval:        http.StatusForbidden,
	apperror.CodeForbidden:           http.StatusForbidden,
	apperror.CodeNotFound:            http.StatusNotFound,
	apperror.CodeConflict:            http.StatusConflict,
	apperror.CodeDuplicatePending:    http.StatusConflict,
	apperror.CodeDuplicateSubmission: http.StatusConflict,
	apperror.CodeInternal:            http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error code
func StatusFor(code apperror.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError writes the envelope for err. Unclassified errors are logged
// and reported without their internals.
func respondError(c *gin.Context, logger Logger, err error) {
	body := &ErrorBody{Code: apperror.CodeInternal, Message: "internal server error"}

	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Code != apperror.CodeInternal {
		body.Code = appErr.Code
		body.Message = appErr.Message
		body.Details = appErr.Details
	} else {
		logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err)
	}

	c.AbortWithStatusJSON(StatusFor(body.Code), Response{Success: false, Error: body})
}
