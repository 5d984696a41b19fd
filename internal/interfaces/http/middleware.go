package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries the correlation id of a call
	HeaderRequestID = "X-Request-ID"

	// HeaderUserID identifies the caller; it is set by the trusted gateway
	HeaderUserID = "X-User-ID"

	// HeaderIdempotencyKey makes creation requests safe to retry
	HeaderIdempotencyKey = "Idempotency-Key"

	requestIDKey = "request_id"
	userKey      = "user"
)

// HTTPObserver records per-route request metrics
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// requestIDMiddleware reuses the caller's X-Request-ID or generates one and
// attaches it to the request context as the correlation id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(service.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

// loggingMiddleware logs every request and feeds the metrics observer
func loggingMiddleware(logger Logger, observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)

		if observer != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			observer.ObserveHTTP(method, route, status, latency)
		}
	}
}

// corsMiddleware answers preflight requests and sets CORS headers for the
// allowed origins. "*" allows any origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", strings.Join([]string{
				"Content-Type", HeaderUserID, HeaderRequestID, HeaderIdempotencyKey,
			}, ", "))
			c.Header("Access-Control-Expose-Headers", HeaderRequestID)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// recoveryMiddleware turns panics into an INTERNAL_ERROR envelope
func recoveryMiddleware(logger Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
			"panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   &ErrorBody{Code: apperror.CodeInternal, Message: "internal server error"},
		})
	})
}

// identityMiddleware resolves X-User-ID to a directory user
func identityMiddleware(users service.UserService, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			respondError(c, logger, apperror.New(apperror.CodeUnauthorized, "missing "+HeaderUserID+" header"))
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(c, logger, apperror.New(apperror.CodeUnauthorized, "invalid "+HeaderUserID+" header"))
			return
		}

		user, err := users.Get(c.Request.Context(), id)
		if err != nil {
			if apperror.Is(err, apperror.CodeNotFound) {
				err = apperror.New(apperror.CodeUnauthorized, "unknown user")
			}
			respondError(c, logger, err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// requireRole rejects callers whose role does not satisfy allowed
func requireRole(allowed func(entity.Role) bool, message string, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsActive || !allowed(user.Role) {
			respondError(c, logger, apperror.Forbidden(message))
			return
		}
		c.Next()
	}
}

// currentUser returns the caller resolved by identityMiddleware
func currentUser(c *gin.Context) *entity.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*entity.User); ok {
			return user
		}
	}
	return nil
}
