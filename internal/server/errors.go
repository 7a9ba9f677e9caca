package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	identitydomain "github.com/voundbrand/gatehouse/internal/identity/domain"
	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	provisioningdomain "github.com/voundbrand/gatehouse/internal/provisioning/domain"
	quotadomain "github.com/voundbrand/gatehouse/internal/quota/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

// ErrorHandlingMiddleware converts errors attached to the gin context into a
// JSON error response after the handler chain runs.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var vErr *provisioningdomain.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: vErr.Field, Code: "invalid", Message: vErr.Reason},
			},
		}
	}

	switch {
	case errors.Is(err, provisioningdomain.ErrAlreadyExists),
		errors.Is(err, identitydomain.ErrAccountExists):
		return http.StatusConflict, errorPayload{
			Type:    "account_exists",
			Message: "an account with this email already exists",
		}

	case errors.Is(err, provisioningdomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "retry_later",
			Message: "a request with this idempotency key is already in flight",
		}

	case errors.Is(err, identitydomain.ErrInvalidEmail):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "email", Code: "invalid", Message: "not a valid address"},
			},
		}

	case errors.Is(err, quotadomain.ErrUnknownTier):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "plan_tier", Code: "invalid", Message: "unknown plan tier"},
			},
		}

	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}

	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many signup attempts, slow down",
		}

	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, orgdomain.ErrOrgNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
		}

	case errors.Is(err, orgdomain.ErrSlugExhausted):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "could not allocate a workspace slug",
		}
	}

	// Everything else is a storage or downstream failure the client can
	// safely retry with the same idempotency key.
	return http.StatusServiceUnavailable, errorPayload{
		Type:    "service_unavailable",
		Message: "temporary failure, retry with the same idempotency key",
	}
}
