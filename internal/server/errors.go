package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	admissiondomain "github.com/plansight/plansight/internal/admission/domain"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "authentication required"}
	case errors.Is(err, jobdomain.ErrJobNotFound),
		errors.Is(err, ledgerdomain.ErrRecordNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "resource not found"}
	case errors.Is(err, ledgerdomain.ErrInvalidTier),
		errors.Is(err, ledgerdomain.ErrInvalidDuration),
		errors.Is(err, ledgerdomain.ErrInvalidCost),
		errors.Is(err, ledgerdomain.ErrInvalidUser),
		errors.Is(err, jobdomain.ErrInvalidJob),
		errors.Is(err, admissiondomain.ErrInvalidRequest),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	case errors.Is(err, admissiondomain.ErrChargeNotApplied):
		return http.StatusInternalServerError, errorPayload{Type: "charge_not_applied", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
