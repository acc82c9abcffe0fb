package apihandlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"annotate/internal/models"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "Invalid ID" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// BadRequest rejects malformed parameters and bodies.
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, models.ErrBackend), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "bad_gateway"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondError writes err as a structured JSON error and records it on the
// context for the request logger.
func RespondError(ctx *gin.Context, err error) {
	status, code := statusFor(err)
	_ = ctx.Error(err)
	JSONError(ctx, status, code, err.Error())
}
