package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/protocolreg/internal/policy"
	"github.com/adamscao/protocolreg/internal/registry"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondError sends an error response
func RespondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondErrorWithDetails sends an error response with details
func RespondErrorWithDetails(c *gin.Context, statusCode int, errorCode string, message string, details any) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// RespondSuccess sends a success response
func RespondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RespondRegistryError maps a core error onto an HTTP response. Unexpected
// errors are logged and reported generically.
func RespondRegistryError(c *gin.Context, logger *slog.Logger, err error) {
	var verr *policy.ValidationError
	switch {
	case errors.As(err, &verr):
		RespondErrorWithDetails(c, http.StatusBadRequest, "validation_error", verr.Error(), gin.H{"field": verr.Field})
	case errors.Is(err, registry.ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid login or password")
	case errors.Is(err, registry.ErrForbidden):
		RespondError(c, http.StatusForbidden, "forbidden", "Operation not permitted")
	case errors.Is(err, registry.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", "Record not found")
	case errors.Is(err, registry.ErrDuplicateLogin):
		RespondError(c, http.StatusConflict, "duplicate_login", "A user with this login already exists")
	case errors.Is(err, registry.ErrReferenced):
		RespondError(c, http.StatusConflict, "referenced", "Record is still referenced by protocols")
	case errors.Is(err, registry.ErrLastAdmin):
		RespondError(c, http.StatusConflict, "last_admin", "At least one active administrator must remain")
	case errors.Is(err, registry.ErrSelfDelete):
		RespondError(c, http.StatusConflict, "self_delete", "You cannot delete your own account")
	default:
		logger.ErrorContext(c.Request.Context(), "request failed",
			"request_id", c.GetString("request_id"), "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "internal_error", "The operation failed")
	}
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid %s", name))
		return 0, false
	}
	return id, true
}

// parseDate parses an optional YYYY-MM-DD value
func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, &policy.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return &t, nil
}

// parseQueryDates reads date_from and date_to query parameters
func parseQueryDates(c *gin.Context) (from, to *time.Time, err error) {
	if from, err = parseDate("date_from", c.Query("date_from")); err != nil {
		return nil, nil, err
	}
	if to, err = parseDate("date_to", c.Query("date_to")); err != nil {
		return nil, nil, err
	}
	return from, to, policy.ValidateDateRange(from, to)
}
