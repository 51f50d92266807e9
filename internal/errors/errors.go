package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"
	ErrSessionRevoked     ErrorCode = "40103"

	// Authorization errors (403xx)
	ErrForbidden       ErrorCode = "40301"
	ErrAccountDisabled ErrorCode = "40302"
	// Quota exhaustion is a 403-class failure distinct from Forbidden so
	// clients can tell "buy more quota" from "not allowed".
	ErrQuotaExceeded ErrorCode = "40310"

	// Resource errors (404xx)
	ErrUserNotFound      ErrorCode = "40401"
	ErrAPIConfigNotFound ErrorCode = "40402"
	ErrToolNotFound      ErrorCode = "40403"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Server errors (500xx)
	ErrInternalServer   ErrorCode = "50001"
	ErrStoreUnavailable ErrorCode = "50301"
)

// Quota deny reasons, carried in the Details of a QuotaExceeded error
const (
	QuotaReasonCreatorOverrideMonthly = "creator_override_monthly_exceeded"
	QuotaReasonCreatorOverrideDaily   = "creator_override_daily_exceeded"
	QuotaReasonUserLimitMonthly       = "user_defined_monthly_exceeded"
	QuotaReasonUserLimitDaily         = "user_defined_daily_exceeded"
	QuotaReasonTierMonthly            = "tier_monthly_exceeded"
	QuotaReasonTierDaily              = "tier_daily_exceeded"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid or missing credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSessionRevokedError = &APIError{
		Code:       ErrSessionRevoked,
		Message:    "Session has been revoked",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrAccountDisabledError = &APIError{
		Code:       ErrAccountDisabled,
		Message:    "Account is disabled or suspended",
		HTTPStatus: http.StatusForbidden,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrAPIConfigNotFoundError = &APIError{
		Code:       ErrAPIConfigNotFound,
		Message:    "API configuration not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrToolNotFoundError = &APIError{
		Code:       ErrToolNotFound,
		Message:    "Tool not registered",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStoreUnavailableError = &APIError{
		Code:       ErrStoreUnavailable,
		Message:    "Backing store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewQuotaExceededError creates a quota error with a machine-readable reason
func NewQuotaExceededError(reason string) *APIError {
	return &APIError{
		Code:       ErrQuotaExceeded,
		Message:    "API quota exceeded",
		Details:    map[string]string{"reason": reason},
		HTTPStatus: http.StatusForbidden,
	}
}

// NewForbiddenError creates a forbidden error with a specific message
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:       ErrForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
