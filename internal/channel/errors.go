package channel

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode enumerates the gateway error taxonomy. Codes are stable wire
// values shared by the pipeline and the HTTP surface.
type ErrorCode string

const (
	ErrRateLimitExceeded       ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrInvalidMessage          ErrorCode = "INVALID_MESSAGE"
	ErrAuthenticationFailed    ErrorCode = "AUTHENTICATION_FAILED"
	ErrValidationError         ErrorCode = "VALIDATION_ERROR"
	ErrMessageTooLarge         ErrorCode = "MESSAGE_TOO_LARGE"
	ErrRAGServiceError         ErrorCode = "RAG_SERVICE_ERROR"
	ErrInternalError           ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable      ErrorCode = "SERVICE_UNAVAILABLE"
	ErrChannelUnavailable      ErrorCode = "CHANNEL_UNAVAILABLE"
	ErrPIIDetected             ErrorCode = "PII_DETECTED"
	ErrRequiresHumanEscalation ErrorCode = "REQUIRES_HUMAN_ESCALATION"
)

// GatewayError is the typed error returned by hooks and the pipeline.
type GatewayError struct {
	Code        ErrorCode      `json:"error_code"`
	Message     string         `json:"error_message"`
	Recoverable bool           `json:"recoverable"`
	Details     map[string]any `json:"details,omitempty"`
}

// NewGatewayError builds a GatewayError with the given code and message.
func NewGatewayError(code ErrorCode, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, Recoverable: recoverableByDefault(code)}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail attaches a key/value pair to the error details.
func (e *GatewayError) WithDetail(key string, value any) *GatewayError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error code onto the wire status.
func (e *GatewayError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidMessage, ErrValidationError:
		return http.StatusBadRequest
	case ErrAuthenticationFailed:
		return http.StatusUnauthorized
	case ErrMessageTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrRAGServiceError:
		return http.StatusBadGateway
	case ErrServiceUnavailable, ErrChannelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsGatewayError unwraps err into a *GatewayError when possible.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

func recoverableByDefault(code ErrorCode) bool {
	switch code {
	case ErrRateLimitExceeded, ErrInvalidMessage, ErrAuthenticationFailed,
		ErrValidationError, ErrMessageTooLarge:
		return true
	}
	return false
}
