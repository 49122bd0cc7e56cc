package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a domain error carrying a stable code and an HTTP mapping.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	HTTPCode int    `json:"-"`
	cause    error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error for logging and unwrapping.
func (e *AppError) WithCause(err error) *AppError {
	clone := *e
	clone.cause = err
	return &clone
}

func New(code string, httpCode int, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
	}
}

func Validation(detail string) *AppError {
	return New("VALIDATION_ERROR", http.StatusBadRequest, detail)
}

func GatewayAuth(detail string) *AppError {
	return New("GATEWAY_AUTH_ERROR", http.StatusBadGateway, detail)
}

func GatewayRequest(detail string) *AppError {
	return New("GATEWAY_REQUEST_ERROR", http.StatusBadGateway, detail)
}

func NotFound(what string) *AppError {
	return New("RECORD_NOT_FOUND", http.StatusNotFound, fmt.Sprintf("%s not found", what))
}

func PaymentNotConfirmed() *AppError {
	return New("PAYMENT_NOT_CONFIRMED", http.StatusBadRequest, "payment is not completed, cannot submit claim")
}

func DuplicateClaim() *AppError {
	return New("DUPLICATE_CLAIM", http.StatusConflict, "a claim for this lost ID already exists")
}

func Persistence(detail string) *AppError {
	return New("PERSISTENCE_ERROR", http.StatusInternalServerError, detail)
}

// AsAppError extracts an *AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps an error to its HTTP status, defaulting to 500.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPCode
	}
	return http.StatusInternalServerError
}
