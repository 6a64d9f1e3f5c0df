package response

import "net/http"

// AppError is an expected failure with a client-facing message.
type AppError struct {
	Status      int
	Message     string
	Errors      []FieldError
	Operational bool
}

func (e *AppError) Error() string {
	return e.Message
}

func New(status int, message string) *AppError {
	return &AppError{Status: status, Message: message, Operational: true}
}

func BadRequest(message string) *AppError   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *AppError { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *AppError    { return New(http.StatusForbidden, message) }
func NotFound(message string) *AppError     { return New(http.StatusNotFound, message) }
func Conflict(message string) *AppError     { return New(http.StatusConflict, message) }
func Internal(message string) *AppError     { return New(http.StatusInternalServerError, message) }
