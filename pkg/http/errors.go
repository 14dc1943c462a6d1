package http

import (
	"fmt"
	"net/http"
)

// Error codes shared by every JSON endpoint. Codes are stable; messages are not.
const (
	CodeBadRequest     = "ERR_BAD_REQUEST"
	CodeNotFound       = "ERR_NOT_FOUND"
	CodeEmptyInput     = "ERR_EMPTY_INPUT"
	CodeSchemaMismatch = "ERR_SCHEMA_MISMATCH"
	CodeRateLimited    = "ERR_RATE_LIMITED"
	CodeUnavailable    = "ERR_UNAVAILABLE"
	CodeInternal       = "ERR_INTERNAL"
)

// AppError is an error with the HTTP status and code it is rendered with.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithField names the request field or column the error is about.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithError keeps the cause for logs; it is never serialised.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return newError(http.StatusBadRequest, CodeBadRequest, message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func NotFoundError(message string) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, message)
}

// UnprocessableError is for well-formed input the model cannot score.
func UnprocessableError(code, message string) *AppError {
	return newError(http.StatusUnprocessableEntity, code, message)
}

func TooManyRequestsError(message string) *AppError {
	return newError(http.StatusTooManyRequests, CodeRateLimited, message)
}

func ServiceUnavailableError(message string) *AppError {
	return newError(http.StatusServiceUnavailable, CodeUnavailable, message)
}

func InternalError(message string) *AppError {
	return newError(http.StatusInternalServerError, CodeInternal, message)
}
