package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler registers its routes on the shared echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// APIResponse is the envelope of every JSON response. Status repeats the
// HTTP status so clients reading a cached body still see it.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"rows"`
	Message string                 `json:"message,omitempty" example:"rows is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	ModelID string `json:"model_id,omitempty" example:"random_forest"`
}

// Envelope builds the response body without writing it, for callers that
// cache the encoded form.
func Envelope(status int, data interface{}) APIResponse {
	return APIResponse{Status: status, Message: http.StatusText(status), Data: data}
}

func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope(status, data))
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse renders err as a one-element error list. echo errors keep
// their status; anything else becomes a 500 without leaking its text.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return DataResponse(c, he.Code, []*AppError{newError(he.Code, codeForStatus(he.Code), fmt.Sprint(he.Message))})
	}
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("something went wrong")})
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusServiceUnavailable:
		return CodeUnavailable
	case status >= http.StatusInternalServerError:
		return CodeInternal
	default:
		return CodeBadRequest
	}
}
