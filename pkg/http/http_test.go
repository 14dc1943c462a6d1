package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "CryptoVol/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

type scoreRequest struct {
	Rows    []map[string]interface{} `json:"rows" validate:"required,min=1"`
	MaxRows int                      `json:"max_rows" default:"100" validate:"gte=1"`
}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	e.GET("/gone", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("no such thing").WithField("id"))
	})
	e.GET("/plain", func(c echo.Context) error { return AppErrorResponse(c, errors.New("boom")) })
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })
	e.POST("/score", func(c echo.Context) error {
		var req scoreRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req.MaxRows)
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(routes{}, applogger.Nop(), WithRegistry(prometheus.NewRegistry()), WithBodyLimit("1K"))
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestResponses(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", decode(t, rec)["data"])

	rec = serve(s, http.MethodGet, "/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, http.StatusNotFound, body["status"])
	errs := body["data"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_NOT_FOUND", errs[0].(map[string]interface{})["code"])
	assert.Equal(t, "id", errs[0].(map[string]interface{})["field"])

	rec = serve(s, http.MethodGet, "/plain", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValidation(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodPost, "/score", `{"rows":[{"a":1}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 100, decode(t, rec)["data"])

	rec = serve(s, http.MethodPost, "/score", `{"rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["data"].([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "ERR_MIN", first["code"])
	assert.Equal(t, "rows", first["field"])
	assert.Equal(t, "rows must contain at least 1 items", first["message"])

	rec = serve(s, http.MethodPost, "/score", `{"rows":[{"a":1}],"max_rows":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	first = decode(t, rec)["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "max_rows must be greater than or equal to 1", first["message"])
	assert.Equal(t, map[string]interface{}{"min": "1"}, first["params"])

	rec = serve(s, http.MethodPost, "/score", `{"rows":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_BIND", decode(t, rec)["data"].([]interface{})[0].(map[string]interface{})["code"])
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t)
	big := `{"rows":[{"a":"` + string(bytes.Repeat([]byte("x"), 2048)) + `"}]}`
	rec := serve(s, http.MethodPost, "/score", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	serve(s, http.MethodGet, "/ok", "")
	serve(s, http.MethodGet, "/gone", "")

	rec := serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `http_requests_total{method="GET",route="/ok",status="200"} 1`)
	assert.Contains(t, out, `route="/gone",status="404"`)
}

func TestAppErrorResponseFromEcho(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, echo.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeNotFound)
}

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := InternalError("write failed").WithError(cause).WithParam("path", "/tmp/x")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write failed: disk full", err.Error())
	assert.Equal(t, "/tmp/x", err.Params["path"])
	assert.Equal(t, http.StatusTooManyRequests, TooManyRequestsError("slow down").Status)
	assert.Equal(t, "bad 3", BadRequestErrorf("bad %d", 3).Message)
}
