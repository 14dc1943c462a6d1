// Package web serves the upload-and-predict pages and the JSON prediction API.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/internal/service/cache"
	"CryptoVol/internal/service/ratelimit"
	"CryptoVol/internal/usecase"
	xhttp "CryptoVol/pkg/http"
	xlogger "CryptoVol/pkg/logger"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

type Config struct {
	UploadDir      string
	PredictionsDir string
	DefaultMaxRows int
	PreviewRows    int
	CacheTTL       time.Duration
}

// Handler implements xhttp.Handler.
type Handler struct {
	cfg     Config
	logger  *xlogger.Logger
	svc     *usecase.PredictionService
	cache   cache.BytesCache
	limiter *ratelimit.Limiter
	tmpl    *template.Template
	now     func() time.Time
}

// NewHandler parses the embedded templates. cache and limiter may be nil.
func NewHandler(cfg Config, logger *xlogger.Logger, svc *usecase.PredictionService, c cache.BytesCache, limiter *ratelimit.Limiter) (*Handler, error) {
	if cfg.DefaultMaxRows <= 0 {
		cfg.DefaultMaxRows = 100
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 20
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
		cache:   c,
		limiter: limiter,
		tmpl:    tmpl,
		now:     time.Now,
	}, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	var limited []echo.MiddlewareFunc
	if h.limiter != nil {
		limited = append(limited, ratelimit.Middleware(h.limiter, func(c echo.Context) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many prediction requests"))
		}))
	}

	e.GET("/", h.Index)
	e.POST("/predict", h.PredictUpload, limited...)
	e.GET("/download/:filename", h.Download)
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/predict", h.PredictJSON, limited...)
}

func (h *Handler) Health(c echo.Context) error {
	p, err := h.svc.Pipeline()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, xhttp.HealthResponse{Status: "model unavailable"})
	}
	return c.JSON(http.StatusOK, xhttp.HealthResponse{Status: "ok", ModelID: p.ModelID})
}

// redirectWithMessage sends the browser back to the form with a visible message.
func redirectWithMessage(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, "/?message="+url.QueryEscape(msg))
}

// appError maps domain failures onto API errors.
func appError(err error) *xhttp.AppError {
	var (
		empty    *models.EmptyInputError
		schema   *models.SchemaMismatchError
		missing  *models.MissingColumnError
		notFound *models.ModelNotFoundError
	)
	switch {
	case errors.As(err, &empty):
		return xhttp.UnprocessableError(xhttp.CodeEmptyInput, empty.Error())
	case errors.As(err, &schema):
		return xhttp.UnprocessableError(xhttp.CodeSchemaMismatch, schema.Error()).
			WithField(schema.Column).
			WithParam("expected", schema.Expected)
	case errors.As(err, &missing):
		return xhttp.BadRequestError(missing.Error()).WithField(missing.Column)
	case errors.As(err, &notFound):
		return xhttp.ServiceUnavailableError("no trained model is available")
	default:
		return xhttp.InternalError("prediction failed").WithError(err)
	}
}
