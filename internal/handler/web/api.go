package web

import (
	"encoding/json"
	"net/http"

	"CryptoVol/internal/domain/models"
	"CryptoVol/internal/service/cache"
	"CryptoVol/pkg/frame"
	xhttp "CryptoVol/pkg/http"
	xlogger "CryptoVol/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictJSON scores rows sent as JSON objects. Responses are cached per
// served model and payload.
func (h *Handler) PredictJSON(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	p, err := h.svc.Pipeline()
	if err != nil {
		h.logger.Error("pipeline unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}

	rows := req.Rows
	if len(rows) > req.MaxRows {
		rows = rows[:req.MaxRows]
	}

	var key string
	if h.cache != nil {
		payload, err := json.Marshal(rows)
		if err == nil {
			key = cache.PredictionKey(p.ModelID, p.TrainedAt, payload)
			if b, ok, err := h.cache.GetBytes(ctx, key); err == nil && ok {
				c.Response().Header().Set("X-Cache", "hit")
				return c.JSONBlob(http.StatusOK, b)
			} else if err != nil {
				h.logger.Warn("prediction cache read failed", xlogger.Error(err))
			}
		}
	}

	input, err := frame.FromRecords(rows)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	pred, err := h.svc.Predict(ctx, input)
	if err != nil {
		h.logger.Warn("api prediction failed", xlogger.Int("rows", len(rows)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}

	body, err := json.Marshal(xhttp.Envelope(http.StatusOK, models.PredictResponse{
		ModelID:     pred.ModelID,
		Rows:        len(pred.Values),
		Predictions: pred.Values,
	}))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("encode response").WithError(err))
	}
	if key != "" {
		if err := h.cache.SetBytes(ctx, key, body, h.cfg.CacheTTL); err != nil {
			h.logger.Warn("prediction cache write failed", xlogger.Error(err))
		}
	}
	c.Response().Header().Set("X-Cache", "miss")
	return c.JSONBlob(http.StatusOK, body)
}
