package web

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"CryptoVol/internal/domain/models"
	"CryptoVol/internal/repository"
	"CryptoVol/pkg/frame"
	xlogger "CryptoVol/pkg/logger"
	"CryptoVol/pkg/util"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type indexView struct {
	Message        string
	DefaultMaxRows int
	ModelID        string
}

type resultView struct {
	ModelID      string
	Rows         int
	Columns      []string
	Preview      [][]string
	DownloadFile string
}

func (h *Handler) Index(c echo.Context) error {
	view := indexView{
		Message:        c.QueryParam("message"),
		DefaultMaxRows: h.cfg.DefaultMaxRows,
	}
	if p, err := h.svc.Pipeline(); err == nil {
		view.ModelID = p.ModelID
	}
	return h.render(c, http.StatusOK, "index", view)
}

// PredictUpload scores the first max_rows rows of an uploaded CSV, stores the
// scored table for download and renders a preview. Every failure redirects to
// the form with a message.
func (h *Handler) PredictUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return redirectWithMessage(c, "No file part")
	}
	if fh.Filename == "" {
		return redirectWithMessage(c, "No selected file")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return redirectWithMessage(c, "Allowed file types: csv")
	}

	saved, err := h.saveUpload(fh)
	if err != nil {
		h.logger.Error("upload save failed", xlogger.String("filename", fh.Filename), xlogger.Error(err))
		return redirectWithMessage(c, "Could not store the uploaded file")
	}

	table, err := repository.ReadTable(saved)
	if err != nil {
		h.logger.Warn("upload parse failed", xlogger.String("path", saved), xlogger.Error(err))
		return redirectWithMessage(c, fmt.Sprintf("Prediction failed: %v", err))
	}

	maxRows := util.ParseIntDefault(c.FormValue("max_rows"), h.cfg.DefaultMaxRows)
	if maxRows < 1 {
		maxRows = h.cfg.DefaultMaxRows
	}
	pred, err := h.svc.Predict(c.Request().Context(), table.Head(maxRows))
	if err != nil {
		h.logger.Warn("upload prediction failed",
			xlogger.String("path", saved),
			xlogger.Int("rows", table.Len()),
			xlogger.Error(err),
		)
		return redirectWithMessage(c, fmt.Sprintf("Prediction failed: %v", err))
	}

	out := pred.Input
	if err := out.Set(frame.NewNumeric(models.ColPrediction, pred.Values)); err != nil {
		return redirectWithMessage(c, fmt.Sprintf("Prediction failed: %v", err))
	}
	name := "predictions_" + h.now().UTC().Format("20060102_150405") + ".csv"
	if err := writeCSV(filepath.Join(h.cfg.PredictionsDir, name), out); err != nil {
		h.logger.Error("prediction file write failed", xlogger.String("file", name), xlogger.Error(err))
		return redirectWithMessage(c, "Could not store the predictions")
	}

	h.logger.Info("upload scored",
		xlogger.String("model_id", pred.ModelID),
		xlogger.Int("rows", out.Len()),
		xlogger.String("file", name),
	)
	return h.render(c, http.StatusOK, "result", resultView{
		ModelID:      pred.ModelID,
		Rows:         out.Len(),
		Columns:      out.Names(),
		Preview:      previewRows(out, h.cfg.PreviewRows),
		DownloadFile: name,
	})
}

// Download serves a stored predictions file as an attachment.
func (h *Handler) Download(c echo.Context) error {
	name := c.Param("filename")
	if name == "" || util.SafeFileName(name) != name {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	path := filepath.Join(h.cfg.PredictionsDir, name)
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.Attachment(path, name)
}

func (h *Handler) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.cfg.UploadDir, uuid.NewString()[:8]+"_"+util.SafeFileName(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (h *Handler) render(c echo.Context, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("template render failed", xlogger.String("template", name), xlogger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func previewRows(f *frame.Frame, n int) [][]string {
	head := f.Head(n)
	rows := make([][]string, head.Len())
	for i := range rows {
		row := make([]string, head.Width())
		for j, col := range head.Columns() {
			row[j] = col.Text(i)
		}
		rows[i] = row
	}
	return rows
}

func writeCSV(path string, f *frame.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf, f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
