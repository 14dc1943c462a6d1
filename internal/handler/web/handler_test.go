package web

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/repository"
	"CryptoVol/internal/service/cache"
	"CryptoVol/internal/services/features"
	"CryptoVol/internal/services/regression"
	"CryptoVol/internal/usecase"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/metrics"
	"CryptoVol/pkg/samplegen"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct{ f *frame.Frame }

func (s memSource) LoadSeries(context.Context) (*frame.Frame, error) { return s.f, nil }

func (s memSource) Name() string { return "memory" }

type fixture struct {
	e          *echo.Echo
	handler    *Handler
	featureCSV string
	ready      *frame.Frame
	dir        string
}

func newFixture(t *testing.T, train bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	artifacts := repository.NewArtifactStore(dir, nil)
	featureStore := repository.NewCSVFeatureStore(dir, nil)

	var ready *frame.Frame
	if train {
		builder := usecase.NewFeatureBuilder(memSource{samplegen.Generate(samplegen.DefaultOptions())},
			features.NewEngine(nil), nil, []domrepo.FeatureSink{featureStore}, metrics.Nop{}, nil)
		trainer := usecase.NewTrainer(usecase.TrainerConfig{Candidates: []regression.Spec{
			{ID: "random_forest", Kind: regression.KindRandomForest, NEstimators: 5, Seed: 42},
		}}, artifacts, metrics.Nop{}, nil)
		_, err := usecase.NewTrainingPipeline(builder, trainer, nil, nil).Run(context.Background())
		require.NoError(t, err)
		ready, err = featureStore.LoadModelFeatures()
		require.NoError(t, err)
	}

	svc := usecase.NewPredictionService(artifacts, "", []string{models.ColTarget, models.ColDate}, metrics.Nop{}, nil)
	h, err := NewHandler(Config{
		UploadDir:      filepath.Join(dir, "uploads"),
		PredictionsDir: filepath.Join(dir, "predictions"),
		CacheTTL:       time.Minute,
	}, nil, svc, cache.NewTTLCache(16), nil)
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, handler: h, featureCSV: featureStore.ModelPath(), ready: ready, dir: dir}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte, maxRows string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if maxRows != "" {
		require.NoError(t, w.WriteField("max_rows", maxRows))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestIndex(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/?message=hello", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file"`)
	assert.Contains(t, rec.Body.String(), "hello")
}

func TestPredictUploadRedirects(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name     string
		req      *http.Request
		contains string
	}{
		{"no file", uploadRequest(t, "", nil, ""), "No+file+part"},
		{"wrong type", uploadRequest(t, "data.txt", []byte("a,b\n1,2\n"), ""), "Allowed+file+types"},
		{"no model", uploadRequest(t, "data.csv", []byte("a,b\n1,2\n"), ""), "Prediction+failed"},
		{"empty csv", uploadRequest(t, "data.csv", []byte(""), ""), "Prediction+failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.req)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderLocation), tt.contains)
		})
	}
}

func TestPredictUploadAndDownload(t *testing.T) {
	f := newFixture(t, true)
	content, err := os.ReadFile(f.featureCSV)
	require.NoError(t, err)

	rec := f.do(uploadRequest(t, "features.csv", content, "5"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Header().Get(echo.HeaderLocation))
	body := rec.Body.String()
	assert.Contains(t, body, "predictions_20240506_070809.csv")
	assert.Contains(t, body, "<th>prediction</th>")
	assert.NotContains(t, body, "<th>"+models.ColTarget+"</th>")

	out, err := repository.ReadTable(filepath.Join(f.dir, "predictions", "predictions_20240506_070809.csv"))
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
	assert.True(t, out.Has(models.ColPrediction))
	assert.False(t, out.Has(models.ColDate))

	dl := f.do(httptest.NewRequest(http.MethodGet, "/download/predictions_20240506_070809.csv", nil))
	assert.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get(echo.HeaderContentDisposition), "attachment")

	missing := f.do(httptest.NewRequest(http.MethodGet, "/download/nope.csv", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestPredictUploadInvalidMaxRowsUsesDefault(t *testing.T) {
	f := newFixture(t, true)
	content, err := os.ReadFile(f.featureCSV)
	require.NoError(t, err)

	rec := f.do(uploadRequest(t, "features.csv", content, "abc"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scored 100 rows")
}

func records(f *frame.Frame, n int) []map[string]interface{} {
	head := f.Head(n)
	out := make([]map[string]interface{}, head.Len())
	for i := range out {
		rec := map[string]interface{}{}
		for _, c := range head.Columns() {
			if c.IsNull(i) {
				continue
			}
			if c.Kind == frame.Numeric && !math.IsNaN(c.Nums[i]) {
				rec[c.Name] = c.Nums[i]
			} else {
				rec[c.Name] = c.Text(i)
			}
		}
		out[i] = rec
	}
	return out
}

func apiRequest(t *testing.T, payload interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestPredictJSONCachesResponses(t *testing.T) {
	f := newFixture(t, true)
	payload := map[string]interface{}{"rows": records(f.ready, 3)}

	first := f.do(apiRequest(t, payload))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "miss", first.Header().Get("X-Cache"))

	var resp struct {
		Data models.PredictResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Rows)
	assert.Len(t, resp.Data.Predictions, 3)
	assert.Equal(t, "random_forest", resp.Data.ModelID)

	second := f.do(apiRequest(t, payload))
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestPredictJSONErrors(t *testing.T) {
	f := newFixture(t, true)

	rows := records(f.ready, 2)
	for _, r := range rows {
		delete(r, models.ColATR14)
	}
	rec := f.do(apiRequest(t, map[string]interface{}{"rows": rows}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_SCHEMA_MISMATCH")

	rec = f.do(apiRequest(t, map[string]interface{}{"rows": []interface{}{}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_EMPTY_INPUT")

	rec = f.do(apiRequest(t, map[string]interface{}{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")

	rec = f.do(apiRequest(t, map[string]interface{}{"rows": records(f.ready, 1), "max_rows": -1}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	untrained := newFixture(t, false)
	rec := untrained.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	trained := newFixture(t, true)
	rec = trained.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "random_forest"))
}
