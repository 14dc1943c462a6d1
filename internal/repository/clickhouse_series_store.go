package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"CryptoVol/internal/domain/models"
	pkgch "CryptoVol/pkg/clickhouse"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
	"CryptoVol/pkg/util"
)

const insertChunkSize = 2000

// CHSeriesStore reads the raw series from and writes feature rows to ClickHouse.
type CHSeriesStore struct {
	db            *sql.DB
	seriesTable   string
	featuresTable string
	l             *applogger.Logger
}

func NewCHSeriesStore(ch *pkgch.Client, seriesTable, featuresTable string, l *applogger.Logger) *CHSeriesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesStore{db: ch.DB(), seriesTable: seriesTable, featuresTable: featuresTable, l: l}
}

func (s *CHSeriesStore) Name() string { return "clickhouse:" + s.seriesTable }

// SchemaStatements returns idempotent DDL for both tables.
func SchemaStatements(seriesTable, featuresTable string) []string {
	priceCols := make([]string, 0, len(models.PriceColumns))
	for _, c := range models.PriceColumns {
		priceCols = append(priceCols, fmt.Sprintf("`%s` Nullable(Float64)", c))
	}
	featureCols := make([]string, 0, len(models.FeatureColumns))
	for _, c := range models.FeatureColumns {
		featureCols = append(featureCols, fmt.Sprintf("`%s` Nullable(Float64)", c))
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    crypto_name String,
    date Date,
    %s
) ENGINE = ReplacingMergeTree
ORDER BY (crypto_name, date)`, seriesTable, strings.Join(priceCols, ",\n    ")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    crypto_name String,
    date Date,
    %s,
    %s,
    inserted_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (crypto_name, date)`, featuresTable, strings.Join(priceCols, ",\n    "), strings.Join(featureCols, ",\n    ")),
	}
}

func (s *CHSeriesStore) LoadSeries(ctx context.Context) (*frame.Frame, error) {
	start := time.Now()
	cols := append([]string{models.ColAsset, models.ColDate}, models.PriceColumns...)
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY crypto_name ASC, date ASC", quoteColumns(cols), s.seriesTable)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse load_series query error", applogger.String("table", s.seriesTable), applogger.Error(err))
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var (
		assets []string
		dates  []string
		prices = make([][]float64, len(models.PriceColumns))
	)
	for rows.Next() {
		var (
			asset string
			date  time.Time
			vals  = make([]sql.NullFloat64, len(models.PriceColumns))
		)
		dest := []interface{}{&asset, &date}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			s.l.Error("clickhouse load_series scan error", applogger.String("table", s.seriesTable), applogger.Error(err))
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		assets = append(assets, asset)
		dates = append(dates, util.FormatDate(date))
		for i, v := range vals {
			if v.Valid {
				prices[i] = append(prices[i], v.Float64)
			} else {
				prices[i] = append(prices[i], math.NaN())
			}
		}
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse load_series rows error", applogger.String("table", s.seriesTable), applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}

	out := []*frame.Column{
		frame.NewCategorical(models.ColAsset, assets),
		frame.NewCategorical(models.ColDate, dates),
	}
	for i, name := range models.PriceColumns {
		vals := prices[i]
		if vals == nil {
			vals = []float64{}
		}
		out = append(out, frame.NewNumeric(name, vals))
	}
	f, err := frame.New(out...)
	if err != nil {
		return nil, err
	}
	s.l.Info("clickhouse load_series ok",
		applogger.String("table", s.seriesTable),
		applogger.Int("rows", f.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return f, nil
}

// SaveFeatures appends the full feature table; the model-ready view is derivable
// from it with a null filter and is not stored twice.
func (s *CHSeriesStore) SaveFeatures(ctx context.Context, full, _ *frame.Frame) error {
	start := time.Now()
	cols := append([]string{models.ColAsset, models.ColDate}, models.PriceColumns...)
	cols = append(cols, models.FeatureColumns...)
	for _, c := range cols {
		if !full.Has(c) {
			return &models.MissingColumnError{Column: c}
		}
	}

	inserted := 0
	for lo := 0; lo < full.Len(); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > full.Len() {
			hi = full.Len()
		}
		q, args := buildInsert(s.featuresTable, cols, full, lo, hi)
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse save_features insert error",
				applogger.String("table", s.featuresTable),
				applogger.Int("offset", lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert features: %w", err)
		}
		inserted += len(args) / len(cols)
	}
	s.l.Info("clickhouse save_features ok",
		applogger.String("table", s.featuresTable),
		applogger.Int("rows", inserted),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// buildInsert renders a multi-row VALUES insert for rows [lo, hi). Rows with no
// asset or no parseable date are skipped since the table keys on both.
func buildInsert(table string, cols []string, f *frame.Frame, lo, hi int) (string, []interface{}) {
	columns := make([]*frame.Column, len(cols))
	nums := make([][]float64, len(cols))
	for i, name := range cols {
		columns[i], _ = f.Column(name)
		if i >= 2 {
			nums[i] = columns[i].Floats()
		}
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	values := make([]string, 0, hi-lo)
	args := make([]interface{}, 0, (hi-lo)*len(cols))
	for r := lo; r < hi; r++ {
		asset := columns[0].Text(r)
		date, ok := util.ParseDate(columns[1].Text(r))
		if asset == "" || !ok {
			continue
		}
		values = append(values, placeholder)
		args = append(args, asset, date)
		for _, vals := range nums[2:] {
			if math.IsNaN(vals[r]) {
				args = append(args, nil)
				continue
			}
			args = append(args, vals[r])
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, quoteColumns(cols), strings.Join(values, ","))
	return q, args
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "`" + c + "`"
	}
	return strings.Join(quoted, ", ")
}
