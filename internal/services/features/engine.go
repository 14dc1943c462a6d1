package features

import (
	"math"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
	"CryptoVol/pkg/util"
)

const (
	shortWindow = 7
	longWindow  = 30
	atrWindow   = 14

	// liquidityEpsilon keeps liquidity finite when marketCap is zero.
	liquidityEpsilon = 1e-9
)

// Engine derives per-asset rolling features from raw OHLCV series.
type Engine struct {
	logger *applogger.Logger
}

func NewEngine(l *applogger.Logger) *Engine {
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{logger: l}
}

// Compute returns one FeatureRow per input row, ordered by asset then date.
// Rolling state never crosses an asset boundary.
func (e *Engine) Compute(rows []models.TimeSeriesRow) []models.FeatureRow {
	order := sortedOrder(rows)
	parts, orphans := partitionByAsset(rows, order)

	out := make([]models.FeatureRow, 0, len(rows))
	s := newRollingState()
	for _, p := range parts {
		s.reset()
		start := len(out)
		for _, idx := range p.rows {
			out = append(out, s.next(rows[idx]))
		}
		assetRows := out[start:]
		for i := 0; i < len(assetRows)-1; i++ {
			assetRows[i].Target = assetRows[i+1].Vol7d
		}
	}
	// Rows without an asset only get the row-local features.
	for _, idx := range orphans {
		r := models.NewFeatureRow(rows[idx])
		r.LogPrice = math.Log1p(r.Close)
		r.Liquidity = liquidity(r.Volume, r.MarketCap)
		r.TR = trueRange(r.High, r.Low, math.NaN())
		out = append(out, r)
	}

	e.logger.Debug("features computed",
		applogger.Int("rows", len(out)),
		applogger.Int("assets", len(parts)),
		applogger.Int("rows_without_asset", len(orphans)),
	)
	return out
}

// Transform validates a raw table and returns it reordered by asset and date
// with the feature columns appended. Price columns are coerced to numbers and
// the date column is normalised to calendar dates.
func (e *Engine) Transform(f *frame.Frame) (*frame.Frame, error) {
	rows, err := RowsFromFrame(f)
	if err != nil {
		return nil, err
	}
	feats := e.Compute(rows)

	idx := make([]int, len(feats))
	for i, r := range feats {
		idx[i] = r.Index
	}
	out := f.Take(idx)

	n := len(feats)
	dates := make([]string, n)
	cols := map[string][]float64{}
	for _, name := range models.PriceColumns {
		cols[name] = make([]float64, n)
	}
	for _, name := range models.FeatureColumns {
		cols[name] = make([]float64, n)
	}
	for i, r := range feats {
		dates[i] = util.FormatDate(r.Date)
		cols[models.ColOpen][i] = r.Open
		cols[models.ColHigh][i] = r.High
		cols[models.ColLow][i] = r.Low
		cols[models.ColClose][i] = r.Close
		cols[models.ColVolume][i] = r.Volume
		cols[models.ColMarketCap][i] = r.MarketCap
		for _, name := range models.FeatureColumns {
			cols[name][i], _ = r.Feature(name)
		}
	}

	if err := out.Set(frame.NewCategorical(models.ColDate, dates)); err != nil {
		return nil, err
	}
	for _, name := range models.PriceColumns {
		if err := out.Set(frame.NewNumeric(name, cols[name])); err != nil {
			return nil, err
		}
	}
	for _, name := range models.FeatureColumns {
		if err := out.Set(frame.NewNumeric(name, cols[name])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ModelReady keeps only the rows whose model-ready features and target are all present.
func ModelReady(f *frame.Frame) *frame.Frame {
	return f.DropNull(models.ModelReadyColumns...)
}

// RowsFromFrame maps a raw table onto typed rows. Required columns must exist;
// their cells are parsed tolerantly and anything unparsable becomes null.
func RowsFromFrame(f *frame.Frame) ([]models.TimeSeriesRow, error) {
	asset, ok := f.Column(models.ColAsset)
	if !ok {
		return nil, &models.MissingColumnError{Column: models.ColAsset}
	}
	date, ok := f.Column(models.ColDate)
	if !ok {
		if date, ok = f.Column(models.ColTimestamp); !ok {
			return nil, &models.MissingColumnError{Column: models.ColDate}
		}
	}
	prices := make(map[string][]float64, len(models.PriceColumns))
	for _, name := range models.PriceColumns {
		col, ok := f.Column(name)
		if !ok {
			return nil, &models.MissingColumnError{Column: name}
		}
		prices[name] = col.Floats()
	}

	rows := make([]models.TimeSeriesRow, f.Len())
	for i := range rows {
		var d time.Time
		if !date.IsNull(i) {
			d, _ = util.ParseDate(date.Text(i))
		}
		rows[i] = models.TimeSeriesRow{
			Index:     i,
			Asset:     asset.Text(i),
			Date:      d,
			Open:      prices[models.ColOpen][i],
			High:      prices[models.ColHigh][i],
			Low:       prices[models.ColLow][i],
			Close:     prices[models.ColClose][i],
			Volume:    prices[models.ColVolume][i],
			MarketCap: prices[models.ColMarketCap][i],
		}
	}
	return rows, nil
}

// rollingState carries the trailing windows of the asset being processed.
type rollingState struct {
	first        bool
	prevLogPrice float64
	prevClose    float64
	ret7, ret30  *window
	ma7, ma30    *window
	atr          *window
}

func newRollingState() *rollingState {
	return &rollingState{
		ret7:  newWindow(shortWindow),
		ret30: newWindow(longWindow),
		ma7:   newWindow(shortWindow),
		ma30:  newWindow(longWindow),
		atr:   newWindow(atrWindow),
	}
}

func (s *rollingState) reset() {
	s.first = true
	s.prevLogPrice = math.NaN()
	s.prevClose = math.NaN()
	for _, w := range []*window{s.ret7, s.ret30, s.ma7, s.ma30, s.atr} {
		w.reset()
	}
}

func (s *rollingState) next(src models.TimeSeriesRow) models.FeatureRow {
	r := models.NewFeatureRow(src)
	r.LogPrice = math.Log1p(r.Close)
	if !s.first {
		r.LogReturn = r.LogPrice - s.prevLogPrice
	}

	s.ret7.push(r.LogReturn)
	s.ret30.push(r.LogReturn)
	r.Vol7d = s.ret7.std()
	r.Vol30d = s.ret30.std()

	s.ma7.push(r.Close)
	s.ma30.push(r.Close)
	r.MA7 = s.ma7.mean()
	r.MA30 = s.ma30.mean()

	r.Liquidity = liquidity(r.Volume, r.MarketCap)
	r.TR = trueRange(r.High, r.Low, s.prevClose)
	s.atr.push(r.TR)
	r.ATR14 = s.atr.mean()

	s.first = false
	s.prevLogPrice = r.LogPrice
	s.prevClose = r.Close
	return r
}

func liquidity(volume, marketCap float64) float64 {
	return volume / (marketCap + liquidityEpsilon)
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|) over the
// terms that are defined; NaN when none is.
func trueRange(high, low, prevClose float64) float64 {
	best := math.NaN()
	for _, v := range []float64{high - low, math.Abs(high - prevClose), math.Abs(low - prevClose)} {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}
