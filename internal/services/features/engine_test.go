package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/samplegen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func row(idx int, asset string, d int, close float64) models.TimeSeriesRow {
	return models.TimeSeriesRow{
		Index: idx, Asset: asset, Date: day(d),
		Open: close, High: close + 1, Low: close - 1, Close: close,
		Volume: 100, MarketCap: 1000,
	}
}

func TestWindowStatistics(t *testing.T) {
	w := newWindow(3)
	assert.True(t, math.IsNaN(w.mean()))

	w.push(math.NaN())
	w.push(2)
	assert.Equal(t, 2.0, w.mean())
	assert.True(t, math.IsNaN(w.std()), "one valid value has no sample std")

	w.push(4)
	assert.InDelta(t, math.Sqrt(2), w.std(), 1e-12)

	w.push(6) // evicts the NaN
	assert.Equal(t, 4.0, w.mean())
	assert.InDelta(t, 2.0, w.std(), 1e-12)

	w.push(8) // evicts 2
	assert.Equal(t, 6.0, w.mean())
}

func TestComputeLogReturnDefinition(t *testing.T) {
	e := NewEngine(nil)
	out := e.Compute([]models.TimeSeriesRow{row(0, "BTC", 1, 1), row(1, "BTC", 2, 3)})
	require.Len(t, out, 2)
	assert.True(t, math.IsNaN(out[0].LogReturn))
	assert.InDelta(t, math.Log(4)-math.Log(2), out[1].LogReturn, 1e-12)
	assert.InDelta(t, math.Log1p(3), out[1].LogPrice, 1e-12)
}

func TestComputeSortsAndIsolatesAssets(t *testing.T) {
	e := NewEngine(nil)
	interleaved := []models.TimeSeriesRow{
		row(0, "ETH", 2, 20),
		row(1, "BTC", 2, 11),
		row(2, "ETH", 1, 10),
		row(3, "BTC", 1, 10),
		row(4, "BTC", 3, 12),
	}
	out := e.Compute(interleaved)
	require.Len(t, out, 5)

	var order []int
	for _, r := range out {
		order = append(order, r.Index)
	}
	assert.Equal(t, []int{3, 1, 4, 2, 0}, order)

	// The first ETH row starts a fresh partition.
	assert.True(t, math.IsNaN(out[3].LogReturn))
	assert.Equal(t, 10.0, out[3].MA7)

	btcOnly := e.Compute([]models.TimeSeriesRow{row(0, "BTC", 1, 10), row(1, "BTC", 2, 11), row(2, "BTC", 3, 12)})
	for i := 0; i < 3; i++ {
		assert.Equal(t, btcOnly[i].MA7, out[i].MA7)
		assert.Equal(t, btcOnly[i].ATR14, out[i].ATR14)
		if i > 0 {
			assert.Equal(t, btcOnly[i].LogReturn, out[i].LogReturn)
		}
	}
}

func TestComputeVolatilityMinimumOccupancy(t *testing.T) {
	e := NewEngine(nil)
	rows := []models.TimeSeriesRow{
		row(0, "BTC", 1, 10), row(1, "BTC", 2, 11), row(2, "BTC", 3, 13), row(3, "BTC", 4, 12),
	}
	out := e.Compute(rows)
	assert.True(t, math.IsNaN(out[0].Vol7d))
	assert.True(t, math.IsNaN(out[1].Vol7d))

	r1, r2 := out[1].LogReturn, out[2].LogReturn
	mean := (r1 + r2) / 2
	want := math.Sqrt(((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean)) / 1)
	assert.InDelta(t, want, out[2].Vol7d, 1e-12)
	assert.InDelta(t, want, out[2].Vol30d, 1e-12)
}

func TestComputeTargetShift(t *testing.T) {
	e := NewEngine(nil)
	var rows []models.TimeSeriesRow
	for i := 0; i < 10; i++ {
		rows = append(rows, row(i, "BTC", i+1, 10+float64(i*i%7)))
	}
	out := e.Compute(rows)
	for i := 0; i < len(out)-1; i++ {
		if math.IsNaN(out[i+1].Vol7d) {
			assert.True(t, math.IsNaN(out[i].Target))
			continue
		}
		assert.Equal(t, out[i+1].Vol7d, out[i].Target)
	}
	assert.True(t, math.IsNaN(out[len(out)-1].Target))
}

func TestComputeLiquidityAndTrueRange(t *testing.T) {
	e := NewEngine(nil)
	a := row(0, "BTC", 1, 10)
	a.MarketCap = 0
	a.High, a.Low = 12, 9
	b := row(1, "BTC", 2, 20)
	b.High, b.Low = 21, 19

	out := e.Compute([]models.TimeSeriesRow{a, b})
	assert.InDelta(t, 100/1e-9, out[0].Liquidity, 1)
	assert.Equal(t, 3.0, out[0].TR)
	// max(21-19, |21-10|, |19-10|)
	assert.Equal(t, 11.0, out[1].TR)
	assert.Equal(t, 7.0, out[1].ATR14)
}

func TestTrueRangeSkipsNullTerms(t *testing.T) {
	assert.Equal(t, 2.0, trueRange(5, 3, math.NaN()))
	assert.Equal(t, 4.0, trueRange(math.NaN(), 3, 7))
	assert.True(t, math.IsNaN(trueRange(math.NaN(), math.NaN(), math.NaN())))
}

func TestComputeRowsWithoutAssetGetNoGroupedFeatures(t *testing.T) {
	e := NewEngine(nil)
	out := e.Compute([]models.TimeSeriesRow{row(0, "", 1, 10), row(1, "BTC", 1, 10)})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Index)
	orphan := out[1]
	assert.Equal(t, 0, orphan.Index)
	assert.False(t, math.IsNaN(orphan.LogPrice))
	assert.True(t, math.IsNaN(orphan.MA7))
	assert.True(t, math.IsNaN(orphan.Target))
}

func TestTransformMissingColumn(t *testing.T) {
	f := samplegen.Generate(samplegen.Options{Assets: []string{"BTC"}, Days: 3})
	_, err := NewEngine(nil).Transform(f.Drop(models.ColMarketCap))

	var mce *models.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, models.ColMarketCap, mce.Column)
}

func TestTransformTimestampAliasAndTolerantParse(t *testing.T) {
	f, err := frame.New(
		frame.NewCategorical("crypto_name", []string{"BTC", "BTC"}),
		frame.NewCategorical("timestamp", []string{"2024-01-02 00:00:00", "2024-01-01 12:30:00"}),
		frame.NewCategorical("open", []string{"1", "oops"}),
		frame.NewNumeric("high", []float64{2, 2}),
		frame.NewNumeric("low", []float64{1, 1}),
		frame.NewNumeric("close", []float64{1.5, 1.2}),
		frame.NewNumeric("volume", []float64{10, 10}),
		frame.NewNumeric("marketCap", []float64{100, 100}),
	)
	require.NoError(t, err)

	out, err := NewEngine(nil).Transform(f)
	require.NoError(t, err)
	dates, ok := out.Column(models.ColDate)
	require.True(t, ok)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, dates.Strs)

	open, _ := out.Column(models.ColOpen)
	assert.Equal(t, frame.Numeric, open.Kind)
	assert.True(t, math.IsNaN(open.Nums[0]))
	assert.Equal(t, 1.0, open.Nums[1])
}

func TestTransformEndToEndShape(t *testing.T) {
	raw := samplegen.Generate(samplegen.Options{Assets: []string{"Bitcoin", "Ethereum", "Solana"}, Days: 40, Seed: 1})
	out, err := NewEngine(nil).Transform(raw)
	require.NoError(t, err)
	assert.Equal(t, 120, out.Len())

	for _, name := range models.FeatureColumns {
		col, ok := out.Column(name)
		require.True(t, ok, name)
		present := 0
		for i := 0; i < out.Len(); i++ {
			if !col.IsNull(i) {
				present++
			}
		}
		assert.Positive(t, present, "%s is entirely null", name)
	}
	target, _ := out.Column(models.ColTarget)
	nulls := 0
	for i := 0; i < out.Len(); i++ {
		if target.IsNull(i) {
			nulls++
		}
	}
	assert.Equal(t, 3, nulls)

	ready := ModelReady(out)
	assert.Equal(t, 111, ready.Len())
	assert.LessOrEqual(t, ready.Len(), 117)
}
