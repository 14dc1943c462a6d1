package models

import (
	"math"
	"time"
)

// TimeSeriesRow is one daily observation of one asset. Missing numeric values
// are NaN, a missing date is the zero time.
type TimeSeriesRow struct {
	// Index is the row position in the source table.
	Index     int
	Asset     string
	Date      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	MarketCap float64
}

func (r TimeSeriesRow) HasDate() bool { return !r.Date.IsZero() }

// FeatureRow is a TimeSeriesRow enriched with the engineered features.
// Every feature is NaN when undefined.
type FeatureRow struct {
	TimeSeriesRow
	LogPrice  float64
	LogReturn float64
	Vol7d     float64
	Vol30d    float64
	MA7       float64
	MA30      float64
	Liquidity float64
	TR        float64
	ATR14     float64
	Target    float64
}

// NewFeatureRow wraps a source row with every feature unset.
func NewFeatureRow(src TimeSeriesRow) FeatureRow {
	nan := math.NaN()
	return FeatureRow{
		TimeSeriesRow: src,
		LogPrice:      nan,
		LogReturn:     nan,
		Vol7d:         nan,
		Vol30d:        nan,
		MA7:           nan,
		MA30:          nan,
		Liquidity:     nan,
		TR:            nan,
		ATR14:         nan,
		Target:        nan,
	}
}

// Feature returns the value of the named engineered column.
func (r FeatureRow) Feature(name string) (float64, bool) {
	switch name {
	case ColLogPrice:
		return r.LogPrice, true
	case ColLogReturn:
		return r.LogReturn, true
	case ColVol7d:
		return r.Vol7d, true
	case ColVol30d:
		return r.Vol30d, true
	case ColMA7:
		return r.MA7, true
	case ColMA30:
		return r.MA30, true
	case ColLiquidity:
		return r.Liquidity, true
	case ColTR:
		return r.TR, true
	case ColATR14:
		return r.ATR14, true
	case ColTarget:
		return r.Target, true
	}
	return math.NaN(), false
}
