// Package samplegen produces synthetic daily OHLCV series shaped like the
// historical crypto dumps the pipeline is trained on.
package samplegen

import (
	"math"
	"math/rand"
	"time"

	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/util"
)

type Options struct {
	Assets []string
	Days   int
	Start  time.Time
	Seed   int64
}

func DefaultOptions() Options {
	return Options{
		Assets: []string{"Bitcoin", "Ethereum", "Solana"},
		Days:   40,
		Start:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:   7,
	}
}

// Generate returns one row per asset per day, asset-major, with the raw
// column set (crypto_name, date, open, high, low, close, volume, marketCap).
// Each asset follows a geometric random walk with its own volatility regime.
func Generate(opts Options) *frame.Frame {
	if opts.Start.IsZero() {
		opts.Start = DefaultOptions().Start
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	n := len(opts.Assets) * opts.Days

	var (
		names  = make([]string, 0, n)
		dates  = make([]string, 0, n)
		open   = make([]float64, 0, n)
		high   = make([]float64, 0, n)
		low    = make([]float64, 0, n)
		closes = make([]float64, 0, n)
		volume = make([]float64, 0, n)
		mcap   = make([]float64, 0, n)
	)

	for a, asset := range opts.Assets {
		price := 50.0 * math.Pow(10, float64(a%3))
		supply := 1e6 * float64(a+1)
		sigma := 0.02 + 0.01*float64(a)
		for d := 0; d < opts.Days; d++ {
			// Volatility drifts slowly so the next-day target is learnable.
			regime := sigma * (1 + 0.5*math.Sin(float64(d)/6))
			ret := rng.NormFloat64() * regime
			o := price
			c := price * math.Exp(ret)
			spread := math.Abs(rng.NormFloat64())*regime*price + 1e-6
			h := math.Max(o, c) + spread
			l := math.Max(math.Min(o, c)-spread, 1e-6)
			v := (1e5 + rng.Float64()*1e5) * (1 + 10*math.Abs(ret))

			names = append(names, asset)
			dates = append(dates, util.FormatDate(opts.Start.AddDate(0, 0, d)))
			open = append(open, o)
			high = append(high, h)
			low = append(low, l)
			closes = append(closes, c)
			volume = append(volume, v)
			mcap = append(mcap, c*supply)
			price = c
		}
	}

	f, _ := frame.New(
		frame.NewCategorical("crypto_name", names),
		frame.NewCategorical("date", dates),
		frame.NewNumeric("open", open),
		frame.NewNumeric("high", high),
		frame.NewNumeric("low", low),
		frame.NewNumeric("close", closes),
		frame.NewNumeric("volume", volume),
		frame.NewNumeric("marketCap", mcap),
	)
	return f
}
