package regression

import (
	"math"

	"CryptoVol/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Evaluate scores predictions against the truth. R2 is 1 for a perfect fit
// of a constant target and 0 for any other fit of one.
func Evaluate(truth, pred []float64) models.RunMetrics {
	n := len(truth)
	if n == 0 || n != len(pred) {
		return models.RunMetrics{RMSE: math.NaN(), MAE: math.NaN(), R2: math.NaN()}
	}
	var sse, sae float64
	for i := range truth {
		d := truth[i] - pred[i]
		sse += d * d
		sae += math.Abs(d)
	}
	mean := stat.Mean(truth, nil)
	var sst float64
	for _, v := range truth {
		sst += (v - mean) * (v - mean)
	}

	r2 := 0.0
	switch {
	case sst > 0:
		r2 = 1 - sse/sst
	case sse == 0:
		r2 = 1
	}
	return models.RunMetrics{
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
		R2:   r2,
	}
}
