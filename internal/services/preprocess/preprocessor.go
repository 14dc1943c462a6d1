// Package preprocess turns a feature table into a dense numeric matrix:
// median imputation and standard scaling for numerical columns, most-frequent
// imputation and drop-first one-hot encoding for categorical ones.
package preprocess

import (
	"fmt"
	"math"
	"sort"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"

	"gonum.org/v1/gonum/stat"
)

const (
	RoleNumerical   = "numerical"
	RoleCategorical = "categorical"

	// missingLevel fills a categorical column that had no values at fit time.
	missingLevel = "missing"
)

// Transformer is an unfitted preprocessor with fixed column roles.
type Transformer struct {
	numerical   []string
	categorical []string
}

func Build(numerical, categorical []string) *Transformer {
	return &Transformer{
		numerical:   append([]string(nil), numerical...),
		categorical: append([]string(nil), categorical...),
	}
}

// PartitionColumns assigns every column of f a role from its kind.
func PartitionColumns(f *frame.Frame) (numerical, categorical []string) {
	for _, c := range f.Columns() {
		if c.Kind == frame.Numeric {
			numerical = append(numerical, c.Name)
		} else {
			categorical = append(categorical, c.Name)
		}
	}
	return numerical, categorical
}

type NumericStats struct {
	Column string  `json:"column"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

type CategoricalStats struct {
	Column string `json:"column"`
	Fill   string `json:"fill"`
	// Levels are sorted; the first one is the dropped reference level.
	Levels []string `json:"levels"`
}

// Fitted holds the statistics learned at fit time. It is immutable and safe
// for concurrent use.
type Fitted struct {
	Numerical   []NumericStats     `json:"numerical"`
	Categorical []CategoricalStats `json:"categorical"`
}

// Fit learns imputation, scaling and encoding statistics from f.
func (t *Transformer) Fit(f *frame.Frame) (*Fitted, error) {
	out := &Fitted{
		Numerical:   make([]NumericStats, 0, len(t.numerical)),
		Categorical: make([]CategoricalStats, 0, len(t.categorical)),
	}
	for _, name := range t.numerical {
		col, ok := f.Column(name)
		if !ok {
			return nil, &models.MissingColumnError{Column: name}
		}
		out.Numerical = append(out.Numerical, fitNumeric(name, col.Floats()))
	}
	for _, name := range t.categorical {
		col, ok := f.Column(name)
		if !ok {
			return nil, &models.MissingColumnError{Column: name}
		}
		out.Categorical = append(out.Categorical, fitCategorical(name, col.Strings()))
	}
	return out, nil
}

func fitNumeric(name string, values []float64) NumericStats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	s := NumericStats{Column: name, Scale: 1}
	if len(present) == 0 {
		return s
	}
	s.Median = median(present)

	imputed := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = s.Median
		}
		imputed[i] = v
	}
	mean, variance := stat.PopMeanVariance(imputed, nil)
	s.Mean = mean
	std := math.Sqrt(variance)
	if std > 10*epsilon*math.Max(math.Abs(mean), 1) && !math.IsInf(std, 0) {
		s.Scale = std
	}
	return s
}

const epsilon = 2.220446049250313e-16

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func fitCategorical(name string, values []string) CategoricalStats {
	counts := map[string]int{}
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	fill, best := "", 0
	for level, n := range counts {
		if n > best || (n == best && level < fill) {
			fill, best = level, n
		}
	}
	if best == 0 {
		fill = missingLevel
		counts[fill] = 0
	}

	levels := make([]string, 0, len(counts))
	for level := range counts {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return CategoricalStats{Column: name, Fill: fill, Levels: levels}
}

// Width is the number of output features.
func (p *Fitted) Width() int {
	w := len(p.Numerical)
	for _, c := range p.Categorical {
		if len(c.Levels) > 1 {
			w += len(c.Levels) - 1
		}
	}
	return w
}

// OutputNames names the output features in matrix order.
func (p *Fitted) OutputNames() []string {
	names := make([]string, 0, p.Width())
	for _, s := range p.Numerical {
		names = append(names, s.Column)
	}
	for _, c := range p.Categorical {
		for _, level := range levelsEncoded(c) {
			names = append(names, fmt.Sprintf("%s_%s", c.Column, level))
		}
	}
	return names
}

// InputColumns lists every column Apply reads, with its role.
func (p *Fitted) InputColumns() map[string]string {
	roles := make(map[string]string, len(p.Numerical)+len(p.Categorical))
	for _, s := range p.Numerical {
		roles[s.Column] = RoleNumerical
	}
	for _, c := range p.Categorical {
		roles[c.Column] = RoleCategorical
	}
	return roles
}

func levelsEncoded(c CategoricalStats) []string {
	if len(c.Levels) < 2 {
		return nil
	}
	return c.Levels[1:]
}

// Apply encodes f with the fitted statistics. Columns outside the fitted
// roles are ignored. A missing column, or a numerical column that does not
// hold numbers, yields a SchemaMismatchError.
func (p *Fitted) Apply(f *frame.Frame) ([][]float64, error) {
	width := p.Width()
	rows := f.Len()
	flat := make([]float64, rows*width)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = flat[i*width : (i+1)*width : (i+1)*width]
	}

	offset := 0
	for _, s := range p.Numerical {
		col, ok := f.Column(s.Column)
		if !ok {
			return nil, &models.SchemaMismatchError{Column: s.Column, Expected: RoleNumerical}
		}
		if col.Kind != frame.Numeric {
			return nil, &models.SchemaMismatchError{Column: s.Column, Expected: RoleNumerical, Actual: RoleCategorical}
		}
		for i, v := range col.Nums {
			if math.IsNaN(v) {
				v = s.Median
			}
			out[i][offset] = (v - s.Mean) / s.Scale
		}
		offset++
	}

	for _, c := range p.Categorical {
		col, ok := f.Column(c.Column)
		if !ok {
			return nil, &models.SchemaMismatchError{Column: c.Column, Expected: RoleCategorical}
		}
		encoded := levelsEncoded(c)
		index := make(map[string]int, len(encoded))
		for j, level := range encoded {
			index[level] = j
		}
		for i := 0; i < rows; i++ {
			v := col.Text(i)
			if v == "" {
				v = c.Fill
			}
			if j, ok := index[v]; ok {
				out[i][offset+j] = 1
			}
		}
		offset += len(encoded)
	}
	return out, nil
}
