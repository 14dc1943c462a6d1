// Package frame is a small columnar table used between ingestion, feature
// engineering, training and serving. A column is either numeric (float64,
// NaN for null) or categorical (string, "" for null).
package frame

import (
	"fmt"
	"math"
	"strconv"
)

type Kind uint8

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

type Column struct {
	Name string
	Kind Kind
	Nums []float64
	Strs []string
}

func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Nums: values}
}

func NewCategorical(name string, values []string) *Column {
	return &Column{Name: name, Kind: Categorical, Strs: values}
}

func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Nums)
	}
	return len(c.Strs)
}

func (c *Column) IsNull(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Nums[i])
	}
	return c.Strs[i] == ""
}

// Text renders cell i the way it is written to CSV.
func (c *Column) Text(i int) string {
	if c.Kind == Categorical {
		return c.Strs[i]
	}
	v := c.Nums[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Floats returns the column as float64, parsing categorical cells tolerantly:
// anything that does not parse becomes NaN.
func (c *Column) Floats() []float64 {
	if c.Kind == Numeric {
		return c.Nums
	}
	out := make([]float64, len(c.Strs))
	for i, s := range c.Strs {
		out[i] = ParseFloat(s)
	}
	return out
}

// Strings returns the column rendered as text.
func (c *Column) Strings() []string {
	if c.Kind == Categorical {
		return c.Strs
	}
	out := make([]string, len(c.Nums))
	for i := range c.Nums {
		out[i] = c.Text(i)
	}
	return out
}

func (c *Column) take(idx []int) *Column {
	if c.Kind == Numeric {
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = c.Nums[j]
		}
		return NewNumeric(c.Name, out)
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = c.Strs[j]
	}
	return NewCategorical(c.Name, out)
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	cols   []*Column
	byName map[string]int
	rows   int
}

func New(cols ...*Column) (*Frame, error) {
	f := &Frame{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.Set(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Empty returns a frame with the given rows count and no columns.
func Empty(rows int) *Frame {
	return &Frame{byName: map[string]int{}, rows: rows}
}

func (f *Frame) Len() int { return f.rows }

func (f *Frame) Width() int { return len(f.cols) }

func (f *Frame) Columns() []*Column { return f.cols }

func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

func (f *Frame) Has(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Set appends the column, or replaces an existing one of the same name in place.
func (f *Frame) Set(c *Column) error {
	if len(f.cols) == 0 && f.rows == 0 {
		f.rows = c.Len()
	}
	if c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	if i, ok := f.byName[c.Name]; ok {
		f.cols[i] = c
		return nil
	}
	f.byName[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Drop returns a frame without the named columns; unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := Empty(f.rows)
	for _, c := range f.cols {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Take returns the rows at idx, in idx order.
func (f *Frame) Take(idx []int) *Frame {
	out := Empty(len(idx))
	for _, c := range f.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.take(idx))
	}
	return out
}

// Head returns at most n leading rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 || n >= f.rows {
		return f
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.Take(idx)
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	idx := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// DropNull removes rows holding a null in any of the named columns. Columns
// not present in the frame are ignored.
func (f *Frame) DropNull(names ...string) *Frame {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		if c, ok := f.Column(n); ok {
			cols = append(cols, c)
		}
	}
	return f.Filter(func(row int) bool {
		for _, c := range cols {
			if c.IsNull(row) {
				return false
			}
		}
		return true
	})
}
