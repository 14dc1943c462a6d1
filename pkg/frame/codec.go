package frame

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// nullTokens are cell values read as null.
var nullTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {},
}

// IsNullToken reports whether s spells a missing value.
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.TrimSpace(s)]
	return ok
}

// ParseFloat parses s, returning NaN for nulls and anything non-numeric.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadCSV reads a headed CSV table. A column is numeric when every non-null
// cell parses as a float, categorical otherwise.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(0), nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		for i := range header {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			cells[i] = append(cells[i], v)
		}
	}

	rows := 0
	if len(cells) > 0 {
		rows = len(cells[0])
	}
	f := Empty(rows)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		if err := f.Set(inferColumn(name, cells[i])); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func inferColumn(name string, raw []string) *Column {
	nums := make([]float64, len(raw))
	for i, s := range raw {
		if IsNullToken(s) {
			nums[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			strs := make([]string, len(raw))
			for j, s := range raw {
				if !IsNullToken(s) {
					strs[j] = s
				}
			}
			return NewCategorical(name, strs)
		}
		nums[i] = v
	}
	return NewNumeric(name, nums)
}

// WriteCSV writes the frame with a header row; nulls are written empty.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, f.Width())
	for row := 0; row < f.Len(); row++ {
		for i, c := range f.cols {
			rec[i] = c.Text(row)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FromRecords builds a frame from decoded JSON objects. Columns are the sorted
// union of keys; a column is numeric when every present value is a number.
func FromRecords(records []map[string]interface{}) (*Frame, error) {
	keys := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			keys[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	f := Empty(len(records))
	for _, name := range names {
		raw := make([]string, len(records))
		numeric := true
		nums := make([]float64, len(records))
		for i, rec := range records {
			v, ok := rec[name]
			if !ok || v == nil {
				nums[i] = math.NaN()
				continue
			}
			switch x := v.(type) {
			case float64:
				nums[i] = x
				raw[i] = strconv.FormatFloat(x, 'g', -1, 64)
			case int:
				nums[i] = float64(x)
				raw[i] = strconv.Itoa(x)
			case json.Number:
				raw[i] = x.String()
				if fv, err := x.Float64(); err == nil {
					nums[i] = fv
				} else {
					numeric = false
				}
			case string:
				raw[i] = x
				if IsNullToken(x) {
					nums[i] = math.NaN()
					raw[i] = ""
					continue
				}
				numeric = false
			default:
				raw[i] = fmt.Sprint(x)
				numeric = false
			}
		}
		var col *Column
		if numeric {
			col = NewNumeric(name, nums)
		} else {
			col = NewCategorical(name, raw)
		}
		if err := f.Set(col); err != nil {
			return nil, err
		}
	}
	return f, nil
}
