package repository

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/util"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"
)

const (
	parquetBatch = 256
	// julian day number of 1970-01-01
	julianUnixEpoch = 2440588
)

type columnRole int

const (
	roleText columnRole = iota
	roleNumeric
	roleDate
)

// parquetColumn accumulates one leaf column while rows are scanned.
type parquetColumn struct {
	name string
	role columnRole
	typ  parquet.Type
	nums []float64
	strs []string
}

func newParquetColumn(name string, typ parquet.Type, rows int) *parquetColumn {
	c := &parquetColumn{name: name, typ: typ, role: parquetRole(name, typ)}
	if c.role == roleNumeric {
		c.nums = make([]float64, 0, rows)
	} else {
		c.strs = make([]string, 0, rows)
	}
	return c
}

func parquetRole(name string, typ parquet.Type) columnRole {
	switch name {
	case models.ColDate, models.ColTimestamp:
		return roleDate
	}
	for _, p := range models.PriceColumns {
		if name == p {
			return roleNumeric
		}
	}
	if lt := typ.LogicalType(); lt != nil && (lt.Date != nil || lt.Timestamp != nil) {
		return roleDate
	}
	switch typ.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return roleText
	case parquet.Int96:
		return roleDate
	default:
		return roleNumeric
	}
}

func (c *parquetColumn) append(v parquet.Value) {
	switch c.role {
	case roleNumeric:
		c.nums = append(c.nums, parquetFloat(v))
	case roleDate:
		c.strs = append(c.strs, parquetDate(v, c.typ))
	default:
		c.strs = append(c.strs, parquetText(v))
	}
}

func (c *parquetColumn) appendNull() {
	if c.role == roleNumeric {
		c.nums = append(c.nums, math.NaN())
		return
	}
	c.strs = append(c.strs, "")
}

func (c *parquetColumn) column() *frame.Column {
	if c.role == roleNumeric {
		return frame.NewNumeric(c.name, c.nums)
	}
	return frame.NewCategorical(c.name, c.strs)
}

func parquetFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return frame.ParseFloat(string(v.ByteArray()))
	default:
		return math.NaN()
	}
}

func parquetText(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		s := string(v.ByteArray())
		if frame.IsNullToken(s) {
			return ""
		}
		return s
	default:
		return v.String()
	}
}

// parquetDate renders any date-like value as a calendar date; values that do
// not parse become null.
func parquetDate(v parquet.Value, typ parquet.Type) string {
	if v.IsNull() {
		return ""
	}
	var t time.Time
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		d, ok := util.ParseDate(string(v.ByteArray()))
		if !ok {
			return ""
		}
		return util.FormatDate(d)
	case parquet.Int32:
		if lt := typ.LogicalType(); lt != nil && lt.Date != nil {
			t = time.Unix(int64(v.Int32())*86400, 0)
		} else {
			t = time.Unix(int64(v.Int32()), 0)
		}
	case parquet.Int64:
		t = int64Time(v.Int64(), typ)
	case parquet.Int96:
		t = int96Time(v.Int96())
	case parquet.Float:
		t = time.Unix(int64(v.Float()), 0)
	case parquet.Double:
		t = time.Unix(int64(v.Double()), 0)
	default:
		return ""
	}
	if t.Unix() <= 0 {
		return ""
	}
	u := t.UTC()
	return util.FormatDate(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC))
}

// int64Time honours the timestamp unit; plain integers are unix seconds.
func int64Time(n int64, typ parquet.Type) time.Time {
	lt := typ.LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return time.Unix(n, 0)
	}
	switch unit := lt.Timestamp.Unit; {
	case unit.Millis != nil:
		return time.UnixMilli(n)
	case unit.Micros != nil:
		return time.UnixMicro(n)
	default:
		return time.Unix(0, n)
	}
}

// int96Time decodes the legacy nanoseconds-of-day plus julian-day layout.
func int96Time(x deprecated.Int96) time.Time {
	nanos := int64(uint64(x[1])<<32 | uint64(x[0]))
	days := int64(x[2]) - julianUnixEpoch
	return time.Unix(days*86400, nanos)
}

// readParquetFile reads every leaf column named in the file schema, whatever
// its physical type. Date columns are parsed leniently and price columns are
// widened to float64.
func readParquetFile(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	st, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(fh, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	schema := pf.Schema()
	total := int(pf.NumRows())
	paths := schema.Columns()
	cols := make([]*parquetColumn, len(paths))
	for i, p := range paths {
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return nil, fmt.Errorf("read parquet %s: column %q missing from schema", path, strings.Join(p, "."))
		}
		cols[i] = newParquetColumn(strings.Join(p, "."), leaf.Node.Type(), total)
	}

	buf := make([]parquet.Row, parquetBatch)
	seen := make([]bool, len(cols))
	for _, rg := range pf.RowGroups() {
		if err := scanRowGroup(rg, cols, buf, seen); err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}

	f := frame.Empty(total)
	for _, c := range cols {
		if err := f.Set(c.column()); err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}
	return f, nil
}

// scanRowGroup keeps the first value of each leaf per row so repeated fields
// cannot shift the frame out of alignment.
func scanRowGroup(rg parquet.RowGroup, cols []*parquetColumn, buf []parquet.Row, seen []bool) error {
	rows := rg.Rows()
	defer rows.Close()
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			clear(seen)
			for _, v := range row {
				idx := v.Column()
				if idx < 0 || idx >= len(cols) || seen[idx] {
					continue
				}
				seen[idx] = true
				cols[idx].append(v)
			}
			for i, ok := range seen {
				if !ok {
					cols[i].appendNull()
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
