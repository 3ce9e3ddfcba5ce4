// Package frame is a small columnar table used as the dataframe binding of
// the script evaluator. Cells are nil, int64, float64, string or bool.
package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Aggregations understood by GroupBy and Aggregate.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
)

type Table struct {
	columns []string
	rows    [][]any
}

// New builds a table; every row must have exactly one cell per column.
func New(columns []string, rows [][]any) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(r), len(columns))
		}
	}
	return &Table{columns: append([]string(nil), columns...), rows: rows}, nil
}

// FromColumns builds a table from named columns of equal length.
func FromColumns(names []string, cols [][]any) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%d names for %d columns", len(names), len(cols))
	}
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}
	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			return nil, ErrRaggedColumns
		}
	}
	rows := make([][]any, n)
	for i := range rows {
		row := make([]any, len(cols))
		for j := range cols {
			row[j] = normalize(cols[j][i])
		}
		rows[i] = row
	}
	return New(names, rows)
}

// FromMaps builds a table from records; column order follows first appearance.
func FromMaps(keys [][]string, records []map[string]any) (*Table, error) {
	var columns []string
	seen := map[string]struct{}{}
	for _, ks := range keys {
		for _, k := range ks {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = normalize(rec[c])
		}
		rows[i] = row
	}
	return New(columns, rows)
}

func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Width() int {
	return len(t.columns)
}

func (t *Table) Row(i int) []any {
	return append([]any(nil), t.rows[i]...)
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) index(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, errors.Wrapf(ErrUnknownColumn, "%q (have %s)", name, strings.Join(t.columns, ", "))
	}
	return idx, nil
}

func (t *Table) Column(name string) ([]any, error) {
	idx, err := t.index(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Numeric returns the column as floats; nil cells are skipped.
func (t *Table) Numeric(name string) ([]float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.Wrapf(ErrNotNumeric, "%q has value %v", name, v)
		}
		out = append(out, f)
	}
	return out, nil
}

// IsNumeric reports whether every non-nil cell of the column is a number.
func (t *Table) IsNumeric(name string) bool {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return false
	}
	found := false
	for _, r := range t.rows {
		if r[idx] == nil {
			continue
		}
		if _, ok := toFloat(r[idx]); !ok {
			return false
		}
		found = true
	}
	return found
}

func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{columns: t.columns, rows: t.rows[:n]}
}

func (t *Table) Tail(n int) *Table {
	if n < 0 || n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{columns: t.columns, rows: t.rows[len(t.rows)-n:]}
}

func (t *Table) Select(names ...string) (*Table, error) {
	idxs := make([]int, len(names))
	for i, n := range names {
		idx, err := t.index(n)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		row := make([]any, len(idxs))
		for j, idx := range idxs {
			row[j] = r[idx]
		}
		rows[i] = row
	}
	return New(names, rows)
}

// Where keeps rows whose cell in col satisfies op against value.
// Supported operators: == != > >= < <= contains.
func (t *Table) Where(col, op string, value any) (*Table, error) {
	idx, err := t.index(col)
	if err != nil {
		return nil, err
	}
	value = normalize(value)
	var pred func(any) bool
	switch op {
	case "==":
		pred = func(v any) bool { return compare(v, value) == 0 }
	case "!=":
		pred = func(v any) bool { return compare(v, value) != 0 }
	case ">":
		pred = func(v any) bool { return v != nil && compare(v, value) > 0 }
	case ">=":
		pred = func(v any) bool { return v != nil && compare(v, value) >= 0 }
	case "<":
		pred = func(v any) bool { return v != nil && compare(v, value) < 0 }
	case "<=":
		pred = func(v any) bool { return v != nil && compare(v, value) <= 0 }
	case "contains":
		needle := strings.ToLower(FormatCell(value))
		pred = func(v any) bool { return strings.Contains(strings.ToLower(FormatCell(v)), needle) }
	default:
		return nil, errors.Wrapf(ErrUnsupportedOp, "%q", op)
	}
	rows := make([][]any, 0)
	for _, r := range t.rows {
		if pred(r[idx]) {
			rows = append(rows, r)
		}
	}
	return &Table{columns: t.columns, rows: rows}, nil
}

// SortBy returns a copy ordered by col; nil cells sort first ascending. The sort is stable.
func (t *Table) SortBy(col string, desc bool) (*Table, error) {
	idx, err := t.index(col)
	if err != nil {
		return nil, err
	}
	rows := append([][]any(nil), t.rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i][idx], rows[j][idx])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return &Table{columns: t.columns, rows: rows}, nil
}

// Aggregate reduces a column. count counts non-nil cells of any type; the
// others need a numeric column and yield NaN when it is empty.
func (t *Table) Aggregate(col, agg string) (float64, error) {
	if agg == AggCount {
		c, err := t.Column(col)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, v := range c {
			if v != nil {
				n++
			}
		}
		return float64(n), nil
	}
	values, err := t.Numeric(col)
	if err != nil {
		return 0, err
	}
	return reduce(values, agg)
}

func reduce(values []float64, agg string) (float64, error) {
	switch agg {
	case AggSum:
		s := 0.0
		for _, v := range values {
			s += v
		}
		return s, nil
	case AggMean:
		if len(values) == 0 {
			return math.NaN(), nil
		}
		s, _ := reduce(values, AggSum)
		return s / float64(len(values)), nil
	case AggMin, AggMax:
		if len(values) == 0 {
			return math.NaN(), nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if (agg == AggMin && v < m) || (agg == AggMax && v > m) {
				m = v
			}
		}
		return m, nil
	case AggCount:
		return float64(len(values)), nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedAgg, "%q", agg)
	}
}

// GroupBy groups rows by the by column (first-seen order) and reduces col
// with agg. The result has columns [by, col].
func (t *Table) GroupBy(by, col, agg string) (*Table, error) {
	byIdx, err := t.index(by)
	if err != nil {
		return nil, err
	}
	colIdx, err := t.index(col)
	if err != nil {
		return nil, err
	}
	if _, err := reduce(nil, agg); err != nil {
		return nil, err
	}
	type group struct {
		key    any
		values []float64
		count  int
	}
	groups := make([]*group, 0)
	lookup := map[string]*group{}
	for _, r := range t.rows {
		k := fmt.Sprintf("%T:%v", r[byIdx], r[byIdx])
		g, ok := lookup[k]
		if !ok {
			g = &group{key: r[byIdx]}
			lookup[k] = g
			groups = append(groups, g)
		}
		v := r[colIdx]
		if v == nil {
			continue
		}
		g.count++
		if agg == AggCount {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.Wrapf(ErrNotNumeric, "%q has value %v", col, v)
		}
		g.values = append(g.values, f)
	}
	rows := make([][]any, len(groups))
	for i, g := range groups {
		var out any
		if agg == AggCount {
			out = int64(g.count)
		} else {
			f, _ := reduce(g.values, agg)
			out = f
		}
		rows[i] = []any{g.key, out}
	}
	return New([]string{by, col}, rows)
}

// Unique returns the distinct values of a column in first-seen order.
func (t *Table) Unique(col string) ([]any, error) {
	c, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]any, 0)
	for _, v := range c {
		k := fmt.Sprintf("%T:%v", v, v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Describe summarizes numeric columns with count, mean, min, max and sum.
func (t *Table) Describe() *Table {
	stats := []string{AggCount, AggMean, AggMin, AggMax, AggSum}
	columns := []string{"stat"}
	for _, c := range t.columns {
		if t.IsNumeric(c) {
			columns = append(columns, c)
		}
	}
	rows := make([][]any, len(stats))
	for i, s := range stats {
		row := []any{s}
		for _, c := range columns[1:] {
			values, _ := t.Numeric(c)
			f, _ := reduce(values, s)
			row = append(row, f)
		}
		rows[i] = row
	}
	return &Table{columns: columns, rows: rows}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64, int:
		return 2
	default:
		return 3
	}
}

// compare orders nil < bool < numbers < strings.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}
