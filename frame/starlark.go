package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Source opens tables referenced by scripts. Implementations decide which
// references are allowed.
type Source interface {
	Open(ref, sheet string) (*Table, error)
}

// Value wraps a Table for scripts. Indexing and iteration yield rows as dicts.
type Value struct {
	t *Table
}

var (
	_ starlark.HasAttrs  = (*Value)(nil)
	_ starlark.Indexable = (*Value)(nil)
	_ starlark.Iterable  = (*Value)(nil)
)

func NewValue(t *Table) *Value {
	return &Value{t: t}
}

// AsTable extracts the table from a script value.
func AsTable(v starlark.Value) (*Table, bool) {
	fv, ok := v.(*Value)
	if !ok {
		return nil, false
	}
	return fv.t, true
}

func (v *Value) Table() *Table         { return v.t }
func (v *Value) String() string        { return v.t.String() }
func (v *Value) Type() string          { return "table" }
func (v *Value) Freeze()               {}
func (v *Value) Truth() starlark.Bool  { return v.t.Len() > 0 }
func (v *Value) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }
func (v *Value) Len() int              { return v.t.Len() }

func (v *Value) Index(i int) starlark.Value {
	return rowDict(v.t.columns, v.t.rows[i])
}

func (v *Value) Iterate() starlark.Iterator {
	return &rowIterator{v: v}
}

type rowIterator struct {
	v *Value
	i int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.i >= it.v.t.Len() {
		return false
	}
	*p = it.v.Index(it.i)
	it.i++
	return true
}

func (it *rowIterator) Done() {}

type method func(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

var methods = map[string]method{
	"head":     sliceMethod((*Table).Head),
	"tail":     sliceMethod((*Table).Tail),
	"select":   tableSelect,
	"where":    tableWhere,
	"sort":     tableSort,
	"group":    tableGroup,
	"sum":      aggMethod(AggSum),
	"mean":     aggMethod(AggMean),
	"min":      aggMethod(AggMin),
	"max":      aggMethod(AggMax),
	"count":    aggMethod(AggCount),
	"column":   tableColumn,
	"unique":   tableUnique,
	"rows":     tableRows,
	"records":  tableRecords,
	"describe": tableDescribe,
	"to_csv":   tableToCSV,
}

func (v *Value) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		return stringList(v.t.columns), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(v.t.Len()), starlark.MakeInt(v.t.Width())}, nil
	}
	m, ok := methods[name]
	if !ok {
		return nil, nil
	}
	t := v.t
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return m(t, b, args, kwargs)
	}), nil
}

func (v *Value) AttrNames() []string {
	names := []string{"columns", "shape"}
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sliceMethod(fn func(*Table, int) *Table) method {
	return func(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		n := 5
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
			return nil, err
		}
		return NewValue(fn(t, n)), nil
	}
}

func tableSelect(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	var names []string
	for _, a := range args {
		switch x := a.(type) {
		case starlark.String:
			names = append(names, string(x))
		case *starlark.List, starlark.Tuple:
			ss, err := ToStrings(x)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", b.Name(), err)
			}
			names = append(names, ss...)
		default:
			return nil, fmt.Errorf("%s: want column names, got %s", b.Name(), a.Type())
		}
	}
	out, err := t.Select(names...)
	if err != nil {
		return nil, err
	}
	return NewValue(out), nil
}

func tableWhere(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		col, op string
		value   starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col, "op", &op, "value", &value); err != nil {
		return nil, err
	}
	goValue, err := FromStarlark(value)
	if err != nil {
		return nil, err
	}
	out, err := t.Where(col, op, goValue)
	if err != nil {
		return nil, err
	}
	return NewValue(out), nil
}

func tableSort(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		by   string
		desc bool
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "desc?", &desc); err != nil {
		return nil, err
	}
	out, err := t.SortBy(by, desc)
	if err != nil {
		return nil, err
	}
	return NewValue(out), nil
}

func tableGroup(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by, col string
	agg := AggSum
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "col", &col, "agg?", &agg); err != nil {
		return nil, err
	}
	out, err := t.GroupBy(by, col, agg)
	if err != nil {
		return nil, err
	}
	return NewValue(out), nil
}

func aggMethod(agg string) method {
	return func(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var col string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col); err != nil {
			return nil, err
		}
		f, err := t.Aggregate(col, agg)
		if err != nil {
			return nil, err
		}
		if agg == AggCount {
			return starlark.MakeInt64(int64(f)), nil
		}
		return starlark.Float(f), nil
	}
}

func tableColumn(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col); err != nil {
		return nil, err
	}
	values, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	return cellList(values), nil
}

func tableUnique(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col); err != nil {
		return nil, err
	}
	values, err := t.Unique(col)
	if err != nil {
		return nil, err
	}
	return cellList(values), nil
}

func tableRows(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	rows := make([]starlark.Value, t.Len())
	for i, r := range t.rows {
		rows[i] = cellList(r)
	}
	return starlark.NewList(rows), nil
}

func tableRecords(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	rows := make([]starlark.Value, t.Len())
	for i, r := range t.rows {
		rows[i] = rowDict(t.columns, r)
	}
	return starlark.NewList(rows), nil
}

func tableDescribe(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return NewValue(t.Describe()), nil
}

func tableToCSV(t *Table, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(t.ToCSV()), nil
}

// Module returns the "frame" script module. src may be nil, in which case
// read_csv and read_excel fail.
func Module(src Source) *starlarkstruct.Module {
	open := func(sheetArg bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ref, sheet string
			pairs := []any{"path", &ref}
			if sheetArg {
				pairs = append(pairs, "sheet?", &sheet)
			}
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, pairs...); err != nil {
				return nil, err
			}
			if src == nil {
				return nil, ErrNoSource
			}
			t, err := src.Open(ref, sheet)
			if err != nil {
				return nil, err
			}
			return NewValue(t), nil
		}
	}
	return &starlarkstruct.Module{
		Name: "frame",
		Members: starlark.StringDict{
			"read_csv":     starlark.NewBuiltin("read_csv", open(false)),
			"read_excel":   starlark.NewBuiltin("read_excel", open(true)),
			"from_csv":     starlark.NewBuiltin("from_csv", fromCSV),
			"from_records": starlark.NewBuiltin("from_records", fromRecords),
			"table":        starlark.NewBuiltin("table", newTable),
		},
	}
}

func fromCSV(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	t, err := ParseCSV(text)
	if err != nil {
		return nil, err
	}
	return NewValue(t), nil
}

func fromRecords(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var records starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "records", &records); err != nil {
		return nil, err
	}
	var (
		keys [][]string
		maps []map[string]any
		item starlark.Value
	)
	it := records.Iterate()
	defer it.Done()
	for it.Next(&item) {
		d, ok := item.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: want dict records, got %s", b.Name(), item.Type())
		}
		var ks []string
		m := make(map[string]any, d.Len())
		for _, kv := range d.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("%s: record keys must be strings", b.Name())
			}
			v, err := FromStarlark(kv[1])
			if err != nil {
				return nil, err
			}
			ks = append(ks, k)
			m[k] = v
		}
		keys = append(keys, ks)
		maps = append(maps, m)
	}
	t, err := FromMaps(keys, maps)
	if err != nil {
		return nil, err
	}
	return NewValue(t), nil
}

// table(columns, rows) or table(dict_of_lists)
func newTable(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var first, rows starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &first, "rows?", &rows); err != nil {
		return nil, err
	}
	if d, ok := first.(*starlark.Dict); ok {
		var (
			names []string
			cols  [][]any
		)
		for _, kv := range d.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("%s: column names must be strings", b.Name())
			}
			col, err := toCells(kv[1])
			if err != nil {
				return nil, err
			}
			names = append(names, k)
			cols = append(cols, col)
		}
		t, err := FromColumns(names, cols)
		if err != nil {
			return nil, err
		}
		return NewValue(t), nil
	}
	names, err := ToStrings(first)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	var data [][]any
	if rows != nil {
		iter, ok := rows.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: rows must be a list", b.Name())
		}
		var r starlark.Value
		it := iter.Iterate()
		defer it.Done()
		for it.Next(&r) {
			cells, err := toCells(r)
			if err != nil {
				return nil, err
			}
			data = append(data, cells)
		}
	}
	t, err := New(names, data)
	if err != nil {
		return nil, err
	}
	return NewValue(t), nil
}

// ToStarlark converts a cell to a script value.
func ToStarlark(v any) starlark.Value {
	switch n := normalize(v).(type) {
	case nil:
		return starlark.None
	case int64:
		return starlark.MakeInt64(n)
	case float64:
		return starlark.Float(n)
	case string:
		return starlark.String(n)
	case bool:
		return starlark.Bool(n)
	default:
		return starlark.String(fmt.Sprint(n))
	}
}

// FromStarlark converts a scalar script value to a cell.
func FromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		f := x.Float()
		return float64(f), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case starlark.String:
		return string(x), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %s", v.Type())
	}
}

func toCells(v starlark.Value) ([]any, error) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want a list, got %s", v.Type())
	}
	var (
		out  []any
		item starlark.Value
	)
	it := iter.Iterate()
	defer it.Done()
	for it.Next(&item) {
		c, err := FromStarlark(item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ToStrings converts a list or tuple of strings.
func ToStrings(v starlark.Value) ([]string, error) {
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want a list of strings, got %s", v.Type())
	}
	var (
		out  []string
		item starlark.Value
	)
	it := iter.Iterate()
	defer it.Done()
	for it.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("want string, got %s", item.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func stringList(ss []string) *starlark.List {
	vs := make([]starlark.Value, len(ss))
	for i, s := range ss {
		vs[i] = starlark.String(s)
	}
	return starlark.NewList(vs)
}

func cellList(cells []any) *starlark.List {
	vs := make([]starlark.Value, len(cells))
	for i, c := range cells {
		vs[i] = ToStarlark(c)
	}
	return starlark.NewList(vs)
}

func rowDict(columns []string, row []any) *starlark.Dict {
	d := starlark.NewDict(len(columns))
	for i, c := range columns {
		_ = d.SetKey(starlark.String(c), ToStarlark(row[i]))
	}
	return d
}

// Summary describes the table shape for prompts.
func Summary(t *Table) string {
	return fmt.Sprintf("columns: %s (%d rows)", strings.Join(t.columns, ", "), t.Len())
}
