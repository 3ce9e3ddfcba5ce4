package chart

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/antgroup/datacrew/frame"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Value is the script-side handle of a Figure. It is immutable.
type Value struct {
	fig *Figure
}

var _ starlark.HasAttrs = (*Value)(nil)

func NewValue(f *Figure) *Value { return &Value{fig: f} }

// AsFigure extracts the figure from a script value.
func AsFigure(v starlark.Value) (*Figure, bool) {
	fv, ok := v.(*Value)
	if !ok {
		return nil, false
	}
	return fv.fig, true
}

func (v *Value) String() string        { return v.fig.String() }
func (v *Value) Type() string          { return "figure" }
func (v *Value) Freeze()               {}
func (v *Value) Truth() starlark.Bool  { return true }
func (v *Value) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: figure") }

func (v *Value) Attr(name string) (starlark.Value, error) {
	f := v.fig
	switch name {
	case "kind":
		return starlark.String(f.Kind), nil
	case "title":
		return starlark.String(f.Title), nil
	case "x_label":
		return starlark.String(f.XLabel), nil
	case "y_label":
		return starlark.String(f.YLabel), nil
	case "categories":
		vs := make([]starlark.Value, len(f.Categories))
		for i, c := range f.Categories {
			vs[i] = starlark.String(c)
		}
		return starlark.NewList(vs), nil
	case "series":
		vs := make([]starlark.Value, len(f.Series))
		for i, s := range f.Series {
			vs[i] = starlark.String(s.Name)
		}
		return starlark.NewList(vs), nil
	}
	return nil, nil
}

func (v *Value) AttrNames() []string {
	return []string{"categories", "kind", "series", "title", "x_label", "y_label"}
}

// Module returns the "chart" script module. save(fig, path) only writes to
// the given paths.
func Module(savePaths ...string) *starlarkstruct.Module {
	allowed := map[string]struct{}{}
	for _, p := range savePaths {
		allowed[filepath.Clean(p)] = struct{}{}
	}
	members := starlark.StringDict{
		"figure": starlark.NewBuiltin("figure", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%s: missing kind", b.Name())
			}
			kind, ok := starlark.AsString(args[0])
			if !ok {
				return nil, fmt.Errorf("%s: kind must be a string", b.Name())
			}
			k, err := ParseKind(kind)
			if err != nil {
				return nil, err
			}
			return build(k, b.Name(), args[1:], kwargs)
		}),
		"save": starlark.NewBuiltin("save", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var (
				fig  starlark.Value
				path string
			)
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fig", &fig, "path", &path); err != nil {
				return nil, err
			}
			f, ok := AsFigure(fig)
			if !ok {
				return nil, fmt.Errorf("%s: want figure, got %s", b.Name(), fig.Type())
			}
			if _, ok := allowed[filepath.Clean(path)]; !ok {
				return nil, errors.Wrapf(ErrSaveNotAllowed, "%q", path)
			}
			if err := f.SavePNG(path); err != nil {
				return nil, err
			}
			return starlark.String(path), nil
		}),
	}
	for _, k := range Kinds {
		k := k
		members[string(k)] = starlark.NewBuiltin(string(k), func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return build(k, b.Name(), args, kwargs)
		})
	}
	return &starlarkstruct.Module{Name: "chart", Members: members}
}

// build accepts either a table with x/y column names or raw categories and
// values: bar(df, x="region", y=["a", "b"]) or bar(categories=[...], values=[...]).
func build(kind Kind, fn string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		data, y, categories, values, names starlark.Value
		x, title, xLabel, yLabel           string
		width, height                      int
	)
	if err := starlark.UnpackArgs(fn, args, kwargs,
		"data?", &data, "x?", &x, "y?", &y,
		"categories?", &categories, "values?", &values, "names?", &names,
		"title?", &title, "x_label?", &xLabel, "y_label?", &yLabel,
		"width?", &width, "height?", &height,
	); err != nil {
		return nil, err
	}
	fig := &Figure{Kind: kind, Title: title, XLabel: xLabel, YLabel: yLabel, Width: width, Height: height}

	if data != nil && data != starlark.None {
		t, ok := frame.AsTable(data)
		if !ok {
			return nil, fmt.Errorf("%s: data must be a table, got %s", fn, data.Type())
		}
		if err := fromTable(fig, t, x, y); err != nil {
			return nil, fmt.Errorf("%s: %v", fn, err)
		}
	} else {
		if err := fromLists(fig, categories, values, names); err != nil {
			return nil, fmt.Errorf("%s: %v", fn, err)
		}
	}
	if err := fig.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %v", fn, err)
	}
	return NewValue(fig), nil
}

func fromTable(fig *Figure, t *frame.Table, x string, y starlark.Value) error {
	cols := t.Columns()
	if x == "" {
		if len(cols) < 2 {
			return errors.New("need x and y columns")
		}
		x = cols[0]
	}
	var ys []string
	switch v := y.(type) {
	case nil, starlark.NoneType:
		for _, c := range cols {
			if c != x && t.IsNumeric(c) {
				ys = append(ys, c)
			}
		}
	case starlark.String:
		ys = []string{string(v)}
	default:
		names, err := frame.ToStrings(v)
		if err != nil {
			return err
		}
		ys = names
	}
	if len(ys) == 0 {
		return errors.New("no numeric y columns")
	}
	xcol, err := t.Column(x)
	if err != nil {
		return err
	}
	if fig.XLabel == "" {
		fig.XLabel = x
	}
	if fig.YLabel == "" && len(ys) == 1 {
		fig.YLabel = ys[0]
	}
	var xs []float64
	if fig.Kind == Scatter {
		if xs, err = floats(xcol); err != nil {
			return errors.Wrapf(err, "column %q", x)
		}
	} else {
		for _, c := range xcol {
			fig.Categories = append(fig.Categories, frame.FormatCell(c))
		}
	}
	for _, name := range ys {
		col, err := t.Column(name)
		if err != nil {
			return err
		}
		vals, err := floats(col)
		if err != nil {
			return errors.Wrapf(err, "column %q", name)
		}
		fig.Series = append(fig.Series, Series{Name: name, Values: vals, X: xs})
	}
	return nil
}

func fromLists(fig *Figure, categories, values, names starlark.Value) error {
	if values == nil || values == starlark.None {
		return errors.New("values are required without data")
	}
	var rows [][]float64
	if nested, ok := nestedLists(values); ok {
		rows = nested
	} else {
		cells, err := toCells(values)
		if err != nil {
			return err
		}
		row, err := floats(cells)
		if err != nil {
			return err
		}
		rows = [][]float64{row}
	}
	var labels []string
	if names != nil && names != starlark.None {
		ss, err := frame.ToStrings(names)
		if err != nil {
			return err
		}
		labels = ss
	}
	var xs []float64
	if categories != nil && categories != starlark.None {
		cells, err := toCells(categories)
		if err != nil {
			return err
		}
		if fig.Kind == Scatter {
			if xs, err = floats(cells); err != nil {
				return err
			}
		} else {
			for _, c := range cells {
				fig.Categories = append(fig.Categories, frame.FormatCell(c))
			}
		}
	} else if fig.Kind != Scatter && len(rows) > 0 {
		for i := range rows[0] {
			fig.Categories = append(fig.Categories, strconv.Itoa(i))
		}
	}
	for i, r := range rows {
		name := fmt.Sprintf("series %d", i+1)
		if i < len(labels) {
			name = labels[i]
		}
		fig.Series = append(fig.Series, Series{Name: name, Values: r, X: xs})
	}
	return nil
}

func nestedLists(v starlark.Value) ([][]float64, bool) {
	seq, ok := v.(starlark.Indexable)
	if !ok || seq.Len() == 0 {
		return nil, false
	}
	if _, ok := seq.Index(0).(starlark.Indexable); !ok {
		return nil, false
	}
	out := make([][]float64, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		cells, err := toCells(seq.Index(i))
		if err != nil {
			return nil, false
		}
		row, err := floats(cells)
		if err != nil {
			return nil, false
		}
		out[i] = row
	}
	return out, true
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
		c, err := frame.FromStarlark(item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// floats converts cells to numbers; nil becomes NaN.
func floats(cells []any) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		switch n := c.(type) {
		case nil:
			out[i] = math.NaN()
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a number", n)
			}
			out[i] = f
		default:
			return nil, fmt.Errorf("value %v is not a number", c)
		}
	}
	return out, nil
}
