package script

import (
	"fmt"
	"sort"

	"github.com/antgroup/datacrew/chart"
	"github.com/antgroup/datacrew/frame"
	"go.starlark.net/starlark"
)

// Bindings are the extra names predeclared for one execution. Values are Go
// scalars, string maps and slices, tables, figures or starlark values.
type Bindings map[string]any

func (b Bindings) toStarlark() (starlark.StringDict, error) {
	out := make(starlark.StringDict, len(b))
	for k, v := range b {
		sv, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %v", k, err)
		}
		out[k] = sv
	}
	return out, nil
}

// ToValue converts a Go value to a script value.
func ToValue(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case *frame.Table:
		return frame.NewValue(x), nil
	case *chart.Figure:
		return chart.NewValue(x), nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case []string:
		vs := make([]starlark.Value, len(x))
		for i, s := range x {
			vs[i] = starlark.String(s)
		}
		return starlark.NewList(vs), nil
	case []any:
		vs := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			vs[i] = sv
		}
		return starlark.NewList(vs), nil
	case map[string]string:
		d := starlark.NewDict(len(x))
		for _, k := range sortedKeys(x) {
			_ = d.SetKey(starlark.String(k), starlark.String(x[k]))
		}
		return d, nil
	case map[string]any:
		d := starlark.NewDict(len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv, err := ToValue(x[k])
			if err != nil {
				return nil, err
			}
			_ = d.SetKey(starlark.String(k), sv)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
