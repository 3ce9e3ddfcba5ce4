package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

type mapSource map[string]string

func (m mapSource) Open(ref, _ string) (*Table, error) {
	text, ok := m[ref]
	if !ok {
		return nil, assert.AnError
	}
	return ParseCSV(text)
}

func run(t *testing.T, src Source, code string) starlark.StringDict {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	globals, err := starlark.ExecFile(thread, "test.star", code, starlark.StringDict{
		"frame": Module(src),
	})
	require.NoError(t, err)
	return globals
}

func TestModuleReadAndQuery(t *testing.T) {
	src := mapSource{"REDDITO.csv": regions}
	g := run(t, src, `
df = frame.read_csv("REDDITO.csv")
top = df.group("region", "income", agg="sum").sort("income", desc=True).head(1)
name = top.column("region")[0]
total = df.sum("income")
shape = df.shape
cols = df.columns
n = len(df)
first = df[0]["region"]
`)
	assert.Equal(t, starlark.String("Lazio"), g["name"])
	assert.Equal(t, starlark.Float(410.5), g["total"])
	assert.Equal(t, "(4, 3)", g["shape"].String())
	assert.Equal(t, `["region", "year", "income"]`, g["cols"].String())
	assert.Equal(t, starlark.MakeInt(4), g["n"])
	assert.Equal(t, starlark.String("Lazio"), g["first"])
}

func TestModuleBuilders(t *testing.T) {
	g := run(t, nil, `
a = frame.table(["x", "y"], [[1, "a"], [2, "b"]])
b = frame.table({"x": [1, 2], "y": ["a", "b"]})
c = frame.from_records([{"x": 1, "y": "a"}, {"x": 2, "y": "b"}])
d = frame.from_csv("x,y\n1,a\n2,b\n")
same = a.to_csv() == b.to_csv() and b.to_csv() == c.to_csv() and c.to_csv() == d.to_csv()
rows = [r["y"] for r in a]
`)
	assert.Equal(t, starlark.True, g["same"])
	assert.Equal(t, `["a", "b"]`, g["rows"].String())

	tb, ok := AsTable(g["a"])
	require.True(t, ok)
	assert.Equal(t, 2, tb.Len())
}

func TestModuleWithoutSource(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	_, err := starlark.ExecFile(thread, "test.star", `frame.read_csv("x.csv")`, starlark.StringDict{
		"frame": Module(nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNoSource.Error())
}
