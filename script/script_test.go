package script

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/antgroup/datacrew/chart"
	"github.com/antgroup/datacrew/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestExecuteOutputAndSentinel(t *testing.T) {
	e := New(WithSentinel("return_value", false))
	res, err := e.Execute(context.Background(), `
print("hello")
return_value = 6 * 7
`, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)
	assert.Equal(t, "hello\n42", res.Text())
	assert.Contains(t, res.Text(), "42")
}

func TestExecuteStringSentinelIsUnquoted(t *testing.T) {
	e := New(WithSentinel("return_value", false))
	res, err := e.Execute(context.Background(), `return_value = "Lazio"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lazio", res.Text())
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "42", (&Result{Value: starlark.MakeInt(42)}).Text())
	assert.Equal(t, "a\n42", (&Result{Output: "a", Value: starlark.MakeInt(42)}).Text())
	assert.Equal(t, "a\n", (&Result{Output: "a\n"}).Text())
}

func TestExecuteErrorMessage(t *testing.T) {
	e := New()
	_, err := e.Execute(context.Background(), `x = 1 // 0`, nil)
	require.Error(t, err)
	msg := FormatError(err)
	assert.True(t, strings.HasPrefix(msg, ErrorPrefix))
	assert.Contains(t, msg, "division by zero")

	_, err = e.Execute(context.Background(), `fail("no such region")`, nil)
	require.Error(t, err)
	assert.Contains(t, FormatError(err), "no such region")

	_, err = e.Execute(context.Background(), `def broken(:`, nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(FormatError(err), ErrorPrefix))
}

func TestExecuteRequiredSentinel(t *testing.T) {
	e := New(WithSentinel("figure_object", true))
	_, err := e.Execute(context.Background(), `x = 1`, nil)
	assert.ErrorIs(t, err, ErrSentinelNotSet)
}

func TestExecuteStepLimit(t *testing.T) {
	e := New(WithMaxSteps(10_000))
	_, err := e.Execute(context.Background(), `
while True:
    pass
`, nil)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestExecuteTimeout(t *testing.T) {
	e := New(WithTimeout(50*time.Millisecond), WithMaxSteps(1<<62))
	start := time.Now()
	_, err := e.Execute(context.Background(), `
while True:
    pass
`, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteNoLoad(t *testing.T) {
	e := New()
	_, err := e.Execute(context.Background(), `load("os.star", "system")`, nil)
	assert.Error(t, err)
}

func TestExecuteOutputLimit(t *testing.T) {
	e := New(WithMaxOutput(20))
	res, err := e.Execute(context.Background(), `
for i in range(100):
    print("line", i)
`, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "output truncated")
	assert.Less(t, len(res.Output), 60)
}

type oneTable struct{ t *frame.Table }

func (o oneTable) Open(ref, _ string) (*frame.Table, error) {
	if ref != "REDDITO.csv" {
		return nil, assert.AnError
	}
	return o.t, nil
}

func TestExecuteWithDatasets(t *testing.T) {
	tb, err := frame.ParseCSV("regione,reddito\nLazio,10\nSicilia,6\n")
	require.NoError(t, err)
	e := New(
		WithSentinel("return_value", false),
		WithSource(oneTable{tb}),
		WithDataPaths(map[string]string{"REDDITO.csv": "/data/reddito.csv"}),
	)
	res, err := e.Execute(context.Background(), `
df = frame.read_csv("REDDITO.csv")
return_value = df.sort("reddito", desc=True).head(1).column("regione")[0] + " " + AVAILABLE_DATA_PATHS["REDDITO.csv"]
`, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("Lazio /data/reddito.csv"), res.Value)

	_, err = e.Execute(context.Background(), `frame.read_csv("/etc/passwd")`, nil)
	assert.Error(t, err)
}

func TestExecuteBindingsAndCall(t *testing.T) {
	e := New()
	tb, err := frame.ParseCSV("a,b\nx,1\ny,2\n")
	require.NoError(t, err)
	res, err := e.Execute(context.Background(), `
def generate_visualization_figure(data, title, x_label, y_label):
    print("plotting", title)
    return chart.bar(data, x="a", y="b", title=title, x_label=x_label, y_label=y_label)
`, Bindings{"df": tb, "params": map[string]any{"title": "T"}})
	require.NoError(t, err)

	v, err := e.Call(context.Background(), res, "generate_visualization_figure",
		starlark.Tuple{frame.NewValue(tb), starlark.String("T"), starlark.String("x"), starlark.String("y")}, nil)
	require.NoError(t, err)
	fig, ok := chart.AsFigure(v)
	require.True(t, ok)
	assert.Equal(t, "T", fig.Title)
	assert.Contains(t, res.Output, "plotting T")

	_, err = e.Call(context.Background(), res, "missing", nil, nil)
	assert.Error(t, err)
}

func TestToValueRejectsUnknown(t *testing.T) {
	_, err := ToValue(struct{}{})
	assert.Error(t, err)
}
