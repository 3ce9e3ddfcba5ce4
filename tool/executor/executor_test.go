package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/datacrew/dataset"
	"github.com/antgroup/datacrew/metrics"
	"github.com/antgroup/datacrew/script"
)

func catalog(t *testing.T) *dataset.Catalog {
	dir := t.TempDir()
	path := filepath.Join(dir, "reddito.csv")
	require.NoError(t, os.WriteFile(path, []byte("regione,reddito\nLazio,10\nSicilia,6\n"), 0o644))
	c, err := dataset.NewCatalog([]dataset.Entry{{Name: dataset.Reddito, Path: path}})
	require.NoError(t, err)
	return c
}

func TestParseInput(t *testing.T) {
	in := parseInput("```python\nprint(1)\n```")
	assert.Equal(t, "print(1)", in.Code)

	in = parseInput(`{"code": "print(2)", "analyst_data_str": "a\n1"}`)
	assert.Equal(t, "print(2)", in.Code)
	assert.Equal(t, "a\n1", in.AnalystDataStr)

	in = parseInput(`{"python_plot_code": "x = 1", "analyst_data_str": ""}`)
	assert.Equal(t, "x = 1", in.Code)

	in = parseInput(`{"a": 1}`)
	assert.Equal(t, `{"a": 1}`, in.Code)
}

func TestAnalysisTool(t *testing.T) {
	c := catalog(t)
	rec := metrics.New(metrics.DefaultConfig())
	tl := NewAnalysisTool(
		WithScriptOptions(script.WithSource(c), script.WithDataPaths(c.Paths())),
		WithRecorder(rec))
	ctx := context.Background()

	out, err := tl.Call(ctx, `df = frame.read_csv(AVAILABLE_DATA_PATHS["REDDITO.csv"])
print(df.shape)
return_value = df.sum("reddito")`)
	require.NoError(t, err)
	assert.Equal(t, "(2, 2)\n\n16.0", out)

	out, err = tl.Call(ctx, `x = 1`)
	require.NoError(t, err)
	assert.Equal(t, NoOutput, out)

	out, err = tl.Call(ctx, `return_value = 1 // 0`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error executing code: "), out)

	out, err = tl.Call(ctx, `frame.read_csv("/etc/passwd")`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error executing code: "), out)
}

func TestAnalysisToolCanceled(t *testing.T) {
	tl := NewAnalysisTool()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tl.Call(ctx, "x = 1\nfor i in range(100000000):\n    x += i\n")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlottingToolFigureObject(t *testing.T) {
	dir := t.TempDir()
	now := time.UnixMilli(1700000000123)
	tl := NewPlottingTool(WithPlotsDir(dir), WithClock(func() time.Time { return now }))

	out, err := tl.Call(context.Background(), `{"code": "figure_object = chart.bar(df, x=\"regione\", y=\"reddito\", title=\"Reddito\")", "analyst_data_str": "regione,reddito\nLazio,10\nSicilia,6\n"}`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "visualization_1700000000123.png"), out)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlottingToolSaveAndHandoff(t *testing.T) {
	dir := t.TempDir()
	tl := NewPlottingTool(WithPlotsDir(dir))
	blob := "Summary.\n=== DATA FOR VISUALIZATION (CSV) ===\nk,v\na,1\nb,2\n"
	code := `chart.save(chart.pie(df, x="k", y="v"), plot_path_to_save)`

	out, err := tl.Call(context.Background(), `{"code": `+quote(code)+`, "analyst_data_str": `+quote(blob)+`}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, dir), out)
}

func TestPlottingToolErrors(t *testing.T) {
	dir := t.TempDir()
	tl := NewPlottingTool(WithPlotsDir(dir))
	ctx := context.Background()

	out, err := tl.Call(ctx, `x = 1`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: Plotting code executed, but plot file not found at '"), out)

	out, err = tl.Call(ctx, `figure_object = 3`)
	require.NoError(t, err)
	assert.Equal(t, "Error executing plotting code: figure_object must be a chart figure, got int", out)

	out, err = tl.Call(ctx, `figure_object = chart.bar(df, x="a", y="b")`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, PlottingPrefix), out)

	out, err = tl.Call(ctx, `chart.save(chart.bar(categories=["a"], values=[1]), "/tmp/elsewhere.png")`)
	require.NoError(t, err)
	assert.Contains(t, out, "not allowed")
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
