package report

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/antgroup/datacrew/blueprint"
	"github.com/antgroup/datacrew/handoff"
	"github.com/antgroup/datacrew/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const analyst = "Lazio has the highest income.\n\n" + handoff.Marker + "\nregione,reddito\nLazio,10\nSicilia,6\n"

func barBlueprint(code string) string {
	bp := `{
  "visualization_type": "bar",
  "python_code_to_generate_figure": ` + quote(code) + `,
  "data_for_visualization": {"format": "csv_string", "value": "regione,reddito\nLazio,10\nSicilia,6\n"},
  "plot_parameters": {"title": "Reddito", "x_label": "Regione", "y_label": "Euro", "suggested_library": "chart"},
  "description": "Income by region"
}`
	return "```json\n" + bp + "\n```"
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func TestRenderBar(t *testing.T) {
	r := NewRenderer()
	rep := r.Render(context.Background(), analyst, barBlueprint(`figure_object = chart.bar(df, x="regione", y="reddito")`))

	assert.Equal(t, "Lazio has the highest income.", rep.Analysis)
	require.NotNil(t, rep.Table)
	assert.Equal(t, 2, rep.Table.Len())

	v := rep.Visualization
	require.Equal(t, StatusRendered, v.Status, v.Message)
	require.NotNil(t, v.Image)
	assert.Equal(t, SourceBlob, v.Image.Source)
	assert.True(t, bytes.HasPrefix(v.Image.PNG, []byte("\x89PNG")))
	assert.Equal(t, "Reddito", v.Title)
}

func TestRenderFigureFunction(t *testing.T) {
	code := `
def generate_visualization_figure(df, title, x_label, y_label):
    return chart.line(df, x="regione", y="reddito", title=title)
`
	rep := NewRenderer().Render(context.Background(), analyst, barBlueprint(code))
	assert.Equal(t, StatusRendered, rep.Visualization.Status, rep.Visualization.Message)
}

func TestRenderNoneDoesNotExecute(t *testing.T) {
	bp, err := blueprint.None("A single number needs no chart.").Marshal()
	require.NoError(t, err)
	rep := NewRenderer().Render(context.Background(), "The total is 42.", bp)
	v := rep.Visualization
	assert.Equal(t, StatusNotApplicable, v.Status)
	assert.Contains(t, v.Message, "A single number needs no chart.")
	assert.Nil(t, v.Image)
	assert.Equal(t, "The total is 42.", rep.Analysis)

	// Code present on a none blueprint is still never run.
	dir := t.TempDir()
	marker := dir + "/ran.png"
	raw := `{"visualization_type": "none", "python_code_to_generate_figure": "chart.save(chart.bar(categories=['a'], values=[1]), '` + marker + `')", "description": "no"}`
	rep = NewRenderer(WithScriptOptions(script.WithSavePaths(marker))).Render(context.Background(), "x", raw)
	assert.Equal(t, StatusNotApplicable, rep.Visualization.Status)
	_, err = os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestRenderMissingDataIsError(t *testing.T) {
	raw := `{"visualization_type": "bar", "python_code_to_generate_figure": "figure_object = None", "description": "d"}`
	rep := NewRenderer().Render(context.Background(), analyst, raw)
	v := rep.Visualization
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Message, "data_for_visualization")
	assert.Equal(t, "Lazio has the highest income.", rep.Analysis)
}

func TestRenderErrors(t *testing.T) {
	cases := map[string]struct {
		blueprint string
		contains  string
	}{
		"bad json":       {"not json at all", "Could not decode JSON"},
		"bad format":     {strings.Replace(barBlueprint("x = 1"), "csv_string", "xml", 1), "unsupported"},
		"script error":   {barBlueprint(`figure_object = 1 // 0`), "Error executing code: "},
		"no sentinel":    {barBlueprint(`x = 1`), "figure_object"},
		"not a figure":   {barBlueprint(`figure_object = 42`), "not a figure"},
		"unknown column": {barBlueprint(`figure_object = chart.bar(df, x="nope", y="reddito")`), "nope"},
		"header only":    {strings.Replace(barBlueprint("x = 1"), `Lazio,10\nSicilia,6\n`, "", 1), "no rows"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			rep := NewRenderer().Render(context.Background(), analyst, c.blueprint)
			assert.Equal(t, StatusError, rep.Visualization.Status)
			assert.Contains(t, rep.Visualization.Message, c.contains)
			assert.NotEmpty(t, rep.Analysis)
		})
	}
}

func TestRenderFailureLogsOneLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	for _, bp := range []string{
		`{"visualization_type": "bar", "python_code_to_generate_figure": "x = 1"}`,
		strings.Replace(barBlueprint("x = 1"), `Lazio,10\nSicilia,6\n`, "", 1),
		barBlueprint(`figure_object = 1 // 0`),
	} {
		buf.Reset()
		v := r.Visualize(context.Background(), bp)
		require.Equal(t, StatusError, v.Status)
		assert.Contains(t, buf.String(), "visualization failed")
		assert.NotContains(t, buf.String(), "\n\t")
		assert.Equal(t, 1, strings.Count(buf.String(), "\n"), buf.String())
	}
}

func TestRenderSavesToPlotsDir(t *testing.T) {
	dir := t.TempDir()
	now := time.UnixMilli(1700000000123)
	r := NewRenderer(WithPlotsDir(dir), WithClock(func() time.Time { return now }))
	rep := r.Render(context.Background(), analyst, barBlueprint(`figure_object = chart.pie(df, x="regione", y="reddito")`))
	v := rep.Visualization
	require.Equal(t, StatusRendered, v.Status, v.Message)
	assert.Equal(t, SourceFile, v.Image.Source)
	assert.True(t, strings.HasSuffix(v.Image.Path, "visualization_1700000000123.png"))
	_, err := os.Stat(v.Image.Path)
	assert.NoError(t, err)
}

func TestWriteTextAndHTML(t *testing.T) {
	rep := NewRenderer().Render(context.Background(),
		"**Lazio** leads.\n\n```text\nregione reddito\nLazio 10\n```\nDone.\n\n"+handoff.Marker+"\na,b\n1,2\n",
		barBlueprint(`figure_object = 1 // 0`))
	rep.Query = "Which region earns most?"

	var text bytes.Buffer
	require.NoError(t, rep.WriteText(&text))
	out := text.String()
	assert.Contains(t, out, "Lazio leads.")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "regione")
	assert.Contains(t, out, "Error executing code")

	var html bytes.Buffer
	require.NoError(t, rep.WriteHTML(&html))
	page := html.String()
	assert.Contains(t, page, "<strong>Lazio</strong>")
	assert.Contains(t, page, `class="error"`)
	assert.Contains(t, page, "Failed visualization code")
	assert.Contains(t, page, "<td>Lazio</td>")
}

func TestWriteHTMLInlinesImage(t *testing.T) {
	rep := NewRenderer().Render(context.Background(), analyst, barBlueprint(`figure_object = chart.bar(df)`))
	var html bytes.Buffer
	require.NoError(t, rep.WriteHTML(&html))
	assert.Contains(t, html.String(), `src="data:image/png;base64,`)
}

func TestWriteXLSX(t *testing.T) {
	rep := NewAnalysis(analyst)
	rep.Query = "q"
	var buf bytes.Buffer
	require.NoError(t, rep.WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Data"}, f.GetSheetList())
	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	assert.Equal(t, []string{"regione", "reddito"}, rows[0])
	assert.Equal(t, []string{"Lazio", "10"}, rows[1])
}

func TestNewAnalysisWithoutData(t *testing.T) {
	rep := NewAnalysis("The datasets do not contain 2010.")
	assert.Nil(t, rep.Table)
	assert.Equal(t, "The datasets do not contain 2010.", rep.NoDataReason)
}
