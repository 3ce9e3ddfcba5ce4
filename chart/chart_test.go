package chart

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/antgroup/datacrew/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestRenderAllKinds(t *testing.T) {
	cats := []string{"Lazio", "Lombardia", "Sicilia"}
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			f := &Figure{
				Kind:       k,
				Title:      "Reddito medio",
				XLabel:     "regione",
				YLabel:     "euro",
				Categories: cats,
				Series: []Series{
					{Name: "2021", Values: []float64{10, 20, 5}, X: []float64{1, 2, 3}},
				},
				Width:  400,
				Height: 300,
			}
			if k != Pie {
				f.Series = append(f.Series, Series{Name: "2022", Values: []float64{12, 18, 7}, X: []float64{1.5, 2.5, 3.5}})
			}
			data, err := f.PNG()
			require.NoError(t, err)
			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 400, img.Bounds().Dx())
			assert.Equal(t, 300, img.Bounds().Dy())
		})
	}
}

func TestValidate(t *testing.T) {
	f := &Figure{Kind: Bar, Categories: []string{"a"}}
	assert.ErrorIs(t, f.Validate(), ErrNoSeries)

	f.Series = []Series{{Name: "s", Values: []float64{1, 2}}}
	assert.ErrorIs(t, f.Validate(), ErrShape)

	f.Kind = "radar"
	assert.ErrorIs(t, f.Validate(), ErrUnknownKind)

	k, err := ParseKind("bar_chart")
	require.NoError(t, err)
	assert.Equal(t, Bar, k)
}

func TestPieRejectsZeroTotal(t *testing.T) {
	f := &Figure{Kind: Pie, Categories: []string{"a"}, Series: []Series{{Values: []float64{0}}}}
	_, err := f.Render()
	assert.Error(t, err)
}

func TestNiceTicks(t *testing.T) {
	lo, hi, step := niceTicks(0, 97, 6)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
	assert.Equal(t, 20.0, step)
	assert.Equal(t, "0.25", formatTick(0.25, 0.05))
}

func exec(t *testing.T, code string, predeclared starlark.StringDict) (starlark.StringDict, error) {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	return starlark.ExecFile(thread, "plot.star", code, predeclared)
}

func TestModuleFromTable(t *testing.T) {
	tb, err := frame.ParseCSV("regione,reddito,spesa\nLazio,10,4\nSicilia,6,3\n")
	require.NoError(t, err)
	g, err := exec(t, `
fig = chart.bar(df, x="regione", y="reddito", title="Reddito")
multi = chart.figure("line", df, x="regione")
`, starlark.StringDict{"chart": Module(), "df": frame.NewValue(tb)})
	require.NoError(t, err)

	fig, ok := AsFigure(g["fig"])
	require.True(t, ok)
	assert.Equal(t, Bar, fig.Kind)
	assert.Equal(t, []string{"Lazio", "Sicilia"}, fig.Categories)
	assert.Equal(t, "regione", fig.XLabel)
	assert.Equal(t, "reddito", fig.YLabel)
	assert.Equal(t, []float64{10, 6}, fig.Series[0].Values)

	multi, ok := AsFigure(g["multi"])
	require.True(t, ok)
	assert.Len(t, multi.Series, 2)
}

func TestModuleFromLists(t *testing.T) {
	g, err := exec(t, `
fig = chart.pie(categories=["a", "b"], values=[3, 1], title="share")
kind = fig.kind
`, starlark.StringDict{"chart": Module()})
	require.NoError(t, err)
	assert.Equal(t, starlark.String("pie"), g["kind"])

	_, err = exec(t, `chart.bar(categories=["a"], values=[1, 2])`, starlark.StringDict{"chart": Module()})
	assert.Error(t, err)
}

func TestModuleSave(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "plot.png")
	mod := Module(allowed)

	_, err := exec(t, `chart.save(chart.bar(categories=["a"], values=[1]), path)`,
		starlark.StringDict{"chart": mod, "path": starlark.String(allowed)})
	require.NoError(t, err)
	_, err = os.Stat(allowed)
	require.NoError(t, err)

	_, err = exec(t, `chart.save(chart.bar(categories=["a"], values=[1]), path)`,
		starlark.StringDict{"chart": mod, "path": starlark.String(filepath.Join(dir, "other.png"))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrSaveNotAllowed.Error())
}
