package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/datacrew/chart"
	"github.com/antgroup/datacrew/frame"
	"github.com/antgroup/datacrew/handoff"
	"github.com/antgroup/datacrew/script"
	"github.com/antgroup/datacrew/tool"
	"github.com/antgroup/datacrew/utils/json"
)

const (
	PlottingName     = "Starlark Plotting Tool"
	PlottingSentinel = "figure_object"
	PlottingPrefix   = "Error executing plotting code: "
)

// PlottingTool runs visualizer code that builds a chart and writes it as
// PNG to a fresh file under the plots directory. It returns the absolute
// path of the image.
type PlottingTool struct {
	opts *Options
}

var _ tool.Tool = &PlottingTool{}

func NewPlottingTool(opts ...Option) *PlottingTool {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &PlottingTool{opts: options}
}

func (t *PlottingTool) Name() string {
	return PlottingName
}

func (t *PlottingTool) Description() string {
	bytes, _ := json.Marshal(t.Schema())
	return fmt.Sprintf(`Executes Starlark code that builds a chart and saves it as a PNG image file.
The code gets analyst_data_str (the analyst CSV), df (that CSV as a table, or None) and plot_path_to_save.
Build the chart with chart.bar, chart.barh, chart.line, chart.scatter, chart.pie or chart.area and either assign it to %s or call chart.save(fig, plot_path_to_save).
Returns the file path to the saved plot upon success, or an error message string.
The input must be json schema: %s`, PlottingSentinel, string(bytes)) + `
Example Input: {"code": "figure_object = chart.bar(df, x=\"region\", y=\"total\", title=\"Total by region\")", "analyst_data_str": "region,total\nNord,10\nSud,7"}`
}

func (t *PlottingTool) Schema() *tool.PropertiesSchema {
	return &tool.PropertiesSchema{
		Type: tool.TypeJson,
		Properties: map[string]tool.PropertySchema{
			"code": {
				Type:        tool.TypeString,
				Description: "Starlark source building the chart",
			},
			"analyst_data_str": {
				Type:        tool.TypeString,
				Description: "CSV data produced by the analyst",
			},
		},
		Required: []string{"code", "analyst_data_str"},
	}
}

func (t *PlottingTool) Strict() bool {
	return true
}

func (t *PlottingTool) Call(ctx context.Context, input string) (string, error) {
	in := parseInput(input)
	if in.Code == "" {
		return PlottingPrefix + "no code provided", nil
	}
	path, err := t.nextPath()
	if err != nil {
		return PlottingPrefix + err.Error(), nil
	}

	so := append(append([]script.Option{}, t.opts.Script...),
		script.WithSentinel(PlottingSentinel, false),
		script.WithSavePaths(path),
		script.WithLogger(t.opts.Logger))
	eval := script.New(so...)

	bindings := script.Bindings{
		"analyst_data_str":  in.AnalystDataStr,
		"plot_path_to_save": path,
		"df":                nil,
	}
	if df := parseData(in.AnalystDataStr); df != nil {
		bindings["df"] = df
	}

	res, err := eval.Execute(ctx, in.Code, bindings)
	record(t.opts, "plotting", res, err)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return PlottingPrefix + strings.TrimPrefix(script.FormatError(err), script.ErrorPrefix), nil
	}
	if res.Value != nil {
		fig, ok := chart.AsFigure(res.Value)
		if !ok {
			return fmt.Sprintf("%s%s must be a chart figure, got %s", PlottingPrefix, PlottingSentinel, res.Value.Type()), nil
		}
		if err := fig.SavePNG(path); err != nil {
			return PlottingPrefix + err.Error(), nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("Error: Plotting code executed, but plot file not found at '%s'. "+
			"Ensure %s is assigned or chart.save(fig, plot_path_to_save) was called.", path, PlottingSentinel), nil
	}
	t.opts.Logger.Info("plot saved", "path", path)
	return path, nil
}

func (t *PlottingTool) nextPath() (string, error) {
	dir, err := filepath.Abs(t.opts.PlotsDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("visualization_%d.png", t.opts.Clock().UnixMilli())
	return filepath.Join(dir, name), nil
}

// parseData reads the analyst data as a handoff blob or as bare CSV.
func parseData(s string) *frame.Table {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if h, err := handoff.Parse(s); err == nil && h.HasMarker {
		if tb, err := h.Table(); err == nil {
			return tb
		}
		return nil
	}
	tb, err := frame.ParseCSV(s)
	if err != nil {
		return nil
	}
	return tb
}
