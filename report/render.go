package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/antgroup/datacrew/blueprint"
	"github.com/antgroup/datacrew/chart"
	"github.com/antgroup/datacrew/frame"
	"github.com/antgroup/datacrew/script"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

// FigureSentinel is the global plotting code assigns its figure to.
const FigureSentinel = "figure_object"

// FigureFunc may be defined instead of setting the sentinel; it is called
// as FigureFunc(df, title, x_label, y_label).
const FigureFunc = "generate_visualization_figure"

type Renderer struct {
	opts []script.Option

	plotsDir string
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Renderer)

// WithScriptOptions sets the limits and data access of plotting code.
func WithScriptOptions(opts ...script.Option) Option {
	return func(r *Renderer) {
		r.opts = append(r.opts, opts...)
	}
}

// WithPlotsDir saves rendered charts as files under dir.
func WithPlotsDir(dir string) Option {
	return func(r *Renderer) {
		r.plotsDir = dir
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the full report. The analysis part is always present; a
// visualization problem only changes Visualization.
func (r *Renderer) Render(ctx context.Context, analystBlob, blueprintJSON string) *Report {
	rep := NewAnalysis(analystBlob)
	rep.CreatedAt = r.now()
	rep.Visualization = r.Visualize(ctx, blueprintJSON)
	r.logger.Info("report rendered",
		"analysis_len", len(rep.Analysis),
		"status", rep.Visualization.Status,
		"kind", rep.Visualization.Kind)
	return rep
}

// Visualize runs the blueprint and classifies the result.
func (r *Renderer) Visualize(ctx context.Context, blueprintJSON string) Outcome {
	bp, err := blueprint.Parse(blueprintJSON)
	if err != nil {
		return Outcome{Status: StatusError, Message: "Error: Could not decode JSON from Visualizer: " + err.Error()}
	}
	out := Outcome{Kind: bp.VisualizationType, Description: bp.Description}
	if bp.IsNone() {
		out.Status = StatusNotApplicable
		out.Message = "Visualization not generated or not applicable: " + describe(bp.Description)
		return out
	}
	if err := bp.Validate(); err != nil {
		return r.fail(out, err)
	}
	out.Code = *bp.Code

	data, err := blueprint.Materialize(bp.Data)
	if err != nil {
		return r.fail(out, errors.Wrapf(err, "preparing data for visualization (format: %s)", bp.Data.Format))
	}
	out.Data = data
	params, err := bp.Params()
	if err != nil {
		return r.fail(out, err)
	}
	out.Title = params.Title

	fig, err := r.execute(ctx, out.Code, data, bp, params)
	if err != nil {
		return r.fail(out, err)
	}
	applyParams(fig, params)
	if out.Title == "" {
		out.Title = fig.Title
	}

	img, err := r.image(fig)
	if err != nil {
		return r.fail(out, errors.Wrap(err, "rendering figure"))
	}
	out.Image = img
	out.Status = StatusRendered
	out.Message = "Analyst findings and visualization rendered successfully."
	out.Data = nil
	out.Code = ""
	return out
}

func (r *Renderer) fail(out Outcome, err error) Outcome {
	out.Status = StatusError
	var se scriptError
	if errors.As(err, &se) {
		out.Message = se.Error()
	} else {
		out.Message = "Error: " + err.Error()
	}
	r.logger.Warn("visualization failed", "kind", out.Kind, "error", err.Error())
	return out
}

func (r *Renderer) execute(ctx context.Context, code string, data *frame.Table, bp *blueprint.Blueprint, p blueprint.PlotParameters) (*chart.Figure, error) {
	opts := append([]script.Option{script.WithSentinel(FigureSentinel, false)}, r.opts...)
	eval := script.New(opts...)
	params := map[string]any{
		"title":             p.Title,
		"x_label":           p.XLabel,
		"y_label":           p.YLabel,
		"suggested_library": p.SuggestedLibrary,
	}
	for k, v := range p.Extra {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	params = scalarParams(params)
	res, err := eval.Execute(ctx, code, script.Bindings{
		"df":                 data,
		"data":               data,
		"params":             params,
		"title":              p.Title,
		"x_label":            p.XLabel,
		"y_label":            p.YLabel,
		"visualization_type": bp.VisualizationType,
	})
	if err != nil {
		return nil, execError(err)
	}
	value := res.Value
	if _, ok := res.Globals[FigureFunc].(starlark.Callable); ok && value == nil {
		value, err = eval.Call(ctx, res, FigureFunc, starlark.Tuple{
			frame.NewValue(data),
			starlark.String(p.Title),
			starlark.String(p.XLabel),
			starlark.String(p.YLabel),
		}, nil)
		if err != nil {
			return nil, execError(err)
		}
	}
	if value == nil || value == starlark.None {
		return nil, execError(errors.Wrapf(script.ErrSentinelNotSet, "%s (or %s returned None)", FigureSentinel, FigureFunc))
	}
	fig, ok := chart.AsFigure(value)
	if !ok {
		return nil, fmt.Errorf("plotting code produced a %s, not a figure", value.Type())
	}
	cp := *fig
	return &cp, nil
}

type scriptError struct{ err error }

func (e scriptError) Error() string { return script.FormatError(e.err) }
func (e scriptError) Unwrap() error { return e.err }

func execError(err error) error { return scriptError{err: err} }

func applyParams(fig *chart.Figure, p blueprint.PlotParameters) {
	if fig.Title == "" {
		fig.Title = p.Title
	}
	if fig.XLabel == "" {
		fig.XLabel = p.XLabel
	}
	if fig.YLabel == "" {
		fig.YLabel = p.YLabel
	}
}

func (r *Renderer) image(fig *chart.Figure) (*Image, error) {
	png, err := fig.PNG()
	if err != nil {
		return nil, err
	}
	img := &Image{Source: SourceBlob, PNG: png}
	if r.plotsDir == "" {
		return img, nil
	}
	path, err := filepath.Abs(filepath.Join(r.plotsDir, PlotFileName(r.now())))
	if err != nil {
		return nil, err
	}
	if err := fig.SavePNG(path); err != nil {
		return nil, err
	}
	img.Source = SourceFile
	img.Path = path
	r.logger.Info("visualization saved", "path", path)
	return img, nil
}

// PlotFileName is visualization_<unix millis>.png.
func PlotFileName(t time.Time) string {
	return fmt.Sprintf("visualization_%d.png", t.UnixMilli())
}

func describe(s string) string {
	if s == "" {
		return "No reason provided."
	}
	return s
}

// scalarParams drops values scripts cannot receive.
func scalarParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, err := script.ToValue(v); err == nil {
			out[k] = v
		}
	}
	return out
}
