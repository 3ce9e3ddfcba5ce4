package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/script"
	"github.com/antgroup/datacrew/tool"
	"github.com/antgroup/datacrew/utils/json"
)

const (
	AnalysisName     = "Starlark Data Code Executor"
	AnalysisSentinel = "return_value"
	NoOutput         = "Code executed successfully, but no output was produced."
)

// AnalysisTool runs analyst code against the configured datasets. Printed
// output and return_value form the observation.
type AnalysisTool struct {
	opts *Options
	eval *script.Evaluator
}

var _ tool.Tool = &AnalysisTool{}

func NewAnalysisTool(opts ...Option) *AnalysisTool {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	so := append(append([]script.Option{}, options.Script...),
		script.WithSentinel(AnalysisSentinel, false),
		script.WithLogger(options.Logger))
	return &AnalysisTool{opts: options, eval: script.New(so...)}
}

func (t *AnalysisTool) Name() string {
	return AnalysisName
}

func (t *AnalysisTool) Description() string {
	bytes, _ := json.Marshal(t.Schema())
	return fmt.Sprintf(`Executes Starlark code for data analysis.
Datasets are opened with frame.read_csv(AVAILABLE_DATA_PATHS["<name>"]); tables offer head, select, where, sort, group, sum, mean, describe and to_csv.
Use print() to show results, or assign the final result to %s.
The input must be the code itself or json schema: %s`, AnalysisSentinel, string(bytes)) + `
Example Input: {"code": "t = frame.read_csv(AVAILABLE_DATA_PATHS[\"REDDITO.csv\"])\nprint(t.head())"}`
}

func (t *AnalysisTool) Schema() *tool.PropertiesSchema {
	return &tool.PropertiesSchema{
		Type: tool.TypeJson,
		Properties: map[string]tool.PropertySchema{
			"code": {
				Type:        tool.TypeString,
				Description: "Starlark source to execute",
			},
		},
		Required: []string{"code"},
	}
}

func (t *AnalysisTool) Strict() bool {
	return true
}

func (t *AnalysisTool) Call(ctx context.Context, input string) (string, error) {
	in := parseInput(input)
	if in.Code == "" {
		return script.ErrorPrefix + "no code provided", nil
	}
	res, err := t.eval.Execute(ctx, in.Code, nil)
	record(t.opts, "analysis", res, err)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return script.FormatError(err), nil
	}
	if res.Value == nil && res.Output == "" {
		return NoOutput, nil
	}
	return res.Text(), nil
}

func record(o *Options, name string, res *script.Result, err error) {
	if o.Recorder == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, script.ErrTimeout):
		result = "timeout"
	case errors.Is(err, script.ErrStepLimit):
		result = "step_limit"
	case err != nil:
		result = "error"
	}
	var took time.Duration
	if res != nil {
		took = res.Duration
	}
	o.Recorder.RecordScript(name, took, result)
}
