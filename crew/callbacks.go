package crew

import (
	"context"
	"log/slog"
	"strings"

	"github.com/antgroup/datacrew/blueprint"
	"github.com/antgroup/datacrew/handoff"
	utilsjson "github.com/antgroup/datacrew/utils/json"
)

// TaskOutput is passed to task callbacks after a task succeeds.
type TaskOutput struct {
	RunID string
	Task  string
	Stage string
	Agent string
	Raw   string
}

// TaskCallback is a hook a task names by its callback field.
type TaskCallback func(ctx context.Context, out TaskOutput)

// builtinCallbacks are always available to task definitions.
func builtinCallbacks(logger *slog.Logger) map[string]TaskCallback {
	logCompletion := func(ctx context.Context, out TaskOutput) {
		format := "raw text"
		if utilsjson.Valid(strings.TrimSpace(out.Raw)) {
			format = "json"
		}
		logger.InfoContext(ctx, "task completed",
			"run_id", out.RunID,
			"task", out.Task,
			"agent", out.Agent,
			"format", format,
			"output_len", len(out.Raw))
	}
	return map[string]TaskCallback{
		"log_task_completion": logCompletion,
		"track_analysis_completion": func(ctx context.Context, out TaskOutput) {
			logCompletion(ctx, out)
			h, err := handoff.Parse(out.Raw)
			if err != nil {
				logger.WarnContext(ctx, "analysis handoff unreadable", "task", out.Task, "error", err.Error())
				return
			}
			t, err := h.Table()
			if err != nil {
				logger.InfoContext(ctx, "analysis produced no data", "task", out.Task, "reason", h.Reason())
				return
			}
			logger.InfoContext(ctx, "analysis produced data",
				"task", out.Task,
				"rows", t.Len(),
				"columns", len(t.Columns()))
		},
		"track_visualization_completion": func(ctx context.Context, out TaskOutput) {
			logCompletion(ctx, out)
			bp, err := blueprint.Parse(out.Raw)
			if err != nil {
				logger.WarnContext(ctx, "blueprint unreadable", "task", out.Task, "error", err.Error())
				return
			}
			logger.InfoContext(ctx, "visualization planned",
				"task", out.Task,
				"chart_type", bp.VisualizationType)
		},
	}
}
