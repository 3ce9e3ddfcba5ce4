package callback

import (
	"context"
	"log/slog"

	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/schema"
)

// LogHandler writes lifecycle events to a slog logger. Prompts and LLM
// outputs are logged at debug level only.
type LogHandler struct {
	Nop
	logger *slog.Logger
}

func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) HandleLLMStart(ctx context.Context, agent, prompt string) {
	h.logger.DebugContext(ctx, "llm call", "agent", agent, "prompt_len", len(prompt))
}

func (h *LogHandler) HandleLLMEnd(ctx context.Context, agent string, output *llm.Generation) {
	if output == nil {
		return
	}
	h.logger.DebugContext(ctx, "llm reply",
		"agent", agent,
		"tokens", output.Tokens(),
		"stop_reason", output.StopReason,
		"content", output.Content)
}

func (h *LogHandler) HandleAgentActionStart(ctx context.Context, agent string, action *schema.StepAction) {
	h.logger.InfoContext(ctx, "tool call", "agent", agent, "tool", action.Action)
}

func (h *LogHandler) HandleAgentActionEnd(ctx context.Context, agent string, action *schema.StepAction) {
	h.logger.DebugContext(ctx, "tool result",
		"agent", agent,
		"tool", action.Action,
		"observation_len", len(action.Observation))
}

func (h *LogHandler) HandleStageStart(ctx context.Context, runID, stage string) {
	h.logger.InfoContext(ctx, "stage started", "run_id", runID, "stage", stage)
}

func (h *LogHandler) HandleStageEnd(ctx context.Context, e StageEvent) {
	attrs := []any{
		"run_id", e.RunID,
		"stage", e.Stage,
		"agent", e.Agent,
		"status", e.Status,
		"output_len", len(e.Output),
		"duration", e.Duration,
	}
	if e.Kind != "" {
		attrs = append(attrs, "chart_type", e.Kind)
	}
	if e.Path != "" {
		attrs = append(attrs, "saved_path", e.Path)
	}
	if e.Err != nil {
		h.logger.WarnContext(ctx, "stage failed", append(attrs, "error", e.Err.Error())...)
		return
	}
	h.logger.InfoContext(ctx, "stage completed", attrs...)
}
