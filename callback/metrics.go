package callback

import (
	"context"

	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/metrics"
)

// MetricsHandler feeds stage and LLM events into a metrics.Recorder.
type MetricsHandler struct {
	Nop
	recorder *metrics.Recorder
}

func NewMetricsHandler(recorder *metrics.Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

func (h *MetricsHandler) HandleLLMEnd(_ context.Context, agent string, output *llm.Generation) {
	h.recorder.RecordLLM(agent, output.Tokens())
}

func (h *MetricsHandler) HandleStageEnd(_ context.Context, e StageEvent) {
	h.recorder.RecordStage(e.Stage, e.Duration, e.Status)
}
