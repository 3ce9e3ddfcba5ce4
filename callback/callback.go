package callback

import (
	"context"
	"time"

	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/schema"
)

// StageEvent describes a finished crew stage.
type StageEvent struct {
	RunID    string
	Stage    string
	Agent    string
	Output   string
	Status   string
	Kind     string
	Path     string
	Duration time.Duration
	Err      error
}

// Handler receives crew, agent and LLM lifecycle events. Implementations
// must be safe for concurrent use since stages of one level run in parallel.
type Handler interface {
	HandleLLMStart(ctx context.Context, agent, prompt string)
	HandleLLMEnd(ctx context.Context, agent string, output *llm.Generation)
	HandleStreamingFunc(ctx context.Context, chunk []byte) error

	HandleAgentActionStart(ctx context.Context, agent string, action *schema.StepAction)
	HandleAgentActionEnd(ctx context.Context, agent string, action *schema.StepAction)

	HandleStageStart(ctx context.Context, runID, stage string)
	HandleStageEnd(ctx context.Context, event StageEvent)
}

// Nop ignores every event. Embed it to implement only some hooks.
type Nop struct{}

var _ Handler = Nop{}

func (Nop) HandleLLMStart(context.Context, string, string)                       {}
func (Nop) HandleLLMEnd(context.Context, string, *llm.Generation)                {}
func (Nop) HandleStreamingFunc(context.Context, []byte) error                    { return nil }
func (Nop) HandleAgentActionStart(context.Context, string, *schema.StepAction) {}
func (Nop) HandleAgentActionEnd(context.Context, string, *schema.StepAction)   {}
func (Nop) HandleStageStart(context.Context, string, string)                     {}
func (Nop) HandleStageEnd(context.Context, StageEvent)                           {}

type multi []Handler

// Multi fans events out to every handler in order. The first streaming
// error is returned.
func Multi(handlers ...Handler) Handler {
	hs := make(multi, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return hs
}

func (m multi) HandleLLMStart(ctx context.Context, agent, prompt string) {
	for _, h := range m {
		h.HandleLLMStart(ctx, agent, prompt)
	}
}

func (m multi) HandleLLMEnd(ctx context.Context, agent string, output *llm.Generation) {
	for _, h := range m {
		h.HandleLLMEnd(ctx, agent, output)
	}
}

func (m multi) HandleStreamingFunc(ctx context.Context, chunk []byte) error {
	var first error
	for _, h := range m {
		if err := h.HandleStreamingFunc(ctx, chunk); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multi) HandleAgentActionStart(ctx context.Context, agent string, action *schema.StepAction) {
	for _, h := range m {
		h.HandleAgentActionStart(ctx, agent, action)
	}
}

func (m multi) HandleAgentActionEnd(ctx context.Context, agent string, action *schema.StepAction) {
	for _, h := range m {
		h.HandleAgentActionEnd(ctx, agent, action)
	}
}

func (m multi) HandleStageStart(ctx context.Context, runID, stage string) {
	for _, h := range m {
		h.HandleStageStart(ctx, runID, stage)
	}
}

func (m multi) HandleStageEnd(ctx context.Context, event StageEvent) {
	for _, h := range m {
		h.HandleStageEnd(ctx, event)
	}
}
