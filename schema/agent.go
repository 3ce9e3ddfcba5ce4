package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/tool"
)

// StepFeedback is a correction for the agent's last output.
type StepFeedback struct {
	Feedback string `json:"feedback"`
	Log      string
}

// StepAction is the agent's action to take.
type StepAction struct {
	Id          string `json:"id"`
	Action      string `json:"action"`
	Thought     string `json:"thought"`
	Input       string `json:"input"`
	Feedback    string `json:"feedback"`
	Log         string `json:"log"`
	Observation string `json:"observation"`
}

// Generation is the output of a single agent run.
type Generation struct {
	Messages    []Message
	Steps       []StepAction
	TotalTokens int
}

// Final returns the content of the last message, or "" when there is none.
func (g *Generation) Final() string {
	if g == nil || len(g.Messages) == 0 {
		return ""
	}
	return g.Messages[len(g.Messages)-1].Content
}

// Agent is the interface all agents must implement.
type Agent interface {
	Run(ctx context.Context, messages []Message, opts ...llm.GenerateOption) (*Generation, error)

	Name() string

	Description() string

	Tools() []tool.Tool
}

// Memory stores the messages exchanged by a crew.
type Memory interface {
	Load(ctx context.Context, filter func(index int, message Message) bool) []Message

	Save(ctx context.Context, msg Message) error

	Clear(ctx context.Context) error
}

var (
	ErrMissingLLM          = errors.New("missing field LLM")
	ErrMissingPrompt       = errors.New("missing fill in prompt")
	ErrMissingName         = errors.New("missing agent name")
	ErrMissingDesc         = errors.New("missing agent desc")
	ErrAgentNoReturn       = errors.New("no actions or finish was returned by the agent")
	ErrNotFinished         = errors.New("agent not finished before max iterations")
	ErrParsePromptTemplate = errors.New("parse prompt template error")
	ErrNoMessages          = errors.New("agent called without messages")
)

// ScratchPad renders earlier crew messages followed by the steps of the
// current run. Messages sent by agent are attributed to "me".
func ScratchPad(agent string, messages []Message, steps []StepAction) string {
	var sb strings.Builder
	for _, m := range messages {
		if !m.IsMsg() && !m.IsEnd() {
			continue
		}
		sender := m.Sender
		if strings.EqualFold(sender, agent) {
			sender = "me"
		}
		if m.Stage != "" {
			fmt.Fprintf(&sb, "[%s] ", m.Stage)
		}
		fmt.Fprintf(&sb, "%s: %s\n", sender, m.Content)
	}
	for i, step := range steps {
		if step.Feedback != "" {
			fmt.Fprintf(&sb, "Rejected output: %s\nFeedback: %s\n", step.Log, step.Feedback)
			continue
		}
		fmt.Fprintf(&sb, "Step %d\nThought: %s\nAction: %s\nAction Input: %s\nObservation: %s\n",
			i+1, step.Thought, step.Action, step.Input, step.Observation)
	}
	return sb.String()
}

func ToolNames(tools []tool.Tool) string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return strings.Join(names, ", ")
}

// ToolDescriptions lists one "- name: description" line per tool.
func ToolDescriptions(tools []tool.Tool) string {
	var sb strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), t.Description())
	}
	return sb.String()
}
