package feedback

import (
	"context"

	"github.com/antgroup/datacrew/schema"
)

type Type string

const (
	Approved    Type = "Approved"
	NotApproved Type = "NotApproved"
)

// Result is the verdict of one Feedback on an agent output.
type Result struct {
	Type Type
	Msg  string
}

func approve() *Result {
	return &Result{Type: Approved}
}

func reject(msg string) *Result {
	return &Result{Type: NotApproved, Msg: msg}
}

// Feedback inspects what the agent produced in one planning step. msgs holds
// the final messages when the agent finished, actions the tool calls it
// asked for; steps is the history so far and prompt the rendered prompt.
type Feedback interface {
	Feedback(ctx context.Context, agent schema.Agent, msgs []schema.Message,
		actions []schema.StepAction, steps []schema.StepAction, prompt string) *Result
}

// Func adapts a plain function that checks the final answer text. It is
// not consulted when the agent did not finish yet.
type Func func(content string) *Result

func (f Func) Feedback(_ context.Context, _ schema.Agent, msgs []schema.Message,
	_ []schema.StepAction, _ []schema.StepAction, _ string) *Result {
	if len(msgs) == 0 {
		return approve()
	}
	return f(msgs[len(msgs)-1].Content)
}

type chain struct {
	feedbacks []Feedback
}

// Chain runs feedbacks in order and stops at the first rejection.
func Chain(feedbacks ...Feedback) Feedback {
	fds := make([]Feedback, 0, len(feedbacks))
	for _, fd := range feedbacks {
		if fd != nil {
			fds = append(fds, fd)
		}
	}
	return &chain{feedbacks: fds}
}

func (c *chain) Feedback(ctx context.Context, agent schema.Agent, msgs []schema.Message,
	actions []schema.StepAction, steps []schema.StepAction, prompt string) *Result {
	for _, fd := range c.feedbacks {
		res := fd.Feedback(ctx, agent, msgs, actions, steps, prompt)
		if res != nil && res.Type == NotApproved {
			return res
		}
	}
	return approve()
}
