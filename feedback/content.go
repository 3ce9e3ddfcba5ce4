package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/antgroup/datacrew/schema"
)

// ContentFeedback rejects empty answers and empty tool inputs.
type ContentFeedback struct{}

var _ Feedback = (*ContentFeedback)(nil)

func NewContentFeedback() *ContentFeedback {
	return &ContentFeedback{}
}

func (c *ContentFeedback) Feedback(_ context.Context, _ schema.Agent, msgs []schema.Message,
	actions []schema.StepAction, _ []schema.StepAction, _ string) *Result {
	for _, msg := range msgs {
		if strings.TrimSpace(msg.Content) == "" {
			return reject("the content of your final message is empty, write the answer in the 'content' field")
		}
	}
	for _, action := range actions {
		if strings.TrimSpace(action.Input) == "" {
			return reject(fmt.Sprintf("the input for action %s is empty", action.Action))
		}
	}
	return approve()
}
