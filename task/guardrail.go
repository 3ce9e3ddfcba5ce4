package task

import (
	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/feedback"
)

var guardrails = map[string]func() feedback.Feedback{
	"validate_json_output": func() feedback.Feedback { return feedback.JSON() },
	"validate_analysis_output": func() feedback.Feedback {
		return feedback.RequiredFields("summary", "insights", "metrics")
	},
	"validate_visualization_output": func() feedback.Feedback {
		return feedback.RequiredFields("chart_type", "visualization_data", "description")
	},
	"validate_handoff_output":   func() feedback.Feedback { return feedback.Handoff() },
	"validate_blueprint_output": func() feedback.Feedback { return feedback.Blueprint() },
}

// GuardrailFeedback resolves the task's guardrail name. A task without one gets nil.
func (t Task) GuardrailFeedback() (feedback.Feedback, error) {
	if t.Guardrail == "" {
		return nil, nil
	}
	g, ok := guardrails[t.Guardrail]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGuardrail, "%q in task %s", t.Guardrail, t.Name)
	}
	return g(), nil
}
