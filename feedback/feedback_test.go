package feedback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antgroup/datacrew/schema"
)

func final(content string) []schema.Message {
	return []schema.Message{{Type: schema.MsgTypeEnd, Content: content}}
}

func check(fd Feedback, content string) *Result {
	return fd.Feedback(context.Background(), nil, final(content), nil, nil, "")
}

func TestChainStopsAtFirstRejection(t *testing.T) {
	calls := 0
	counting := Func(func(string) *Result {
		calls++
		return approve()
	})
	fd := Chain(JSON(), nil, counting)
	res := check(fd, "not json")
	assert.Equal(t, NotApproved, res.Type)
	assert.Equal(t, 0, calls)

	res = check(fd, `{"a": 1}`)
	assert.Equal(t, Approved, res.Type)
	assert.Equal(t, 1, calls)
}

func TestFuncSkipsUnfinished(t *testing.T) {
	res := JSON().Feedback(context.Background(), nil, nil,
		[]schema.StepAction{{Action: "x", Input: "y"}}, nil, "")
	assert.Equal(t, Approved, res.Type)
}

func TestContentFeedback(t *testing.T) {
	fd := NewContentFeedback()
	assert.Equal(t, NotApproved, check(fd, "  ").Type)
	assert.Equal(t, Approved, check(fd, "ok").Type)

	res := fd.Feedback(context.Background(), nil, nil,
		[]schema.StepAction{{Action: "exec"}}, nil, "")
	assert.Equal(t, NotApproved, res.Type)
	assert.Contains(t, res.Msg, "exec")
}

func TestRequiredFields(t *testing.T) {
	fd := RequiredFields("summary", "insights")
	res := check(fd, "```json\n{\"summary\": \"s\"}\n```")
	assert.Equal(t, NotApproved, res.Type)
	assert.Equal(t, "Output is missing the following required fields: insights", res.Msg)
	assert.Equal(t, Approved, check(fd, `{"summary": "s", "insights": []}`).Type)
}

func TestHandoffGuardrail(t *testing.T) {
	fd := Handoff()
	assert.Equal(t, Approved, check(fd, "Only prose, no data.").Type)
	assert.Equal(t, Approved, check(fd, "Summary\n=== DATA FOR VISUALIZATION (CSV) ===\na,b\n1,2\n").Type)

	dup := "S\n=== DATA FOR VISUALIZATION (CSV) ===\na\n1\n=== DATA FOR VISUALIZATION (CSV) ===\na\n2\n"
	assert.Equal(t, NotApproved, check(fd, dup).Type)

	bad := "S\n=== DATA FOR VISUALIZATION (CSV) ===\na\n1,2\n"
	assert.Equal(t, NotApproved, check(fd, bad).Type)

	empty := "=== DATA FOR VISUALIZATION (CSV) ===\na\n1\n"
	assert.Equal(t, NotApproved, check(fd, empty).Type)
}

func TestBlueprintGuardrail(t *testing.T) {
	fd := Blueprint()
	assert.Equal(t, Approved, check(fd, `{"visualization_type": "none", "python_code_to_generate_figure": null, "data_for_visualization": null, "plot_parameters": null, "description": "single number"}`).Type)
	res := check(fd, `{"visualization_type": "bar", "description": "d"}`)
	assert.Equal(t, NotApproved, res.Type)
	assert.Equal(t, NotApproved, check(fd, "nope").Type)
}
