package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/llm/llmtest"
	"github.com/antgroup/datacrew/schema"
	"github.com/antgroup/datacrew/tool"
)

type echoTool struct{}

var _ tool.Tool = echoTool{}

func (echoTool) Name() string                    { return "Echo" }
func (echoTool) Description() string             { return "echoes its input" }
func (echoTool) Schema() *tool.PropertiesSchema { return &tool.PropertiesSchema{Type: tool.TypeJson} }
func (echoTool) Strict() bool                    { return false }
func (echoTool) Call(_ context.Context, input string) (string, error) {
	return "echo: " + input, nil
}

type actionRecorder struct {
	callback.Nop
	mu      sync.Mutex
	actions []string
}

func (r *actionRecorder) HandleAgentActionEnd(_ context.Context, _ string, a *schema.StepAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a.Action+"="+a.Observation)
}

func question(content string) []schema.Message {
	return []schema.Message{schema.NewUserMessage("test", content)}
}

func TestBaseAgentToolThenFinish(t *testing.T) {
	client := llmtest.Texts(
		`{"thought": "call", "action": "echo", "input": {"code": "x"}}`,
		`{"cate": "END", "thought": "done", "content": "final answer"}`,
	)
	rec := &actionRecorder{}
	base, err := NewBaseAgent(
		WithLLM(client),
		WithName("test"),
		WithDesc("test"),
		WithTools([]tool.Tool{echoTool{}}),
		WithCallback(rec))
	require.NoError(t, err)

	gen, err := base.Run(context.Background(), question("what?"))
	require.NoError(t, err)
	assert.Equal(t, "final answer", gen.Final())
	require.Len(t, gen.Steps, 1)
	assert.Equal(t, `echo: {"code":"x"}`, gen.Steps[0].Observation)
	assert.Equal(t, []string{`echo=echo: {"code":"x"}`}, rec.actions)

	prompts := client.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "- Echo: echoes its input")
	assert.Contains(t, prompts[1], `Observation: echo: {"code":"x"}`)
}

func TestBaseAgentParseFeedbackThenFinish(t *testing.T) {
	client := llmtest.Texts(
		`{"cate": "weird", "content": "x"}`,
		`{"cate": "END", "content": "ok"}`,
	)
	base, err := NewBaseAgent(WithLLM(client), WithName("a"), WithDesc("d"))
	require.NoError(t, err)
	gen, err := base.Run(context.Background(), question("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", gen.Final())
	assert.Contains(t, client.Prompts()[1], "parse output failed with error")
}

func TestBaseAgentRetriesExceeded(t *testing.T) {
	client := llmtest.Texts(
		`{"cate": "END", "content": ""}`,
		`{"cate": "END", "content": " "}`,
	)
	base, err := NewBaseAgent(WithLLM(client), WithName("a"), WithDesc("d"), WithMaxRetries(1))
	require.NoError(t, err)
	_, err = base.Run(context.Background(), question("q"))
	assert.ErrorIs(t, err, ErrRetriesExceeded)
}

func TestBaseAgentNotFinished(t *testing.T) {
	client := llmtest.Texts(
		`{"action": "Echo", "input": "1"}`,
		`{"action": "Echo", "input": "2"}`,
	)
	base, err := NewBaseAgent(WithLLM(client), WithName("a"), WithDesc("d"),
		WithTools([]tool.Tool{echoTool{}}), WithMaxIterations(2))
	require.NoError(t, err)
	_, err = base.Run(context.Background(), question("q"))
	assert.ErrorIs(t, err, schema.ErrNotFinished)
}

func TestBaseAgentUnknownTool(t *testing.T) {
	client := llmtest.Texts(
		`{"action": "Nope", "input": "1"}`,
		`{"cate": "END", "content": "gave up"}`,
	)
	base, err := NewBaseAgent(WithLLM(client), WithName("a"), WithDesc("d"),
		WithTools([]tool.Tool{echoTool{}}))
	require.NoError(t, err)
	gen, err := base.Run(context.Background(), question("q"))
	require.NoError(t, err)
	assert.Contains(t, gen.Steps[0].Observation, "Nope is not a valid tool")
}

func TestNewBaseAgentValidation(t *testing.T) {
	_, err := NewBaseAgent(WithName("a"), WithDesc("d"))
	assert.ErrorIs(t, err, schema.ErrMissingLLM)
	_, err = NewBaseAgent(WithLLM(llmtest.Texts()), WithDesc("d"))
	assert.ErrorIs(t, err, schema.ErrMissingName)
	_, err = NewBaseAgent(WithLLM(llmtest.Texts()), WithName("a"))
	assert.ErrorIs(t, err, schema.ErrMissingDesc)
}

func TestParseOutput(t *testing.T) {
	gen := func(s string) *llm.Generation { return &llm.Generation{Content: s} }

	actions, msgs, err := parseOutput("a", gen("```json\n{\"action\": \"Echo\", \"input\": \"hi\"}\n```"))
	require.NoError(t, err)
	assert.Nil(t, msgs)
	assert.Equal(t, "hi", actions[0].Input)

	_, msgs, err = parseOutput("a", gen("Plain prose answer.\n=== DATA FOR VISUALIZATION (CSV) ===\na,b\n1,2"))
	require.NoError(t, err)
	assert.True(t, msgs[0].IsEnd())
	assert.True(t, strings.HasPrefix(msgs[0].Content, "Plain prose"))

	_, msgs, err = parseOutput("a", gen(`{"visualization_type": "none", "description": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"visualization_type": "none", "description": "x"}`, msgs[0].Content)

	_, msgs, err = parseOutput("a", gen(`{"cate": "end", "content": {"k": 1}, "receiver": ["x", "y"]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, msgs[0].Content)
	assert.Equal(t, "x,y", msgs[0].Receiver)
	assert.Equal(t, schema.MsgTypeEnd, msgs[0].Type)

	_, msgs, err = parseOutput("a", gen(`[{"region": "Lazio"}]`))
	require.NoError(t, err)
	assert.Equal(t, `[{"region": "Lazio"}]`, msgs[0].Content)

	actions, _, err = parseOutput("a", gen(`[{"action": "A", "input": "1"}, {"action": "B", "input": "2"}]`))
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	_, _, err = parseOutput("a", gen(`{"action": "A", "input": `))
	assert.Error(t, err)

	_, _, err = parseOutput("a", gen("  "))
	assert.Error(t, err)
}
