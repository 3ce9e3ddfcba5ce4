package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/antgroup/datacrew/llm"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, chunks []string, captured *goopenai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestGenerateStreamsContent(t *testing.T) {
	var req goopenai.ChatCompletionRequest
	srv := streamServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	}, &req)
	defer srv.Close()

	client, err := New(WithToken("test"), WithBaseURL(srv.URL), WithModel("unit-model"))
	require.NoError(t, err)

	var streamed string
	gen, err := client.Generate(context.Background(), "hi",
		llm.WithJSONMode(),
		llm.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			streamed += string(chunk)
			return nil
		}))
	require.NoError(t, err)
	assert.Equal(t, "Hello", gen.Content)
	assert.Equal(t, "Hello", streamed)
	assert.Equal(t, "assistant", gen.Role)
	assert.Equal(t, "stop", gen.StopReason)
	assert.Equal(t, 5, gen.Tokens())

	assert.Equal(t, "unit-model", req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hi", req.Messages[0].Content)
}

func TestGenerateCollectsToolCalls(t *testing.T) {
	srv := streamServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"run","arguments":"{\"co"}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"de\":1}"}}]},"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer srv.Close()

	client, err := New(WithToken("test"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	gen, err := client.GenerateContent(context.Background(), []llm.Message{
		llm.NewSystemMessage("", "sys"),
		llm.NewUserMessage("", "go"),
	})
	require.NoError(t, err)
	require.Len(t, gen.ToolCalls, 1)
	assert.Equal(t, "call_1", gen.ToolCalls[0].ID)
	assert.Equal(t, "run", gen.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"code":1}`, gen.ToolCalls[0].Function.Arguments)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(WithToken(""))
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLiveGenerate(t *testing.T) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}
	client, err := New(WithToken(key), WithModel(os.Getenv("LLM_MODEL")), WithBaseURL(os.Getenv("LLM_BASE_URL")))
	require.NoError(t, err)
	gen, err := client.Generate(context.Background(), "reply with the word ok")
	require.NoError(t, err)
	assert.NotEmpty(t, gen.Content)
}

func TestRequestRejectsUnknownToolType(t *testing.T) {
	client, err := New(WithToken("test"))
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hi", llm.WithTools([]llm.Tool{{Type: "retrieval"}}))
	assert.ErrorContains(t, err, "unsupported tool type")
}

func TestNewDefaults(t *testing.T) {
	client, err := New(WithToken("test"), WithModel(""), WithBaseURL(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())
}
