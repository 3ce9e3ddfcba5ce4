// Package openai is the chat backend of the crew. It speaks the OpenAI
// streaming protocol, which the Gemini compatibility gateway also serves.
package openai

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/antgroup/datacrew/llm"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

type LLM struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLM = (*LLM)(nil)

// New builds a client. It fails only when no token is given.
func New(opts ...Option) (*LLM, error) {
	o := options{model: DefaultModel, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}
	cfg := goopenai.DefaultConfig(o.token)
	cfg.BaseURL = o.baseURL
	cfg.OrgID = o.organization
	switch {
	case o.httpClient != nil:
		cfg.HTTPClient = o.httpClient
	case o.timeout > 0:
		cfg.HTTPClient = &http.Client{Timeout: o.timeout}
	}
	return &LLM{client: goopenai.NewClientWithConfig(cfg), model: o.model}, nil
}

func (l *LLM) Model() string {
	return l.model
}

func (l *LLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Generation, error) {
	return l.GenerateContent(ctx, []llm.Message{llm.NewUserMessage("", prompt)}, options...)
}

// GenerateContent streams one chat completion and folds the chunks into a
// single generation. Streaming callbacks see every non-empty delta.
func (l *LLM) GenerateContent(ctx context.Context, messages []llm.Message, options ...llm.GenerateOption) (*llm.Generation, error) {
	opts := llm.DefaultGenerateOption()
	for _, opt := range options {
		opt(opts)
	}
	req, err := l.request(messages, opts)
	if err != nil {
		return nil, err
	}

	stream, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "chat completion with %s", req.Model)
	}
	defer stream.Close()

	acc := accumulator{gen: &llm.Generation{Usage: &llm.Usage{}}, opts: opts}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return acc.gen, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read completion stream")
		}
		acc.add(ctx, chunk)
	}
}

func (l *LLM) request(messages []llm.Message, opts *llm.GenerateOptions) (goopenai.ChatCompletionRequest, error) {
	model := l.model
	if opts.Model != "" {
		model = opts.Model
	}
	req := goopenai.ChatCompletionRequest{
		Model:               model,
		Messages:            chatMessages(messages),
		Stream:              true,
		StreamOptions:       &goopenai.StreamOptions{IncludeUsage: true},
		Stop:                opts.StopWords,
		Temperature:         opts.Temperature,
		TopP:                opts.TopP,
		N:                   opts.N,
		FrequencyPenalty:    opts.FrequencyPenalty,
		PresencePenalty:     opts.PresencePenalty,
		MaxCompletionTokens: opts.MaxTokens,
		ToolChoice:          opts.ToolChoice,
		LogProbs:            opts.LogProbs,
		TopLogProbs:         opts.TopLogProbs,
		Metadata:            opts.Metadata,
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}
	if opts.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, t := range opts.Tools {
		if t.Type != string(goopenai.ToolTypeFunction) || t.Function == nil {
			return req, errors.Errorf("unsupported tool type %q", t.Type)
		}
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
				Strict:      t.Function.Strict,
			},
		})
	}
	// Gemini rejects parallel_tool_calls on requests without tools.
	if len(req.Tools) > 0 {
		req.ParallelToolCalls = opts.ParallelToolCalls
	}
	return req, nil
}

func chatMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			Content:    m.Content,
			ToolCallID: m.ToolCallId,
		}
		for _, c := range m.ToolCalls {
			call := goopenai.ToolCall{ID: c.ID, Type: goopenai.ToolType(c.Type)}
			if c.Function != nil {
				call.Function = goopenai.FunctionCall{Name: c.Function.Name, Arguments: c.Function.Arguments}
			}
			out[i].ToolCalls = append(out[i].ToolCalls, call)
		}
	}
	return out
}

// accumulator merges stream chunks. Tool call fragments are keyed by
// their index and concatenated in arrival order.
type accumulator struct {
	gen  *llm.Generation
	opts *llm.GenerateOptions
}

func (a *accumulator) add(ctx context.Context, chunk goopenai.ChatCompletionStreamResponse) {
	if u := chunk.Usage; u != nil {
		a.gen.Usage.PromptTokens = u.PromptTokens
		a.gen.Usage.CompletionTokens = u.CompletionTokens
		a.gen.Usage.TotalTokens = u.TotalTokens
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.gen.StopReason = string(choice.FinishReason)
	}
	delta := choice.Delta
	if delta.Role != "" {
		a.gen.Role = delta.Role
	}
	a.gen.Content += delta.Content
	a.gen.ReasoningContent += delta.ReasoningContent
	if delta.Content != "" && a.opts.StreamingFunc != nil {
		_ = a.opts.StreamingFunc(ctx, []byte(delta.Content))
	}
	if delta.ReasoningContent != "" && a.opts.ReasoningStreamingFunc != nil {
		_ = a.opts.ReasoningStreamingFunc(ctx, []byte(delta.ReasoningContent))
	}
	for pos, c := range delta.ToolCalls {
		a.toolCall(pos, c)
	}
}

func (a *accumulator) toolCall(pos int, c goopenai.ToolCall) {
	idx := pos
	if c.Index != nil {
		idx = *c.Index
	}
	for len(a.gen.ToolCalls) <= idx {
		a.gen.ToolCalls = append(a.gen.ToolCalls, llm.ToolCall{Function: &llm.FunctionCall{}})
	}
	call := &a.gen.ToolCalls[idx]
	if c.ID != "" {
		call.ID = c.ID
	}
	if c.Type != "" {
		call.Type = string(c.Type)
	}
	call.Function.Name += c.Function.Name
	call.Function.Arguments += c.Function.Arguments
}
