package llm

import (
	"context"
)

// LLM is the interface all language model backends implement.
type LLM interface {
	// Generate sends a single user prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Generation, error)
	// GenerateContent sends a full conversation.
	GenerateContent(ctx context.Context, messages []Message, options ...GenerateOption) (*Generation, error)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role
	Name       string
	Content    string
	ToolCallId string
	ToolCalls  []ToolCall
}

func NewSystemMessage(name, content string) Message {
	return Message{Role: RoleSystem, Name: name, Content: content}
}

func NewUserMessage(name, content string) Message {
	return Message{Role: RoleUser, Name: name, Content: content}
}

func NewAssistantMessage(name, content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content, ToolCalls: toolCalls}
}

func NewToolMessage(toolCallId, content string) Message {
	return Message{Role: RoleTool, ToolCallId: toolCallId, Content: content}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generation is the output of a single generation.
type Generation struct {
	Role             string
	Content          string
	ReasoningContent string
	StopReason       string
	ToolCalls        []ToolCall
	Usage            *Usage
}

// Tokens returns the total token cost, zero when the backend reported no usage.
func (g *Generation) Tokens() int {
	if g == nil || g.Usage == nil {
		return 0
	}
	return g.Usage.TotalTokens
}

type Tool struct {
	Type     string
	Function *FunctionDefinition
}

type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  any
	Strict      bool
}

type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function,omitempty"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
