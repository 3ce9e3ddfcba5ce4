package llm

import (
	"context"
)

type GenerateOption func(*GenerateOptions)

type GenerateOptions struct {
	Model             string
	Temperature       float32
	TopP              float32
	N                 int
	MaxTokens         int
	StopWords         []string
	FrequencyPenalty  float32
	PresencePenalty   float32
	RepetitionPenalty float32
	Seed              int
	JSONMode          bool
	Tools             []Tool
	ToolChoice        any
	ParallelToolCalls *bool
	LogProbs          bool
	TopLogProbs       int
	Metadata          map[string]string

	StreamingFunc          func(ctx context.Context, chunk []byte) error
	ReasoningStreamingFunc func(ctx context.Context, chunk []byte) error
}

const (
	_defaultTemperature = 0.2
	_defaultMaxTokens   = 4096
)

func DefaultGenerateOption() *GenerateOptions {
	return &GenerateOptions{
		Temperature: _defaultTemperature,
		MaxTokens:   _defaultMaxTokens,
	}
}

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

func WithTemperature(temperature float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temperature
	}
}

func WithTopP(topP float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = topP
	}
}

func WithN(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.N = n
	}
}

func WithMaxTokens(maxTokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = maxTokens
	}
}

func WithStopWords(stopWords []string) GenerateOption {
	return func(o *GenerateOptions) {
		o.StopWords = stopWords
	}
}

func WithRepetitionPenalty(penalty float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.RepetitionPenalty = penalty
	}
}

func WithSeed(seed int) GenerateOption {
	return func(o *GenerateOptions) {
		o.Seed = seed
	}
}

// WithJSONMode asks the backend for a JSON object response.
func WithJSONMode() GenerateOption {
	return func(o *GenerateOptions) {
		o.JSONMode = true
	}
}

func WithTools(tools []Tool) GenerateOption {
	return func(o *GenerateOptions) {
		o.Tools = tools
	}
}

func WithLogProbes(logProbs bool) GenerateOption {
	return func(o *GenerateOptions) {
		o.LogProbs = logProbs
	}
}

func WithTopLogProbs(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopLogProbs = n
	}
}

func WithMetadata(metadata map[string]string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Metadata = metadata
	}
}

func WithStreamingFunc(fn func(ctx context.Context, chunk []byte) error) GenerateOption {
	return func(o *GenerateOptions) {
		o.StreamingFunc = fn
	}
}
