package llm

import (
	"context"

	"github.com/antgroup/datacrew/utils/ratelimit"
)

type limited struct {
	LLM
	bucket *ratelimit.TokenBucket
}

// WithRateLimit wraps l so every call first waits for a token from bucket.
func WithRateLimit(l LLM, bucket *ratelimit.TokenBucket) LLM {
	if bucket == nil {
		return l
	}
	return &limited{LLM: l, bucket: bucket}
}

func (l *limited) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Generation, error) {
	if err := l.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return l.LLM.Generate(ctx, prompt, options...)
}

func (l *limited) GenerateContent(ctx context.Context, messages []Message, options ...GenerateOption) (*Generation, error) {
	if err := l.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return l.LLM.GenerateContent(ctx, messages, options...)
}
