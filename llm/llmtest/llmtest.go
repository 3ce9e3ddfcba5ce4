// Package llmtest provides a scripted LLM for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/antgroup/datacrew/llm"
)

var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one canned response. Match, when set, must be contained in the
// prompt for the reply to be picked.
type Reply struct {
	Match   string
	Content string
	Err     error
}

// Scripted returns canned replies in order, optionally selecting by prompt substring.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

var _ llm.LLM = (*Scripted)(nil)

func New(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Texts builds a Scripted LLM from plain contents.
func Texts(contents ...string) *Scripted {
	replies := make([]Reply, 0, len(contents))
	for _, c := range contents {
		replies = append(replies, Reply{Content: c})
	}
	return New(replies...)
}

func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *Scripted) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Generation, error) {
	return s.GenerateContent(ctx, []llm.Message{llm.NewUserMessage("", prompt)}, options...)
}

func (s *Scripted) GenerateContent(ctx context.Context, messages []llm.Message, _ ...llm.GenerateOption) (*llm.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	prompt := sb.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	for i, r := range s.replies {
		if r.Match != "" && !strings.Contains(prompt, r.Match) {
			continue
		}
		s.replies = append(s.replies[:i], s.replies[i+1:]...)
		if r.Err != nil {
			return nil, r.Err
		}
		return &llm.Generation{
			Role:    string(llm.RoleAssistant),
			Content: r.Content,
			Usage:   &llm.Usage{TotalTokens: len(r.Content) / 4},
		}, nil
	}
	return nil, ErrExhausted
}

// Prompts returns every prompt seen so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Remaining reports how many replies were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
