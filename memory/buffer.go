package memory

import (
	"context"
	"sync"

	"github.com/antgroup/datacrew/schema"
)

var _ schema.Memory = (*Buffer)(nil)

// Buffer keeps every message of a crew run in order. A positive window
// limits Load to the most recent messages.
type Buffer struct {
	mu       sync.RWMutex
	messages []schema.Message
	window   int
}

func NewBufferMemory() *Buffer {
	return &Buffer{}
}

func NewBufferWindowMemory(window int) *Buffer {
	return &Buffer{window: window}
}

func (c *Buffer) Load(_ context.Context, filter func(index int, message schema.Message) bool) []schema.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]schema.Message, 0, len(c.messages))
	for i, message := range c.messages {
		if filter == nil || filter(i, message) {
			msgs = append(msgs, message)
		}
	}
	if len(msgs) > c.window && c.window > 0 {
		msgs = msgs[len(msgs)-c.window:]
	}
	return msgs
}

func (c *Buffer) Save(_ context.Context, msg schema.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *Buffer) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:0]
	return nil
}

func (c *Buffer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// ForStage selects the messages produced by one stage.
func ForStage(stage string) func(int, schema.Message) bool {
	return func(_ int, m schema.Message) bool {
		return m.Stage == stage
	}
}
