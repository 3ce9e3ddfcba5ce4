package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antgroup/datacrew/schema"
)

func TestBufferWindow(t *testing.T) {
	ctx := context.Background()
	buf := NewBufferWindowMemory(2)
	for _, c := range []string{"a", "b", "c"} {
		assert.Nil(t, buf.Save(ctx, schema.Message{Type: schema.MsgTypeMsg, Content: c}))
	}
	msgs := buf.Load(ctx, nil)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, 3, buf.Len())

	assert.Nil(t, buf.Clear(ctx))
	assert.Empty(t, buf.Load(ctx, nil))
}

func TestBufferForStage(t *testing.T) {
	ctx := context.Background()
	buf := NewBufferMemory()
	_ = buf.Save(ctx, schema.Message{Stage: "analyze", Content: "x"})
	_ = buf.Save(ctx, schema.Message{Stage: "visualize", Content: "y"})
	msgs := buf.Load(ctx, ForStage("visualize"))
	assert.Len(t, msgs, 1)
	assert.Equal(t, "y", msgs[0].Content)
}
