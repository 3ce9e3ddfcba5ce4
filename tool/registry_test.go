package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{ name string }

func (e echoTool) Name() string              { return e.name }
func (e echoTool) Description() string       { return "echo" }
func (e echoTool) Schema() *PropertiesSchema { return nil }
func (e echoTool) Strict() bool              { return false }
func (e echoTool) Call(_ context.Context, input string) (string, error) {
	return input, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("analysis", echoTool{"a"}, TaskAnalysis)
	r.Register("plot", echoTool{"p"}, TaskVisualization)

	got, err := r.Get("analysis")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)

	assert.Len(t, r.ForTask(TaskAnalysis), 1)
	assert.Len(t, r.ForTask(TaskVisualization), 1)
	assert.Len(t, r.ForTask(TaskBoth), 2)
	assert.Nil(t, r.ForTask("other"))

	tools, err := r.GetByNames("plot", "analysis")
	require.NoError(t, err)
	assert.Equal(t, "p", tools[0].Name())
	assert.Len(t, r.All(), 2)
}
