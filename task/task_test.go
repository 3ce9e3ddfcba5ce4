package task

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	out, err := Format("Query '{query}' uses {{braces}} and {\"k\": 1}", map[string]string{"query": "q"})
	require.NoError(t, err)
	assert.Equal(t, "Query 'q' uses {braces} and {\"k\": 1}", out)

	_, err = Format("{missing}", map[string]string{"query": "q"})
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, []string{"initial_task", "analysis_task", "visualization_task", "reporting_task"}, s.Names())

	vt, ok := s.ByStage(StageVisualize)
	require.True(t, ok)
	assert.Equal(t, []string{"analysis_task"}, vt.Context)
	assert.Equal(t, 3, vt.MaxRetries)

	at, err := s.Get("analysis_task")
	require.NoError(t, err)
	at, err = at.Format(map[string]string{"query": "reddito medio", "datasets": "REDDITO.csv"})
	require.NoError(t, err)
	assert.Contains(t, at.Description, "'reddito medio'")
	assert.Contains(t, at.Prompt(), "Expected output:\n")
	assert.Contains(t, at.Prompt(), "=== DATA FOR VISUALIZATION (CSV) ===")

	fd, err := at.GuardrailFeedback()
	require.NoError(t, err)
	assert.NotNil(t, fd)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("a:\n  description: x\n  context: [b]\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(strings.NewReader("a:\n  description: x\n  colour: red\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(strings.NewReader("a: 3\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(strings.NewReader("a:\n  agent: Analyst\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadWeakTypes(t *testing.T) {
	s, err := Load(strings.NewReader("a:\n  description: x\n  max_retries: \"4\"\n  create_directory: true\n"))
	require.NoError(t, err)
	a, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 4, a.MaxRetries)
	assert.True(t, a.CreateDirectory)

	_, err = s.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)

	bad := Task{Name: "x", Guardrail: "nope"}
	_, err = bad.GuardrailFeedback()
	assert.ErrorIs(t, err, ErrUnknownGuardrail)
}
