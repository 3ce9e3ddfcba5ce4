package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tpl, err := NewPromptTemplate("Hello {{.name}}, question: {{.question}}")
	require.NoError(t, err)
	out, err := tpl.Format(map[string]any{"name": "analyst", "question": "avg salary"})
	require.NoError(t, err)
	assert.Equal(t, "Hello analyst, question: avg salary", out)
}

func TestFormatMissingKey(t *testing.T) {
	tpl, err := NewPromptTemplate("{{.missing}}")
	require.NoError(t, err)
	_, err = tpl.Format(map[string]any{})
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	_, err := NewPromptTemplate("{{.unterminated")
	assert.Error(t, err)
}
