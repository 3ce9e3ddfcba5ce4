package prompt

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Template renders agent prompts. Variables use the `{{.name}}` syntax and
// every referenced variable must be supplied.
type Template interface {
	Format(inputs map[string]any) (string, error)
}

type textTemplate struct {
	tpl *template.Template
}

func NewPromptTemplate(text string) (Template, error) {
	tpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse prompt template")
	}
	return &textTemplate{tpl: tpl}, nil
}

func (t *textTemplate) Format(inputs map[string]any) (string, error) {
	var sb strings.Builder
	if err := t.tpl.Execute(&sb, inputs); err != nil {
		return "", errors.Wrap(err, "format prompt template")
	}
	return sb.String(), nil
}
