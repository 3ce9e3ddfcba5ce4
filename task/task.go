// Package task loads the crew's task definitions from YAML.
package task

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	StageInitial   = "initial"
	StageAnalyze   = "analyze"
	StageVisualize = "visualize"
	StageReport    = "report"
)

// Task is one unit of work assigned to an agent. Description and
// ExpectedOutput may contain {name} placeholders filled by Format.
type Task struct {
	Name            string   `mapstructure:"name"`
	Description     string   `mapstructure:"description"`
	ExpectedOutput  string   `mapstructure:"expected_output"`
	Agent           string   `mapstructure:"agent"`
	Stage           string   `mapstructure:"stage"`
	Context         []string `mapstructure:"context"`
	Guardrail       string   `mapstructure:"guardrail"`
	Callback        string   `mapstructure:"callback"`
	MaxRetries      int      `mapstructure:"max_retries"`
	OutputFile      string   `mapstructure:"output_file"`
	CreateDirectory bool     `mapstructure:"create_directory"`
}

// Set holds tasks in file order.
type Set struct {
	names []string
	tasks map[string]Task
}

// Load reads a YAML document mapping task names to definitions.
func Load(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read tasks")
	}
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse tasks yaml")
	}
	set := &Set{tasks: make(map[string]Task, len(doc))}
	for _, item := range doc {
		name := fmt.Sprint(item.Key)
		fields, ok := normalize(item.Value).(map[string]any)
		if !ok {
			return nil, errors.Wrapf(ErrInvalid, "%s: want a mapping", name)
		}
		var t Task
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &t,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(fields); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "%s: %v", name, err)
		}
		if t.Name == "" {
			t.Name = name
		}
		if strings.TrimSpace(t.Description) == "" {
			return nil, errors.Wrapf(ErrInvalid, "%s: description is required", name)
		}
		if _, dup := set.tasks[t.Name]; dup {
			return nil, errors.Wrapf(ErrInvalid, "%s: defined twice", t.Name)
		}
		set.names = append(set.names, t.Name)
		set.tasks[t.Name] = t
	}
	for _, name := range set.names {
		for _, dep := range set.tasks[name].Context {
			if _, ok := set.tasks[dep]; !ok {
				return nil, errors.Wrapf(ErrInvalid, "%s: context names unknown task %q", name, dep)
			}
		}
	}
	return set, nil
}

// LoadFile reads tasks from path; an empty path yields the built-in set.
func LoadFile(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open tasks file")
	}
	defer f.Close()
	return Load(f)
}

// normalize turns yaml.v2 maps into map[string]any recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case yaml.MapSlice:
		m := make(map[string]any, len(x))
		for _, item := range x {
			m[fmt.Sprint(item.Key)] = normalize(item.Value)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Set) Get(name string) (Task, error) {
	t, ok := s.tasks[name]
	if !ok {
		return Task{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return t, nil
}

// ByStage returns the first task bound to stage.
func (s *Set) ByStage(stage string) (Task, bool) {
	for _, name := range s.names {
		if t := s.tasks[name]; strings.EqualFold(t.Stage, stage) {
			return t, true
		}
	}
	return Task{}, false
}

// Format fills the placeholders of description and expected output.
func (t Task) Format(inputs map[string]string) (Task, error) {
	var err error
	out := t
	if out.Description, err = Format(t.Description, inputs); err != nil {
		return Task{}, errors.Wrapf(err, "task %s description", t.Name)
	}
	if out.ExpectedOutput, err = Format(t.ExpectedOutput, inputs); err != nil {
		return Task{}, errors.Wrapf(err, "task %s expected_output", t.Name)
	}
	return out, nil
}

// Prompt is the message handed to the agent: the description, then the
// expected output when one is defined.
func (t Task) Prompt() string {
	if strings.TrimSpace(t.ExpectedOutput) == "" {
		return strings.TrimSpace(t.Description)
	}
	return strings.TrimSpace(t.Description) + "\n\nExpected output:\n" + strings.TrimSpace(t.ExpectedOutput)
}

// Format replaces {name} with inputs[name]. {{ and }} produce literal
// braces; braces around anything that is not an identifier are kept.
func Format(text string, inputs map[string]string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 || !isIdent(text[i+1:i+1+end]) {
				sb.WriteByte(c)
				continue
			}
			key := text[i+1 : i+1+end]
			v, ok := inputs[key]
			if !ok {
				return "", errors.Wrapf(ErrMissingInput, "{%s} (have %s)", key, strings.Join(keys(inputs), ", "))
			}
			sb.WriteString(v)
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
