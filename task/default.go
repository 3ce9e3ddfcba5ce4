package task

import (
	_ "embed"
	"strings"
)

//go:embed default_tasks.yaml
var defaultTasks string

// Default returns the built-in task set.
func Default() *Set {
	s, err := Load(strings.NewReader(defaultTasks))
	if err != nil {
		panic("task: built-in tasks are invalid: " + err.Error())
	}
	return s
}
