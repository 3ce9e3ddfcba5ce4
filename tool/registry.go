package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thoas/go-funk"
)

// Task kinds tools are grouped by.
const (
	TaskAnalysis      = "analysis"
	TaskVisualization = "visualization"
	TaskBoth          = "both"
)

// Registry holds named tools and the task kinds they serve.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	kinds map[string][]string
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		kinds: make(map[string][]string),
	}
}

// Register adds t under name and tags it with the given task kinds.
func (r *Registry) Register(name string, t Tool, kinds ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	for _, k := range kinds {
		if !funk.ContainsString(r.kinds[k], name) {
			r.kinds[k] = append(r.kinds[k], name)
		}
	}
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found in the registry", name)
	}
	return t, nil
}

func (r *Registry) GetByNames(names ...string) ([]Tool, error) {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		t, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// ForTask returns the tools serving a task kind; "both" merges analysis and
// visualization. Unknown kinds yield nil.
func (r *Registry) ForTask(kind string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch strings.ToLower(kind) {
	case TaskBoth:
		names = funk.UniqString(append(append([]string{}, r.kinds[TaskAnalysis]...), r.kinds[TaskVisualization]...))
	default:
		names = r.kinds[strings.ToLower(kind)]
	}
	if len(names) == 0 {
		return nil
	}
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}
