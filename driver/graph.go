package driver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	pkgerrors "github.com/pkg/errors"
	"github.com/thoas/go-funk"
)

// Node colors used by Render.
const (
	_pending = "gray"
	_running = "green"
	_done    = "red"
	_failed  = "orange"
)

// States understood by Render.
const (
	StatePending = "pending"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
	StateSkipped = "skipped"
)

// Stage is one node of the graph.
type Stage struct {
	Name        string
	Description string
	Deps        []string
}

// Graph is a stage dependency graph. Stages keep insertion order, which is
// also the order inside each level.
type Graph struct {
	order  []string
	stages map[string]*Stage
}

func New() *Graph {
	return &Graph{stages: make(map[string]*Stage)}
}

// AddStage registers a stage that runs after all of deps. Deps may be added
// later; Levels reports the ones never added.
func (g *Graph) AddStage(name string, deps ...string) error {
	if name == "" {
		return pkgerrors.Wrap(ErrUnknownStage, "empty stage name")
	}
	if _, ok := g.stages[name]; ok {
		return pkgerrors.Wrapf(ErrDuplicate, "stage %q", name)
	}
	g.stages[name] = &Stage{Name: name, Deps: append([]string{}, funk.UniqString(deps)...)}
	g.order = append(g.order, name)
	return nil
}

// Describe sets the description of a registered stage.
func (g *Graph) Describe(name, desc string) {
	if s, ok := g.stages[name]; ok {
		s.Description = desc
	}
}

func (g *Graph) Stage(name string) (Stage, bool) {
	s, ok := g.stages[name]
	if !ok {
		return Stage{}, false
	}
	return *s, true
}

func (g *Graph) Names() []string {
	return append([]string{}, g.order...)
}

func (g *Graph) Len() int { return len(g.order) }

// Levels layers the graph topologically. Every stage in a level depends
// only on stages of earlier levels.
func (g *Graph) Levels() ([][]string, error) {
	if len(g.order) == 0 {
		return nil, ErrEmptyGraph
	}
	for _, name := range g.order {
		for _, dep := range g.stages[name].Deps {
			if _, ok := g.stages[dep]; !ok {
				return nil, pkgerrors.Wrapf(ErrUnknownStage, "%q depends on %q", name, dep)
			}
		}
	}
	done := make(map[string]bool, len(g.order))
	levels := make([][]string, 0)
	for len(done) < len(g.order) {
		level := g.ready(done)
		if len(level) == 0 {
			rest := funk.FilterString(g.order, func(s string) bool { return !done[s] })
			return nil, pkgerrors.Wrapf(ErrCycle, "between %s", strings.Join(rest, ", "))
		}
		for _, name := range level {
			done[name] = true
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// Ready returns the stages not in done whose dependencies are all in done.
func (g *Graph) Ready(done []string) []string {
	set := make(map[string]bool, len(done))
	for _, d := range done {
		set[d] = true
	}
	return g.ready(set)
}

func (g *Graph) ready(done map[string]bool) []string {
	out := make([]string, 0)
	for _, name := range g.order {
		if done[name] {
			continue
		}
		ok := true
		for _, dep := range g.stages[name].Deps {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// ParseDOT builds a graph from a DOT digraph. An edge a -> b means b depends
// on a; node labels become stage descriptions.
func ParseDOT(src []byte) (*Graph, error) {
	parsed, err := graphviz.ParseBytes(src)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse stage graph")
	}
	defer parsed.Close()

	g := New()
	deps := make(map[string][]string)
	labels := make(map[string]string)
	names := make([]string, 0)
	node, err := parsed.FirstNode()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read stage graph")
	}
	for node != nil {
		name, err := node.Name()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "read stage name")
		}
		names = append(names, name)
		if label := node.Label(); label != "" && label != `\N` {
			labels[name] = label
		}
		edge, _ := parsed.FirstOut(node)
		for edge != nil {
			head, _ := edge.Node().Name()
			deps[head] = append(deps[head], name)
			edge, _ = parsed.NextOut(edge)
		}
		node, _ = parsed.NextNode(node)
	}
	if len(names) == 0 {
		return nil, ErrEmptyGraph
	}
	for _, name := range names {
		if err := g.AddStage(name, deps[name]...); err != nil {
			return nil, err
		}
		g.Describe(name, labels[name])
	}
	return g, nil
}

// Render draws the graph as DOT with node colors taken from states.
func (g *Graph) Render(ctx context.Context, states map[string]string) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", err
	}
	defer gv.Close()
	out, err := gv.Graph()
	if err != nil {
		return "", err
	}
	defer out.Close()

	nodes := make(map[string]*cgraph.Node, len(g.order))
	for _, name := range g.order {
		n, err := out.CreateNodeByName(name)
		if err != nil {
			return "", err
		}
		if d := g.stages[name].Description; d != "" {
			n.SetLabel(d)
		}
		n.SetColor(color(states[name]))
		nodes[name] = n
	}
	for _, name := range g.order {
		for _, dep := range g.stages[name].Deps {
			from, ok := nodes[dep]
			if !ok {
				continue
			}
			if _, err := out.CreateEdgeByName(fmt.Sprintf("%s_%s", dep, name), from, nodes[name]); err != nil {
				return "", err
			}
		}
	}
	var buf bytes.Buffer
	if err := gv.Render(ctx, out, graphviz.XDOT, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func color(state string) string {
	switch state {
	case StateRunning:
		return _running
	case StateDone:
		return _done
	case StateFailed:
		return _failed
	default:
		return _pending
	}
}
