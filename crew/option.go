package crew

import (
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/driver"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/metrics"
	"github.com/antgroup/datacrew/report"
	"github.com/antgroup/datacrew/schema"
	"github.com/antgroup/datacrew/task"
)

type Process string

const (
	ProcessSequential   Process = "sequential"
	ProcessHierarchical Process = "hierarchical"
)

func ParseProcess(s string) (Process, error) {
	switch p := Process(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProcessSequential, nil
	case ProcessSequential, ProcessHierarchical:
		return p, nil
	default:
		return "", errors.Wrapf(ErrUnknownProcess, "%q", s)
	}
}

type Option func(*Options)

type Options struct {
	Team          *Team
	Tasks         *task.Set
	Graph         *driver.Graph
	Renderer      *report.Renderer
	Callback      callback.Handler
	Recorder      *metrics.Recorder
	Store         Store
	Process       Process
	Inputs        map[string]string
	OutputDir     string
	TaskCallbacks map[string]TaskCallback
	GenerateOpts  []llm.GenerateOption
	Logger        *slog.Logger
	Clock         func() time.Time
}

func defaultOptions() *Options {
	return &Options{
		Team:          NewTeam(),
		Tasks:         task.Default(),
		Process:       ProcessSequential,
		Inputs:        make(map[string]string),
		TaskCallbacks: make(map[string]TaskCallback),
		Logger:        slog.Default(),
		Clock:         time.Now,
	}
}

// WithAgents adds task assignees.
func WithAgents(agents ...schema.Agent) Option {
	return func(o *Options) {
		o.Team.AddMembers(agents...)
	}
}

// WithManager sets the agent that picks the next stage in hierarchical mode.
// It can also be assigned tasks.
func WithManager(manager schema.Agent) Option {
	return func(o *Options) {
		o.Team.Leader = manager
	}
}

func WithTasks(tasks *task.Set) Option {
	return func(o *Options) {
		o.Tasks = tasks
	}
}

// WithGraph overrides the stage order derived from task context.
func WithGraph(g *driver.Graph) Option {
	return func(o *Options) {
		o.Graph = g
	}
}

func WithRenderer(r *report.Renderer) Option {
	return func(o *Options) {
		o.Renderer = r
	}
}

func WithCallback(h callback.Handler) Option {
	return func(o *Options) {
		o.Callback = h
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Options) {
		o.Recorder = r
	}
}

func WithStore(s Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

func WithProcess(p Process) Option {
	return func(o *Options) {
		o.Process = p
	}
}

// WithInput sets a value for {name} placeholders in task text. The query
// input is always set by Kickoff.
func WithInput(name, value string) Option {
	return func(o *Options) {
		o.Inputs[name] = value
	}
}

// WithOutputDir is the base directory of relative task output files.
func WithOutputDir(dir string) Option {
	return func(o *Options) {
		o.OutputDir = dir
	}
}

// WithTaskCallback registers a callback that tasks can name in YAML.
func WithTaskCallback(name string, fn TaskCallback) Option {
	return func(o *Options) {
		o.TaskCallbacks[name] = fn
	}
}

func WithGenerateOptions(opts ...llm.GenerateOption) Option {
	return func(o *Options) {
		o.GenerateOpts = append(o.GenerateOpts, opts...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}
