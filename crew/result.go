package crew

import (
	"sync"
	"time"

	"github.com/antgroup/datacrew/report"
)

// Pipeline states a run passes through.
const (
	StateAnalyze   = "ANALYZE"
	StateVisualize = "VISUALIZE"
	StateReport    = "REPORT"
	StateDone      = "DONE"
)

// StageResult is what one task produced.
type StageResult struct {
	Task     string        `json:"task"`
	Stage    string        `json:"stage,omitempty"`
	Agent    string        `json:"agent,omitempty"`
	Status   string        `json:"status"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Tokens   int           `json:"tokens,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Decision is one choice of the hierarchical manager.
type Decision struct {
	Ready    []string `json:"ready"`
	Next     string   `json:"next"`
	Reason   string   `json:"reason,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

// Result is the outcome of one Kickoff. Analysis is set whenever the
// analysis stage succeeded, even if later stages failed.
type Result struct {
	RunID     string                   `json:"run_id"`
	Query     string                   `json:"query"`
	Process   Process                  `json:"process"`
	Status    string                   `json:"status"`
	Error     string                   `json:"error,omitempty"`
	States    []string                 `json:"states"`
	Stages    []StageResult            `json:"stages"`
	Decisions []Decision               `json:"decisions,omitempty"`
	Analysis  string                   `json:"analysis"`
	Blueprint string                   `json:"blueprint,omitempty"`
	Report    *report.Report           `json:"-"`
	Errors    map[string]string        `json:"errors,omitempty"`
	Timings   map[string]time.Duration `json:"timings"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration"`

	mu     sync.Mutex
	status map[string]string
}

func newResult(runID, query string, p Process, start time.Time) *Result {
	return &Result{
		RunID:     runID,
		Query:     query,
		Process:   p,
		States:    []string{},
		Errors:    make(map[string]string),
		Timings:   make(map[string]time.Duration),
		StartedAt: start,
		status:    make(map[string]string),
	}
}

func (r *Result) enter(state string) {
	if state == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.States {
		if s == state {
			return
		}
	}
	r.States = append(r.States, state)
}

func (r *Result) setStatus(name, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = status
}

func (r *Result) add(s StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, s)
	r.Timings[s.Task] = s.Duration
	r.status[s.Task] = s.Status
	if s.Error != "" {
		r.Errors[s.Task] = s.Error
	}
}

func (r *Result) decide(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, d)
}

// StageStates maps task names to driver states, for rendering the graph.
func (r *Result) StageStates() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.status))
	for k, v := range r.status {
		out[k] = v
	}
	return out
}

// Stage returns the result of the named task.
func (r *Result) Stage(name string) (StageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Stages {
		if s.Task == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Done reports whether the run reached DONE.
func (r *Result) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.States) > 0 && r.States[len(r.States)-1] == StateDone
}

func (r *Result) setAnalysis(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Analysis = s
}

func (r *Result) setBlueprint(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Blueprint = s
}

func (r *Result) setReport(rep *report.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Report = rep
}

func (r *Result) snapshot() (analysis, bp string, errs map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs = make(map[string]string, len(r.Errors))
	for k, v := range r.Errors {
		errs[k] = v
	}
	return r.Analysis, r.Blueprint, errs
}
