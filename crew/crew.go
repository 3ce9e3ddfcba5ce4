// Package crew runs the agents of a data crew over their task graph: the
// analyst answers the query, the visualizer designs a chart and the report
// stage renders both.
package crew

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"

	"github.com/antgroup/datacrew/blueprint"
	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/driver"
	"github.com/antgroup/datacrew/feedback"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/memory"
	"github.com/antgroup/datacrew/metrics"
	"github.com/antgroup/datacrew/report"
	"github.com/antgroup/datacrew/schema"
	"github.com/antgroup/datacrew/task"
)

// Store persists finished runs.
type Store interface {
	Save(ctx context.Context, r *Result) error
}

const (
	_guardrailSender  = "Guardrail"
	_rendererSender   = "Renderer"
	_broadcast        = "All"
	_defaultGuardRuns = 3
)

type Crew struct {
	team          *Team
	tasks         *task.Set
	graph         *driver.Graph
	levels        [][]string
	renderer      *report.Renderer
	callback      callback.Handler
	recorder      *metrics.Recorder
	store         Store
	process       Process
	inputs        map[string]string
	outputDir     string
	taskCallbacks map[string]TaskCallback
	guardrails    map[string]feedback.Feedback
	genOpts       []llm.GenerateOption
	logger        *slog.Logger
	now           func() time.Time
}

func New(opts ...Option) (*Crew, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Tasks == nil {
		o.Tasks = task.Default()
	}
	if o.Renderer == nil {
		o.Renderer = report.NewRenderer(report.WithLogger(o.Logger))
	}
	if o.Callback == nil {
		o.Callback = callback.Nop{}
	}
	c := &Crew{
		team:          o.Team,
		tasks:         o.Tasks,
		renderer:      o.Renderer,
		callback:      o.Callback,
		recorder:      o.Recorder,
		store:         o.Store,
		process:       o.Process,
		inputs:        o.Inputs,
		outputDir:     o.OutputDir,
		taskCallbacks: builtinCallbacks(o.Logger),
		guardrails:    make(map[string]feedback.Feedback),
		genOpts:       o.GenerateOpts,
		logger:        o.Logger,
		now:           o.Clock,
	}
	for name, fn := range o.TaskCallbacks {
		c.taskCallbacks[name] = fn
	}
	if c.process == ProcessHierarchical && c.team.Leader == nil {
		return nil, ErrMissingManager
	}

	var err error
	if o.Graph == nil {
		c.graph, err = graphFromTasks(o.Tasks)
	} else {
		c.graph, err = o.Graph, checkGraph(o.Graph, o.Tasks)
	}
	if err != nil {
		return nil, err
	}
	if c.levels, err = c.graph.Levels(); err != nil {
		return nil, err
	}
	if err := c.checkTasks(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Crew) checkTasks() error {
	analysis := false
	for _, name := range c.tasks.Names() {
		t, _ := c.tasks.Get(name)
		if strings.EqualFold(t.Stage, task.StageAnalyze) {
			analysis = true
		}
		// the report stage renders without an agent
		if c.team.Member(t.Agent) == nil && !isReport(t) {
			return errors.Wrapf(ErrUnknownAgent, "%q in task %s", t.Agent, name)
		}
		fd, err := t.GuardrailFeedback()
		if err != nil {
			return err
		}
		if fd != nil {
			c.guardrails[name] = fd
		}
		if t.Callback != "" && c.taskCallbacks[t.Callback] == nil {
			return errors.Wrapf(ErrUnknownCallback, "%q in task %s", t.Callback, name)
		}
	}
	if !analysis {
		return ErrNoAnalysis
	}
	return nil
}

func graphFromTasks(set *task.Set) (*driver.Graph, error) {
	g := driver.New()
	for _, name := range set.Names() {
		t, _ := set.Get(name)
		if err := g.AddStage(name, t.Context...); err != nil {
			return nil, err
		}
		g.Describe(name, firstLine(t.Description))
	}
	return g, nil
}

func checkGraph(g *driver.Graph, set *task.Set) error {
	missing, extra := funk.DifferenceString(g.Names(), set.Names())
	if len(missing) > 0 {
		return errors.Wrapf(ErrGraphMismatch, "stages without task: %s", strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		return errors.Wrapf(ErrGraphMismatch, "tasks without stage: %s", strings.Join(extra, ", "))
	}
	return nil
}

func (c *Crew) Graph() *driver.Graph { return c.graph }

func (c *Crew) Levels() [][]string { return c.levels }

func (c *Crew) Process() Process { return c.process }

// RenderGraph draws the stage graph colored by the states of a run.
func (c *Crew) RenderGraph(ctx context.Context, res *Result) (string, error) {
	states := map[string]string{}
	if res != nil {
		states = res.StageStates()
	}
	return c.graph.Render(ctx, states)
}

// Kickoff answers one query. The returned Result is non-nil whenever the
// query was accepted, also together with an error.
func (c *Crew) Kickoff(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := c.now()
	res := newResult(uuid.NewString(), query, c.process, start)
	for _, name := range c.graph.Names() {
		res.setStatus(name, driver.StatePending)
	}
	r := &run{crew: c, result: res, memory: memory.NewBufferMemory(), inputs: c.runInputs(query)}
	c.logger.InfoContext(ctx, "crew kickoff", "run_id", res.RunID, "process", c.process, "query", query)

	var err error
	if c.process == ProcessHierarchical {
		err = r.hierarchical(ctx)
	} else {
		err = r.sequential(ctx)
	}
	res.Duration = c.now().Sub(start)
	r.analysisOnly()

	status := StatusOK
	switch {
	case err != nil:
		status = StatusError
		res.Error = err.Error()
	default:
		res.enter(StateDone)
		if len(res.Errors) > 0 {
			status = StatusPartial
		}
	}
	res.Status = status
	if c.recorder != nil {
		c.recorder.RecordRun(string(c.process), status)
	}
	if c.store != nil {
		if serr := c.store.Save(context.WithoutCancel(ctx), res); serr != nil {
			c.logger.WarnContext(ctx, "save run failed", "run_id", res.RunID, "error", serr.Error())
		}
	}
	c.logger.InfoContext(ctx, "crew finished",
		"run_id", res.RunID,
		"status", status,
		"states", strings.Join(res.States, ">"),
		"duration", res.Duration)
	return res, err
}

// analysisOnly gives runs without a report stage a report holding the
// analysis alone.
func (r *run) analysisOnly() {
	analysis, _, _ := r.result.snapshot()
	if r.result.Report != nil || strings.TrimSpace(analysis) == "" {
		return
	}
	rep := report.NewAnalysis(analysis)
	rep.CreatedAt = r.crew.now()
	rep.Visualization = report.Outcome{
		Status:  report.StatusNotApplicable,
		Message: "No report stage is configured; showing the analysis only.",
	}
	r.result.setReport(rep)
}

func (c *Crew) runInputs(query string) map[string]string {
	in := make(map[string]string, len(c.inputs)+1)
	for k, v := range c.inputs {
		in[k] = v
	}
	in["query"] = query
	return in
}

// run is the state of one Kickoff.
type run struct {
	crew   *Crew
	result *Result
	memory schema.Memory
	inputs map[string]string
}

// sequential runs the graph level by level; stages of one level run
// concurrently.
func (r *run) sequential(ctx context.Context) error {
	for _, level := range r.crew.levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range level {
			g.Go(func() error {
				return r.execute(gctx, name)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one task and records it. Only analysis failures and
// cancellation stop the run; other failures stay on the result.
func (r *run) execute(ctx context.Context, name string) error {
	c := r.crew
	t, err := c.tasks.Get(name)
	if err != nil {
		return err
	}
	r.result.enter(pipelineState(t.Stage))
	r.result.setStatus(name, driver.StateRunning)
	c.callback.HandleStageStart(ctx, r.result.RunID, name)

	start := c.now()
	sr := StageResult{Task: name, Stage: t.Stage, Agent: t.Agent}
	event := callback.StageEvent{RunID: r.result.RunID, Stage: name, Agent: t.Agent}
	var rep *report.Report
	if isReport(t) {
		rep, err = r.report(ctx, t, &sr)
		if rep != nil {
			event.Kind = rep.Visualization.Kind
			if img := rep.Visualization.Image; img != nil {
				event.Path = img.Path
			}
		}
	} else {
		err = r.runTask(ctx, t, &sr)
	}
	sr.Duration = c.now().Sub(start)
	sr.Status = driver.StateDone
	if err != nil {
		sr.Status = driver.StateFailed
		sr.Error = err.Error()
	}
	r.result.add(sr)

	event.Output = sr.Output
	event.Status = sr.Status
	event.Duration = sr.Duration
	event.Err = err
	c.callback.HandleStageEnd(ctx, event)

	if err == nil {
		r.finish(ctx, t, sr.Output, rep)
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if strings.EqualFold(t.Stage, task.StageAnalyze) {
		return fmt.Errorf("%w: task %s: %w", ErrAnalysisFailed, name, err)
	}
	c.logger.WarnContext(ctx, "stage failed, continuing", "run_id", r.result.RunID, "task", name, "error", err.Error())
	return nil
}

// runTask hands the task prompt plus the outputs of its context tasks to
// the assigned agent and applies the task guardrail.
func (r *run) runTask(ctx context.Context, t task.Task, sr *StageResult, extra ...schema.Message) error {
	c := r.crew
	agent := c.team.Member(t.Agent)
	if agent == nil {
		return errors.Wrapf(ErrUnknownAgent, "%q", t.Agent)
	}
	ft, err := t.Format(r.inputs)
	if err != nil {
		return err
	}
	prompt := ft.Prompt()
	msgs := []schema.Message{schema.NewUserMessage(agent.Name(), prompt)}
	for _, dep := range t.Context {
		msgs = append(msgs, r.memory.Load(ctx, memory.ForStage(dep))...)
	}
	msgs = append(msgs, extra...)

	guard := c.guardrails[t.Name]
	limit := t.MaxRetries
	if limit <= 0 {
		limit = _defaultGuardRuns
	}
	var out string
	for attempt := 1; ; attempt++ {
		sr.Attempts = attempt
		gen, err := agent.Run(ctx, msgs, c.genOpts...)
		if err != nil {
			return err
		}
		sr.Tokens += gen.TotalTokens
		out = gen.Final()
		if guard == nil {
			break
		}
		verdict := guard.Feedback(ctx, agent, gen.Messages, nil, gen.Steps, prompt)
		if verdict == nil || verdict.Type == feedback.Approved {
			break
		}
		c.logger.WarnContext(ctx, "task output rejected",
			"task", t.Name, "attempt", attempt, "reason", verdict.Msg)
		if attempt > limit {
			return errors.Wrapf(ErrGuardrail, "task %s: %s", t.Name, verdict.Msg)
		}
		msgs = append(msgs, schema.Message{
			Type:     schema.MsgTypeMsg,
			Sender:   _guardrailSender,
			Receiver: agent.Name(),
			Content:  fmt.Sprintf("Your previous answer was rejected: %s\nPrevious answer:\n%s", verdict.Msg, out),
		})
	}
	sr.Output = out

	switch strings.ToLower(t.Stage) {
	case task.StageAnalyze:
		r.result.setAnalysis(out)
	case task.StageVisualize:
		r.result.setBlueprint(out)
	}
	return r.memory.Save(ctx, schema.Message{
		Type:     schema.MsgTypeMsg,
		Sender:   agent.Name(),
		Receiver: _broadcast,
		Content:  out,
		Stage:    t.Name,
		Token:    sr.Tokens,
	})
}

// report renders the analysis and blueprint deterministically, then lets
// the task agent, if any, add a closing note. A note failure keeps the
// rendered report.
func (r *run) report(ctx context.Context, t task.Task, sr *StageResult) (*report.Report, error) {
	c := r.crew
	analysis, bp, errs := r.result.snapshot()
	vizFailure := ""
	if vt, ok := c.tasks.ByStage(task.StageVisualize); !ok {
		bp, _ = blueprint.None("no visualization stage is configured").Marshal()
	} else if e, failed := errs[vt.Name]; failed {
		vizFailure = e
	}

	rep := c.renderer.Render(ctx, analysis, bp)
	rep.Query = r.result.Query
	if vizFailure != "" {
		rep.Visualization = report.Outcome{
			Status:  report.StatusError,
			Message: "Error: Visualizer did not produce a blueprint: " + vizFailure,
		}
	}
	r.result.setReport(rep)
	sr.Output = rep.Visualization.Message

	if c.team.Member(t.Agent) == nil {
		return rep, nil
	}
	status := schema.Message{
		Type:     schema.MsgTypeMsg,
		Sender:   _rendererSender,
		Receiver: t.Agent,
		Content: fmt.Sprintf("Rendering status: %s\nChart type: %s\n%s",
			rep.Visualization.Status, rep.Visualization.Kind, rep.Visualization.Message),
	}
	var note StageResult
	if err := r.runTask(ctx, t, &note, status); err != nil {
		return rep, errors.Wrap(err, "closing note")
	}
	sr.Tokens, sr.Attempts = note.Tokens, note.Attempts
	rep.Note = note.Output
	return rep, nil
}

// finish writes the task output file and calls the task callback.
func (r *run) finish(ctx context.Context, t task.Task, out string, rep *report.Report) {
	c := r.crew
	if t.OutputFile != "" {
		content := []byte(out)
		if rep != nil {
			var buf bytes.Buffer
			if err := rep.WriteText(&buf); err == nil {
				content = buf.Bytes()
			}
		}
		if err := r.writeOutput(t, content); err != nil {
			c.logger.WarnContext(ctx, "write task output failed", "task", t.Name, "path", t.OutputFile, "error", err.Error())
		}
	}
	if fn := c.taskCallbacks[t.Callback]; fn != nil {
		fn(ctx, TaskOutput{RunID: r.result.RunID, Task: t.Name, Stage: t.Stage, Agent: t.Agent, Raw: out})
	}
}

func (r *run) writeOutput(t task.Task, content []byte) error {
	path := t.OutputFile
	if !filepath.IsAbs(path) && r.crew.outputDir != "" {
		path = filepath.Join(r.crew.outputDir, path)
	}
	if t.CreateDirectory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

func isReport(t task.Task) bool {
	return strings.EqualFold(t.Stage, task.StageReport)
}

func pipelineState(stage string) string {
	switch strings.ToLower(stage) {
	case task.StageAnalyze:
		return StateAnalyze
	case task.StageVisualize:
		return StateVisualize
	case task.StageReport:
		return StateReport
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
