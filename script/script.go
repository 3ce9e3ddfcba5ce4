// Package script runs model-written Starlark against a fixed set of
// bindings. Scripts cannot load modules, can only read configured
// datasets, and are bounded in wall time, steps and output.
package script

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antgroup/datacrew/chart"
	"github.com/antgroup/datacrew/frame"
	"github.com/pkg/errors"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const ErrorPrefix = "Error executing code: "

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type Result struct {
	Output   string
	Value    starlark.Value
	Sentinel string
	Globals  starlark.StringDict
	Steps    uint64
	Duration time.Duration
}

// Text is the printed output followed by the sentinel value, if any.
func (r *Result) Text() string {
	if r.Value == nil {
		return r.Output
	}
	if r.Output == "" || strings.HasSuffix(r.Output, "\n") {
		return r.Output + ValueString(r.Value)
	}
	return r.Output + "\n" + ValueString(r.Value)
}

// ValueString formats a value the way print would.
func ValueString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

type Evaluator struct {
	opts Options
}

func New(opts ...Option) *Evaluator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{opts: o}
}

func (e *Evaluator) Options() Options {
	return e.opts
}

func (e *Evaluator) predeclared(b Bindings) (starlark.StringDict, error) {
	pre := starlark.StringDict{
		"math":  starmath.Module,
		"json":  starjson.Module,
		"time":  startime.Module,
		"frame": frame.Module(e.opts.Source),
		"chart": chart.Module(e.opts.SavePaths...),
	}
	if e.opts.DataPaths != nil {
		v, _ := ToValue(e.opts.DataPaths)
		pre["AVAILABLE_DATA_PATHS"] = v
	}
	extra, err := b.toStarlark()
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		pre[k] = v
	}
	return pre, nil
}

type outputBuffer struct {
	mu        sync.Mutex
	sb        strings.Builder
	limit     int
	truncated bool
}

func (o *outputBuffer) print(_ *starlark.Thread, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.truncated {
		return
	}
	if o.sb.Len()+len(msg)+1 > o.limit {
		o.truncated = true
		o.sb.WriteString("... output truncated\n")
		return
	}
	o.sb.WriteString(msg)
	o.sb.WriteByte('\n')
}

func (o *outputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sb.String()
}

func (e *Evaluator) newThread(name string, out *outputBuffer) *starlark.Thread {
	thread := &starlark.Thread{Name: name, Print: out.print}
	thread.SetMaxExecutionSteps(e.opts.MaxSteps)
	return thread
}

// guard cancels the thread when ctx ends. The returned func must be called
// once the thread is done.
func guard(ctx context.Context, thread *starlark.Thread) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (e *Evaluator) classify(ctx context.Context, thread *starlark.Thread, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrapf(ErrTimeout, "after %s", e.opts.Timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	case thread.ExecutionSteps() >= e.opts.MaxSteps:
		return errors.Wrapf(ErrStepLimit, "%d steps", e.opts.MaxSteps)
	}
	return err
}

// Execute runs source with the default modules plus bindings.
func (e *Evaluator) Execute(ctx context.Context, source string, bindings Bindings) (*Result, error) {
	pre, err := e.predeclared(bindings)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	out := &outputBuffer{limit: e.opts.MaxOutput}
	thread := e.newThread("exec", out)
	stop := guard(ctx, thread)
	start := time.Now()
	globals, err := starlark.ExecFileOptions(fileOptions, thread, "code.star", source, pre)
	stop()

	res := &Result{
		Output:   out.String(),
		Sentinel: e.opts.Sentinel,
		Globals:  globals,
		Steps:    thread.ExecutionSteps(),
		Duration: time.Since(start),
	}
	log := e.opts.Logger.With("steps", res.Steps, "duration", res.Duration)
	if err = e.classify(ctx, thread, err); err != nil {
		log.Debug("script failed", "error", err.Error())
		return res, err
	}
	if e.opts.Sentinel != "" {
		if v, ok := globals[e.opts.Sentinel]; ok {
			res.Value = v
		} else if e.opts.Required {
			return res, errors.Wrapf(ErrSentinelNotSet, "%s", e.opts.Sentinel)
		}
	}
	log.Debug("script executed", "output_bytes", len(res.Output), "sentinel_set", res.Value != nil)
	return res, nil
}

// Call invokes a function defined by an earlier Execute under the same
// limits. Output printed by the call is appended to res.Output.
func (e *Evaluator) Call(ctx context.Context, res *Result, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	fn, ok := res.Globals[name].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s is not defined", name)
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	out := &outputBuffer{limit: e.opts.MaxOutput}
	thread := e.newThread("call", out)
	stop := guard(ctx, thread)
	v, err := starlark.Call(thread, fn, args, kwargs)
	stop()
	res.Output += out.String()
	res.Steps += thread.ExecutionSteps()
	if err = e.classify(ctx, thread, err); err != nil {
		return nil, err
	}
	return v, nil
}

// FormatError renders an execution failure as tool output.
func FormatError(err error) string {
	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Msg + "\n" + evalErr.CallStack.String()
	}
	return ErrorPrefix + msg
}
