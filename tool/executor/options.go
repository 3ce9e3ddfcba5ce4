package executor

import (
	"log/slog"
	"time"

	"github.com/antgroup/datacrew/metrics"
	"github.com/antgroup/datacrew/script"
)

const _defaultPlotsDir = "plots"

type Options struct {
	Script   []script.Option
	PlotsDir string
	Recorder *metrics.Recorder
	Logger   *slog.Logger
	Clock    func() time.Time
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		PlotsDir: _defaultPlotsDir,
		Logger:   slog.Default(),
		Clock:    time.Now,
	}
}

// WithScriptOptions configures the evaluator: data source, limits and
// AVAILABLE_DATA_PATHS. The sentinel is set by each tool.
func WithScriptOptions(opts ...script.Option) Option {
	return func(o *Options) {
		o.Script = append(o.Script, opts...)
	}
}

func WithPlotsDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.PlotsDir = dir
		}
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Options) {
		o.Recorder = r
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
		if now != nil {
			o.Clock = now
		}
	}
}
