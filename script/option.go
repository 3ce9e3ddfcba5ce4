package script

import (
	"log/slog"
	"time"

	"github.com/antgroup/datacrew/frame"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxSteps  = 50_000_000
	DefaultMaxOutput = 64 << 10
)

type Options struct {
	Sentinel  string
	Required  bool
	Timeout   time.Duration
	MaxSteps  uint64
	MaxOutput int
	Source    frame.Source
	DataPaths map[string]string
	SavePaths []string
	Logger    *slog.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Timeout:   DefaultTimeout,
		MaxSteps:  DefaultMaxSteps,
		MaxOutput: DefaultMaxOutput,
		Logger:    slog.Default(),
	}
}

// WithSentinel names the global read back after execution. When required
// is set, a script that leaves it unset fails with ErrSentinelNotSet.
func WithSentinel(name string, required bool) Option {
	return func(o *Options) {
		o.Sentinel = name
		o.Required = required
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithMaxSteps(n uint64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

func WithMaxOutput(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxOutput = n
		}
	}
}

// WithSource sets where frame.read_csv and frame.read_excel load from.
func WithSource(src frame.Source) Option {
	return func(o *Options) {
		o.Source = src
	}
}

// WithDataPaths exposes name -> path as AVAILABLE_DATA_PATHS.
func WithDataPaths(paths map[string]string) Option {
	return func(o *Options) {
		o.DataPaths = paths
	}
}

// WithSavePaths lists the files chart.save may write.
func WithSavePaths(paths ...string) Option {
	return func(o *Options) {
		o.SavePaths = append(o.SavePaths, paths...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
