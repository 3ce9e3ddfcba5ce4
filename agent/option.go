package agent

import (
	"log/slog"

	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/feedback"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/schema"
	"github.com/antgroup/datacrew/tool"
)

type Option func(opt *Options)

const (
	_defaultMaxIterations = 15
	_defaultMaxRetries    = 3
)

type Options struct {
	prompt      string
	instruction string
	suffix      string

	name string
	desc string
	role string
	goal string

	LLM              llm.LLM
	Tools            []tool.Tool
	useFunctionCall  bool
	FeedbackChain    feedback.Feedback
	Callback         callback.Handler
	FilterMemoryFunc func([]schema.Message) []schema.Message
	ParseOutputFunc  func(string, *llm.Generation) ([]schema.StepAction, []schema.Message, error)
	Vars             map[string]string
	Logger           *slog.Logger

	MaxIterations int
	MaxRetries    int
}

func WithName(name string) Option {
	return func(opt *Options) {
		opt.name = name
	}
}

func WithDesc(desc string) Option {
	return func(opt *Options) {
		opt.desc = desc
	}
}

func WithRole(role string) Option {
	return func(opt *Options) {
		opt.role = role
	}
}

// WithGoal sets the standing instructions rendered as {{.goal}}.
func WithGoal(goal string) Option {
	return func(opt *Options) {
		opt.goal = goal
	}
}

func WithPrompt(prompt string) Option {
	return func(opt *Options) {
		opt.prompt = prompt
	}
}

func WithInstruction(instruction string) Option {
	return func(opt *Options) {
		opt.instruction = instruction
	}
}

func WithSuffix(suffix string) Option {
	return func(opt *Options) {
		opt.suffix = suffix
	}
}

func WithLLM(LLM llm.LLM) Option {
	return func(opt *Options) {
		opt.LLM = LLM
	}
}

func WithTools(actions []tool.Tool) Option {
	return func(opt *Options) {
		opt.Tools = actions
	}
}

func WithUseFunctionCall(useFunctionCall bool) Option {
	return func(opt *Options) {
		opt.useFunctionCall = useFunctionCall
	}
}

// WithFeedbacks replaces the feedback chain.
func WithFeedbacks(feedbacks ...feedback.Feedback) Option {
	return func(opt *Options) {
		opt.FeedbackChain = feedback.Chain(feedbacks...)
	}
}

func WithMaxIterations(maxIterations int) Option {
	return func(opt *Options) {
		opt.MaxIterations = maxIterations
	}
}

// WithMaxRetries bounds how many rejected outputs are tolerated in one run.
func WithMaxRetries(maxRetries int) Option {
	return func(opt *Options) {
		opt.MaxRetries = maxRetries
	}
}

func WithCallback(callback callback.Handler) Option {
	return func(opt *Options) {
		opt.Callback = callback
	}
}

func WithVars(k, v string) Option {
	return func(opt *Options) {
		if opt.Vars == nil {
			opt.Vars = make(map[string]string)
		}
		opt.Vars[k] = v
	}
}

func WithFilterMemoryFunc(fun func([]schema.Message) []schema.Message) Option {
	return func(opt *Options) {
		opt.FilterMemoryFunc = fun
	}
}

func WithParseOutputFunc(fun func(string, *llm.Generation) ([]schema.StepAction, []schema.Message, error)) Option {
	return func(opt *Options) {
		opt.ParseOutputFunc = fun
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opt *Options) {
		if logger != nil {
			opt.Logger = logger
		}
	}
}

func defaultBaseOptions() []Option {
	return []Option{
		WithPrompt(_defaultBasePrompt),
		WithInstruction(_defaultBaseInstructions),
		WithSuffix(_defaultBaseSuffix),
		WithMaxIterations(_defaultMaxIterations),
		WithMaxRetries(_defaultMaxRetries),
		WithFeedbacks(feedback.NewContentFeedback()),
		WithParseOutputFunc(parseOutput),
		WithLogger(slog.Default()),
	}
}
