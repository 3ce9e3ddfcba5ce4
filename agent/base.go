package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/feedback"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/prompt"
	"github.com/antgroup/datacrew/schema"
	"github.com/antgroup/datacrew/tool"
)

var _ schema.Agent = (*BaseAgent)(nil)

type BaseAgent struct {
	name string
	desc string
	role string

	llm llm.LLM
	// tools is a list of the action the agent can do.
	tools           []tool.Tool
	useFunctionCall bool

	fdChain  feedback.Feedback
	callback callback.Handler
	prompt   prompt.Template
	logger   *slog.Logger

	filterMemoryFunc func([]schema.Message) []schema.Message
	parseOutputFunc  func(string, *llm.Generation) ([]schema.StepAction, []schema.Message, error)

	MaxIterations int
	MaxRetries    int
	vars          map[string]string
	goal          string
}

func NewBaseAgent(opts ...Option) (*BaseAgent, error) {
	options := &Options{
		Vars: make(map[string]string),
	}
	option := append(defaultBaseOptions(), opts...)
	for _, opt := range option {
		opt(options)
	}

	p := options.prompt + options.instruction + options.suffix
	if p == "" {
		return nil, schema.ErrMissingPrompt
	}
	if options.name == "" {
		return nil, schema.ErrMissingName
	}
	if options.desc == "" {
		return nil, schema.ErrMissingDesc
	}
	if options.LLM == nil {
		return nil, schema.ErrMissingLLM
	}

	template, err := prompt.NewPromptTemplate(p)
	if err != nil {
		return nil, errors.Wrap(schema.ErrParsePromptTemplate, err.Error())
	}
	return &BaseAgent{
		name: options.name,
		desc: options.desc,
		role: options.role,
		goal: options.goal,

		llm:             options.LLM,
		tools:           options.Tools,
		useFunctionCall: options.useFunctionCall,
		fdChain:         options.FeedbackChain,
		callback:        options.Callback,
		logger:          options.Logger.With("agent", options.name),

		MaxIterations:    options.MaxIterations,
		MaxRetries:       options.MaxRetries,
		filterMemoryFunc: options.FilterMemoryFunc,
		parseOutputFunc:  options.ParseOutputFunc,

		prompt: template,
		vars:   options.Vars,
	}, nil
}

// Run loops plan -> act until the agent returns a final message. Rejected
// outputs are written back into the scratch pad as feedback.
func (ba *BaseAgent) Run(ctx context.Context,
	messages []schema.Message, opts ...llm.GenerateOption) (*schema.Generation, error) {
	if ba.filterMemoryFunc != nil {
		messages = ba.filterMemoryFunc(messages)
	}
	if len(messages) == 0 {
		return nil, schema.ErrNoMessages
	}
	steps := make([]schema.StepAction, 0)
	tokens := 0
	retries := 0
	for i := 0; i < ba.MaxIterations; i++ {
		feedbacks, actions, msgs, cost, err := ba.Plan(
			ctx, messages, steps, opts...)
		if err != nil {
			return nil, err
		}
		tokens += cost

		if len(feedbacks) != 0 {
			fd := ""
			for _, sfd := range feedbacks {
				fd += fmt.Sprintf("- %s\n", sfd.Feedback)
			}
			retries++
			ba.logger.DebugContext(ctx, "output rejected", "retry", retries, "feedback", fd)
			if retries > ba.MaxRetries {
				return nil, errors.Wrap(ErrRetriesExceeded, strings.TrimSpace(fd))
			}
			steps = append(steps, schema.StepAction{
				Feedback: fd,
				Log:      feedbacks[0].Log,
			})
			continue
		}

		if len(actions) == 0 && len(msgs) == 0 {
			steps = append(steps, schema.StepAction{
				Feedback: "- " + schema.ErrAgentNoReturn.Error() + "\n",
			})
			continue
		}

		for idx := range actions {
			ba.doAction(ctx, &actions[idx])
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		steps = append(steps, actions...)
		if len(actions) > 0 {
			continue
		}

		msgs[0].Token = tokens
		return &schema.Generation{
			Messages:    msgs,
			Steps:       steps,
			TotalTokens: tokens,
		}, nil
	}
	return nil, schema.ErrNotFinished
}

func (ba *BaseAgent) Plan(ctx context.Context, messages []schema.Message,
	steps []schema.StepAction, opts ...llm.GenerateOption) (
	[]schema.StepFeedback, []schema.StepAction, []schema.Message, int, error) {
	inputs := make(map[string]any, 10+len(ba.vars))

	for key, value := range ba.vars {
		inputs[key] = value
	}

	if ba.useFunctionCall {
		opts = append(opts, llm.WithTools(functionTools(ba.Tools())))
		inputs["tool_names"] = ""
		inputs["tool_descriptions"] = ""
	} else {
		inputs["tool_names"] = schema.ToolNames(ba.tools)
		inputs["tool_descriptions"] = schema.ToolDescriptions(ba.tools)
	}

	inputs["name"] = ba.name
	inputs["description"] = ba.desc
	inputs["role"] = ba.role
	inputs["goal"] = ba.goal
	inputs["history"] = schema.ScratchPad(ba.name, messages[1:], steps)
	inputs["current"] = time.Now().Format("2006-01-02 15:04:05")
	inputs["question"] = messages[0].Content

	p, err := ba.prompt.Format(inputs)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	if ba.callback != nil {
		ba.callback.HandleLLMStart(ctx, ba.name, p)
		opts = append(opts, llm.WithStreamingFunc(
			ba.callback.HandleStreamingFunc))
	}

	output, err := ba.llm.Generate(ctx, p, opts...)
	if err != nil {
		return nil, nil, nil, 0, errors.Wrapf(err, "%s: generate", ba.name)
	}
	// reasoning models may prepend their thinking
	if _, after, ok := strings.Cut(output.Content, "</think>"); ok {
		output.Content = after
	}

	if ba.callback != nil {
		ba.callback.HandleLLMEnd(ctx, ba.name, output)
	}
	feedbacks := make([]schema.StepFeedback, 0)
	actions, content, err := ba.parseOutputFunc(ba.name, output)
	if err != nil {
		feedbacks = append(feedbacks, schema.StepFeedback{
			Feedback: "parse output failed with error: " + err.Error(),
			Log:      output.Content,
		})
		return feedbacks, actions, content, output.Tokens(), nil
	}
	if ba.fdChain != nil {
		fd := ba.fdChain.Feedback(ctx, ba, content, actions, steps, p)
		if fd.Type == feedback.NotApproved {
			feedbacks = append(feedbacks, schema.StepFeedback{
				Feedback: fd.Msg,
				Log:      output.Content,
			})
		}
	}
	return feedbacks, actions, content, output.Tokens(), nil
}

func (ba *BaseAgent) doAction(
	ctx context.Context, action *schema.StepAction) {
	var err error
	if ba.callback != nil {
		ba.callback.HandleAgentActionStart(ctx, ba.Name(), action)
	}

	t := ba.getAction(action.Action)
	if t == nil {
		action.Observation = fmt.Sprintf("%s is not a valid tool, use one of [%s]",
			action.Action, schema.ToolNames(ba.tools))
		return
	}

	action.Observation, err = t.Call(ctx, action.Input)
	if err != nil {
		action.Observation = "tool call failed: " + err.Error()
	}

	if ba.callback != nil {
		ba.callback.HandleAgentActionEnd(ctx, ba.Name(), action)
	}
}

func (ba *BaseAgent) getAction(name string) tool.Tool {
	for _, a := range ba.tools {
		if strings.EqualFold(a.Name(), name) {
			return a
		}
	}
	return nil
}

// functionTools describes tools for native function calling.
func functionTools(tools []tool.Tool) []llm.Tool {
	out := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		out = append(out, llm.Tool{
			Type: "function",
			Function: &llm.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
				Strict:      t.Strict(),
			},
		})
	}
	return out
}

func (ba *BaseAgent) Name() string {
	return ba.name
}

func (ba *BaseAgent) Description() string {
	return ba.desc
}

func (ba *BaseAgent) Role() string {
	return ba.role
}

func (ba *BaseAgent) Tools() []tool.Tool {
	return ba.tools
}
