package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/antgroup/datacrew/driver"
	"github.com/antgroup/datacrew/schema"
	utilsjson "github.com/antgroup/datacrew/utils/json"
)

// hierarchical lets the manager pick one ready stage at a time. The graph
// still decides what is ready; nothing runs in parallel.
func (r *run) hierarchical(ctx context.Context) error {
	g := r.crew.graph
	done := make([]string, 0, g.Len())
	for len(done) < g.Len() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ready := g.Ready(done)
		if len(ready) == 0 {
			return driver.ErrCycle
		}
		next := r.choose(ctx, ready, done)
		if err := r.execute(ctx, next); err != nil {
			return err
		}
		done = append(done, next)
	}
	return nil
}

type managerChoice struct {
	Next   string `json:"next"`
	Reason string `json:"reason"`
}

// choose asks the manager for the next stage and falls back to the first
// ready one when the answer is unusable.
func (r *run) choose(ctx context.Context, ready, done []string) string {
	c := r.crew
	d := Decision{Ready: ready, Next: ready[0], Fallback: true}
	defer func() { r.result.decide(d) }()

	manager := c.team.Leader
	gen, err := manager.Run(ctx, []schema.Message{
		schema.NewUserMessage(manager.Name(), r.managerPrompt(ready, done)),
	}, c.genOpts...)
	if err != nil {
		c.logger.WarnContext(ctx, "manager failed, using first ready stage", "next", d.Next, "error", err.Error())
		return d.Next
	}
	var picked managerChoice
	if err := utilsjson.Unmarshal([]byte(utilsjson.TrimJsonString(gen.Final())), &picked); err != nil {
		c.logger.WarnContext(ctx, "manager reply unreadable, using first ready stage", "next", d.Next, "error", err.Error())
		return d.Next
	}
	d.Reason = picked.Reason
	for _, name := range ready {
		if strings.EqualFold(name, strings.TrimSpace(picked.Next)) {
			d.Next, d.Fallback = name, false
			c.logger.InfoContext(ctx, "manager picked stage", "next", name, "reason", picked.Reason)
			return name
		}
	}
	c.logger.WarnContext(ctx, "manager picked a stage that is not ready", "picked", picked.Next, "next", d.Next)
	return d.Next
}

func (r *run) managerPrompt(ready, done []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request: %s\n\nCompleted stages:\n", r.result.Query)
	if len(done) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, name := range done {
		s, _ := r.result.Stage(name)
		fmt.Fprintf(&sb, "- %s (%s): %s", name, s.Agent, s.Status)
		if s.Error != "" {
			fmt.Fprintf(&sb, ", error: %s", s.Error)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nStages ready to run:\n")
	for _, name := range ready {
		t, _ := r.crew.tasks.Get(name)
		desc := t.Description
		if ft, err := t.Format(r.inputs); err == nil {
			desc = ft.Description
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", name, t.Agent, firstLine(desc))
	}
	sb.WriteString("\nChoose the stage to run next. Reply with exactly one JSON object:\n")
	sb.WriteString(`{"next": "<stage name>", "reason": "<why this stage>"}`)
	return sb.String()
}
