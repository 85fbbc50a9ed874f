package session

import (
	"context"
	"fmt"
)

// Action is a canned request offered next to the prompt input.
type Action string

const (
	ActionTrace    Action = "trace"  // Source-tracing prediction.
	ActionDecision Action = "decide" // Decision suggestions.
)

var actionPrompts = map[Action]string{
	ActionTrace:    "请求执行溯源预测分析",
	ActionDecision: "请求决策建议",
}

// Prompt returns the text sent for a.
func (a Action) Prompt() (string, bool) {
	p, ok := actionPrompts[a]
	return p, ok
}

// Run submits the prompt behind action a.
func (c *Controller) Run(ctx context.Context, a Action) (bool, error) {
	prompt, ok := a.Prompt()
	if !ok {
		return false, fmt.Errorf("unknown action %q", a)
	}
	return c.Submit(ctx, prompt)
}
