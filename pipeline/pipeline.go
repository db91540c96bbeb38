// Package pipeline runs the fixed sequence of analysis steps that turns a
// business question into a report. Each step reads the accumulated state and
// appends its own output, so later steps see everything earlier ones produced.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StepOutput is one completed step's contribution to the state.
type StepOutput struct {
	Step     string        `json:"step"`
	Agent    string        `json:"agent,omitempty"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// State is the shared context threaded through the chain.
type State struct {
	RunID    string       `json:"run_id"`
	Question string       `json:"question"`
	Outputs  []StepOutput `json:"outputs"`
}

// Output returns a named step's output and whether it ran.
func (s *State) Output(step string) (string, bool) {
	for _, o := range s.Outputs {
		if o.Step == step {
			return o.Output, true
		}
	}
	return "", false
}

// Step is one unit of the chain.
type Step interface {
	Name() string
	Run(ctx context.Context, state *State) (*StepOutput, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, state *State) (*StepOutput, error)
}

// NewStepFunc creates a function-backed step.
func NewStepFunc(name string, fn func(ctx context.Context, state *State) (*StepOutput, error)) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

func (s *StepFunc) Name() string { return s.name }

func (s *StepFunc) Run(ctx context.Context, state *State) (*StepOutput, error) {
	return s.fn(ctx, state)
}

// Chain executes steps in order, feeding each the accumulated state.
type Chain struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// NewChain creates a named sequential chain.
func NewChain(name string, logger *zap.Logger, steps ...Step) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{name: name, steps: steps, logger: logger.Named("pipeline")}
}

// Name returns the chain's name.
func (c *Chain) Name() string { return c.name }

// Steps returns the configured steps.
func (c *Chain) Steps() []Step { return c.steps }

// Run executes the chain. The first failing step aborts the run; the state
// returned alongside the error holds the outputs of the steps that finished.
func (c *Chain) Run(ctx context.Context, state *State) (*State, error) {
	for i, step := range c.steps {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		start := time.Now()
		c.logger.Info("step started",
			zap.String("chain", c.name),
			zap.String("step", step.Name()),
			zap.Int("position", i+1))

		out, err := step.Run(ctx, state)
		if err != nil {
			c.logger.Error("step failed",
				zap.String("chain", c.name),
				zap.String("step", step.Name()),
				zap.Error(err))
			return state, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if out.Step == "" {
			out.Step = step.Name()
		}
		if out.Duration == 0 {
			out.Duration = time.Since(start)
		}
		state.Outputs = append(state.Outputs, *out)

		c.logger.Info("step finished",
			zap.String("chain", c.name),
			zap.String("step", step.Name()),
			zap.Duration("duration", out.Duration))
	}
	return state, nil
}
