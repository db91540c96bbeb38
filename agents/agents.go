// Package agents implements the role-prompted workers of the BI query
// assistant. Each agent wraps an LLM provider with a fixed role prompt; the
// data analyst additionally drives the metrics engine through function
// calling.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/biquery/llm"
	"github.com/BaSui01/biquery/tools"
)

// Role defines an agent's identity in the crew.
type Role struct {
	Name            string `json:"name"`
	Goal            string `json:"goal"`
	Backstory       string `json:"backstory,omitempty"`
	AllowDelegation bool   `json:"allow_delegation"`
}

// Task is one unit of work assigned to an agent.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	// ExpectedOutput tells the model what shape of answer to produce.
	ExpectedOutput string `json:"expected_output"`
	// Context carries the outputs of earlier tasks.
	Context []string `json:"context,omitempty"`
}

// TaskResult is the outcome of one executed task.
type TaskResult struct {
	TaskID       string        `json:"task_id"`
	Agent        string        `json:"agent"`
	Output       string        `json:"output"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	ToolCalls    int           `json:"tool_calls,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Options tunes an agent's model calls.
type Options struct {
	Temperature float32
	MaxTokens   int
	// MaxToolRounds bounds the tool loop. Defaults to 4.
	MaxToolRounds int
}

// Agent is one role-prompted worker.
type Agent struct {
	role      Role
	provider  llm.Provider
	registry  *tools.Registry
	executor  *tools.Executor
	tokenizer llm.Tokenizer
	logger    *zap.Logger
	opts      Options
}

// New creates an agent. registry may be nil for agents without tools.
func New(role Role, provider llm.Provider, registry *tools.Registry, logger *zap.Logger, opts Options) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 4
	}
	a := &Agent{
		role:      role,
		provider:  provider,
		registry:  registry,
		tokenizer: llm.NewTiktokenTokenizer("gpt-4o-mini"),
		logger:    logger.Named("agent." + slug(role.Name)),
		opts:      opts,
	}
	if registry != nil {
		a.executor = tools.NewExecutor(registry, logger)
	}
	return a
}

// Role returns the agent's role.
func (a *Agent) Role() Role { return a.role }

// systemPrompt renders the role the way a crew briefing would.
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", a.role.Name)
	fmt.Fprintf(&b, "Your goal: %s\n", a.role.Goal)
	if a.role.Backstory != "" {
		fmt.Fprintf(&b, "\n%s\n", a.role.Backstory)
	}
	if a.registry != nil && len(a.registry.Schemas()) > 0 {
		b.WriteString("\nUse the available tools to compute exact numbers. Never invent figures.")
	}
	return b.String()
}

func (a *Agent) userPrompt(task Task) string {
	var b strings.Builder
	b.WriteString(task.Description)
	if len(task.Context) > 0 {
		b.WriteString("\n\nContext from earlier steps:\n")
		for _, c := range task.Context {
			b.WriteString("---\n")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output: %s", task.ExpectedOutput)
	}
	return b.String()
}

// Execute runs one task to completion, resolving tool calls as they appear.
func (a *Agent) Execute(ctx context.Context, task Task) (*TaskResult, error) {
	start := time.Now()

	messages := []llm.Message{
		llm.NewSystemMessage(a.systemPrompt()),
		llm.NewUserMessage(a.userPrompt(task)),
	}

	promptTokens := llm.CountPromptTokens(a.tokenizer, messages)
	a.logger.Info("task started",
		zap.String("task", task.ID),
		zap.Int("prompt_tokens", promptTokens))

	toolCalls := 0
	for round := 0; ; round++ {
		req := &llm.ChatRequest{
			Messages:    messages,
			Temperature: a.opts.Temperature,
			MaxTokens:   a.opts.MaxTokens,
		}
		if a.registry != nil {
			req.Tools = a.registry.Schemas()
		}

		resp, err := a.provider.Completion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("agent %s task %s: %w", a.role.Name, task.ID, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("agent %s task %s: empty completion", a.role.Name, task.ID)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			a.logger.Info("task finished",
				zap.String("task", task.ID),
				zap.Int("tool_calls", toolCalls),
				zap.Duration("duration", time.Since(start)))
			return &TaskResult{
				TaskID:       task.ID,
				Agent:        a.role.Name,
				Output:       msg.Content,
				PromptTokens: promptTokens,
				ToolCalls:    toolCalls,
				Duration:     time.Since(start),
			}, nil
		}

		if a.executor == nil {
			return nil, fmt.Errorf("agent %s task %s: model requested tools but none are registered", a.role.Name, task.ID)
		}
		if round >= a.opts.MaxToolRounds {
			return nil, fmt.Errorf("agent %s task %s: tool loop exceeded %d rounds", a.role.Name, task.ID, a.opts.MaxToolRounds)
		}

		messages = append(messages, msg)
		for _, result := range a.executor.Execute(ctx, msg.ToolCalls) {
			toolCalls++
			messages = append(messages, result.Message())
		}
	}
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
