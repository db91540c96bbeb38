// Package tools provides the function-calling registry and executor the
// agents use to reach the metrics engine.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/biquery/llm"
)

// ToolFunc is the calling convention for registered tools.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Metadata describes a registered tool.
type Metadata struct {
	Schema llm.ToolSchema
	// Timeout bounds one execution. Defaults to 30s.
	Timeout time.Duration
	// CallsPerMinute rate-limits the tool. Zero means unlimited.
	CallsPerMinute int
}

// Result is the outcome of one tool call, success or failure. Errors are
// carried as text so they can be fed back to the model.
type Result struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// Registry holds the tools available to the agents.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]ToolFunc
	metadata map[string]Metadata
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]ToolFunc),
		metadata: make(map[string]Metadata),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.Named("tools"),
	}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(name string, fn ToolFunc, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	if meta.Schema.Name == "" {
		meta.Schema.Name = name
	}
	if meta.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema says %s, registering %s", meta.Schema.Name, name)
	}
	if meta.Timeout == 0 {
		meta.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = meta
	if meta.CallsPerMinute > 0 {
		r.limiters[name] = rate.NewLimiter(rate.Limit(float64(meta.CallsPerMinute)/60.0), meta.CallsPerMinute)
	}

	r.logger.Info("tool registered",
		zap.String("name", name),
		zap.Duration("timeout", meta.Timeout))
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (ToolFunc, Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, Metadata{}, fmt.Errorf("tool %s not found", name)
	}
	return fn, r.metadata[name], nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas lists the registered tool schemas for a chat request.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	return schemas
}

func (r *Registry) allow(name string) bool {
	r.mu.RLock()
	limiter := r.limiters[name]
	r.mu.RUnlock()
	return limiter == nil || limiter.Allow()
}

// Executor runs tool calls against a registry.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates an executor over the registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger.Named("executor")}
}

// Execute runs all calls concurrently and returns results in call order.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c llm.ToolCall) {
			defer wg.Done()
			results[idx] = e.ExecuteOne(ctx, c)
		}(i, call)
	}
	wg.Wait()

	return results
}

// ExecuteOne runs a single call with the tool's timeout.
func (e *Executor) ExecuteOne(ctx context.Context, call llm.ToolCall) Result {
	start := time.Now()
	result := Result{ToolCallID: call.ID, Name: call.Name}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.logger.Warn("tool not found", zap.String("name", call.Name))
		return result
	}

	if !e.registry.allow(call.Name) {
		result.Error = fmt.Sprintf("tool %s rate limit exceeded", call.Name)
		result.Duration = time.Since(start)
		e.logger.Warn("tool rate limited", zap.String("name", call.Name))
		return result
	}

	if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
		result.Error = fmt.Sprintf("tool %s arguments are not valid JSON", call.Name)
		result.Duration = time.Since(start)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	// Buffered so the worker can exit even after a timeout.
	done := make(chan outcome, 1)
	go func() {
		res, err := fn(execCtx, call.Arguments)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Error("tool failed",
				zap.String("name", call.Name),
				zap.Error(out.err),
				zap.Duration("duration", result.Duration))
		} else {
			result.Result = out.res
			e.logger.Info("tool executed",
				zap.String("name", call.Name),
				zap.Duration("duration", result.Duration))
		}

	case <-execCtx.Done():
		result.Duration = time.Since(start)
		result.Error = fmt.Sprintf("tool %s timed out after %s", call.Name, meta.Timeout)
		e.logger.Error("tool timed out",
			zap.String("name", call.Name),
			zap.Duration("timeout", meta.Timeout))
	}

	return result
}

// Message converts a result into the tool message appended to the chat
// transcript.
func (r Result) Message() llm.Message {
	content := string(r.Result)
	if r.Error != "" {
		content = fmt.Sprintf(`{"error":%q}`, r.Error)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: r.ToolCallID,
		Name:       r.Name,
	}
}
