// Package assistant wires the provider, the metrics engine, and the five
// agents into the question-to-report flow.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/biquery/agents"
	"github.com/BaSui01/biquery/dataset"
	"github.com/BaSui01/biquery/llm"
	"github.com/BaSui01/biquery/metrics"
	"github.com/BaSui01/biquery/pipeline"
	"github.com/BaSui01/biquery/tools"
)

// Step names in the analysis chain.
const (
	StepInterpret  = "interpret"
	StepAnalyze    = "analyze"
	StepVisualize  = "visualize"
	StepReport     = "report"
	StepSynthesize = "synthesize"
)

// Options configures the assistant.
type Options struct {
	// Agent tunes every agent's model calls.
	Agent agents.Options
	// ToolTimeout bounds one metrics engine call. Defaults to 10s.
	ToolTimeout time.Duration
}

// Report is the complete outcome of one processed question.
type Report struct {
	RunID    string                `json:"run_id"`
	Question string                `json:"question"`
	Steps    []pipeline.StepOutput `json:"steps"`
	// DetailedMetrics are engine results computed directly from the
	// question's keywords, independent of the analyst's narrative.
	DetailedMetrics []string      `json:"detailed_metrics,omitempty"`
	FinalInsight    string        `json:"final_insight"`
	Duration        time.Duration `json:"duration"`
}

// Format renders the report for the terminal.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nRun: %s\n", r.Question, r.RunID)
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n[%s] %s\n%s\n", s.Step, s.Agent, s.Output)
	}
	if len(r.DetailedMetrics) > 0 {
		b.WriteString("\nDetailed metrics:\n")
		for _, m := range r.DetailedMetrics {
			b.WriteString(m)
			b.WriteString("\n\n")
		}
	}
	fmt.Fprintf(&b, "\nFinal insight:\n%s\n", r.FinalInsight)
	return b.String()
}

// Assistant answers business questions over a sales dataset.
type Assistant struct {
	provider    llm.Provider
	engine      *metrics.Engine
	registry    *tools.Registry
	interpreter *agents.Agent
	analyst     *agents.Agent
	visualizer  *agents.Agent
	reporter    *agents.Agent
	controller  *agents.Agent
	logger      *zap.Logger
}

// New builds an assistant over a provider and a loaded dataset.
func New(provider llm.Provider, ds *dataset.Dataset, logger *zap.Logger, opts Options) (*Assistant, error) {
	if provider == nil {
		return nil, fmt.Errorf("assistant: provider is required")
	}
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("assistant: dataset is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ToolTimeout == 0 {
		opts.ToolTimeout = 10 * time.Second
	}

	engine := metrics.NewEngine(ds)
	registry := tools.NewRegistry(logger)
	err := registry.Register(metrics.ToolName, metrics.ToolFunc(engine), tools.Metadata{
		Schema:  metrics.ToolSchema(),
		Timeout: opts.ToolTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	return &Assistant{
		provider:    provider,
		engine:      engine,
		registry:    registry,
		interpreter: agents.NewQueryInterpreter(provider, logger, opts.Agent),
		analyst:     agents.NewDataAnalyst(provider, registry, logger, opts.Agent),
		visualizer:  agents.NewVisualizationSpecialist(provider, logger, opts.Agent),
		reporter:    agents.NewInsightReporter(provider, logger, opts.Agent),
		controller:  agents.NewController(provider, logger, opts.Agent),
		logger:      logger.Named("assistant"),
	}, nil
}

// Engine exposes the metrics engine for direct, offline calculations.
func (a *Assistant) Engine() *metrics.Engine { return a.engine }

// ProcessQuery runs the question through the four-step chain and attaches
// keyword-matched engine results. A step failure aborts the run.
func (a *Assistant) ProcessQuery(ctx context.Context, question string) (*Report, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("assistant: question is empty")
	}

	start := time.Now()
	runID := uuid.NewString()
	a.logger.Info("processing query",
		zap.String("run_id", runID),
		zap.String("question", question))

	chain := pipeline.NewChain("bi-analysis", a.logger,
		a.agentStep(StepInterpret, a.interpreter, interpretTask(question)),
		a.agentStep(StepAnalyze, a.analyst, analyzeTask(question), StepInterpret),
		a.agentStep(StepVisualize, a.visualizer, visualizeTask(question), StepAnalyze),
		a.agentStep(StepReport, a.reporter, reportTask(question), StepAnalyze, StepVisualize),
	)

	state, err := chain.Run(ctx, &pipeline.State{RunID: runID, Question: question})
	if err != nil {
		return nil, fmt.Errorf("assistant run %s: %w", runID, err)
	}

	report := &Report{
		RunID:           runID,
		Question:        question,
		Steps:           state.Outputs,
		DetailedMetrics: a.keywordMetrics(question),
	}
	if out, ok := state.Output(StepReport); ok {
		report.FinalInsight = out
	}

	// When the keyword pass produced exact numbers, the controller folds
	// them into the narrative so the final insight never drifts from the
	// engine's figures.
	if len(report.DetailedMetrics) > 0 && report.FinalInsight != "" {
		if out, err := a.synthesize(ctx, report); err != nil {
			a.logger.Warn("synthesis failed, keeping reporter output",
				zap.String("run_id", runID), zap.Error(err))
		} else {
			report.Steps = append(report.Steps, *out)
			report.FinalInsight = out.Output
		}
	}
	report.Duration = time.Since(start)

	a.logger.Info("query processed",
		zap.String("run_id", runID),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// synthesize asks the controller to reconcile the reporter's narrative with
// the engine's exact figures.
func (a *Assistant) synthesize(ctx context.Context, report *Report) (*pipeline.StepOutput, error) {
	task := agents.Task{
		ID: StepSynthesize,
		Description: fmt.Sprintf(`Finalize the insight report for this question: %q

The draft report and the exact metric calculations are attached. Merge them:
keep the draft's structure, but make every number match the exact
calculations. Do not add new claims.`, report.Question),
		ExpectedOutput: "Final report with numbers matching the exact calculations",
		Context:        append([]string{report.FinalInsight}, report.DetailedMetrics...),
	}

	start := time.Now()
	result, err := a.controller.Execute(ctx, task)
	if err != nil {
		return nil, err
	}
	return &pipeline.StepOutput{
		Step:     StepSynthesize,
		Agent:    result.Agent,
		Output:   result.Output,
		Duration: time.Since(start),
	}, nil
}

// agentStep binds an agent and its task into a chain step, wiring the named
// earlier outputs into the task context.
func (a *Assistant) agentStep(name string, agent *agents.Agent, task agents.Task, contextSteps ...string) pipeline.Step {
	return pipeline.NewStepFunc(name, func(ctx context.Context, state *pipeline.State) (*pipeline.StepOutput, error) {
		task.ID = name
		for _, dep := range contextSteps {
			if out, ok := state.Output(dep); ok {
				task.Context = append(task.Context, out)
			}
		}

		result, err := agent.Execute(ctx, task)
		if err != nil {
			return nil, err
		}
		return &pipeline.StepOutput{
			Step:     name,
			Agent:    result.Agent,
			Output:   result.Output,
			Duration: result.Duration,
		}, nil
	})
}

func interpretTask(question string) agents.Task {
	return agents.Task{
		Description: fmt.Sprintf(`Analyze this business question: %q

Your job:
1. Identify what metric(s) need to be calculated
2. Determine any time period filters (Q1, Q2, specific months, etc.)
3. Identify any grouping dimensions (by product, region, channel, etc.)
4. Specify any limits (top 5, top 10, etc.)

Provide a clear, structured analysis of what needs to be calculated.`, question),
		ExpectedOutput: "Structured list of analytical requirements including metrics, time periods, and groupings",
	}
}

func analyzeTask(question string) agents.Task {
	return agents.Task{
		Description: fmt.Sprintf(`Based on the query interpretation, calculate the required metrics.

Original question: %q

Use the calculate_metric tool for every metric needed:
1. Identify the metric name (e.g. 'total_revenue', 'top_products')
2. Apply appropriate time filters if specified
3. Apply groupings if needed
4. Set limits for rankings if applicable

Provide the calculated results with clear labels.`, question),
		ExpectedOutput: "Calculated metrics with clear numerical results",
	}
}

func visualizeTask(question string) agents.Task {
	return agents.Task{
		Description: fmt.Sprintf(`Based on the analytical results, recommend appropriate visualizations.

Original question: %q

For the data analyzed, specify:
1. Chart type (bar, line, pie, etc.) and why it's appropriate
2. What should be on X and Y axes
3. Title for the visualization
4. Any color or formatting suggestions

Keep it practical and focused on clarity.`, question),
		ExpectedOutput: "Visualization specifications with chart type and design details",
	}
}

func reportTask(question string) agents.Task {
	return agents.Task{
		Description: fmt.Sprintf(`Create a comprehensive business insight report.

Original question: %q

Your report should include:
1. Executive Summary: 2-3 sentence overview of key finding
2. Key Metrics: Highlight the most important numbers
3. Analysis: What do these numbers mean for the business?
4. Trends: Any patterns or notable changes
5. Recommendations: 2-3 actionable next steps

Write in clear business language. Avoid jargon. Focus on actionable insights.`, question),
		ExpectedOutput: "Executive summary with key findings and actionable recommendations",
	}
}
