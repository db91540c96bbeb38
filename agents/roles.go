package agents

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/biquery/llm"
	"github.com/BaSui01/biquery/metrics"
	"github.com/BaSui01/biquery/tools"
)

func metricList() string {
	names := make([]string, 0, 9)
	for _, m := range metrics.Metrics() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// NewController creates the orchestrating agent.
func NewController(provider llm.Provider, logger *zap.Logger, opts Options) *Agent {
	return New(Role{
		Name: "Business Intelligence Controller",
		Goal: "Orchestrate specialized agents to deliver accurate, comprehensive business insights",
		Backstory: "You are a senior business analyst who leads a team of specialists. " +
			"You excel at breaking down complex business questions into manageable tasks " +
			"and coordinating your team to deliver excellent results. You understand when " +
			"to delegate, how to combine insights, and how to present findings clearly.",
		AllowDelegation: true,
	}, provider, nil, logger, opts)
}

// NewQueryInterpreter creates the agent that turns natural language into
// analytical requirements.
func NewQueryInterpreter(provider llm.Provider, logger *zap.Logger, opts Options) *Agent {
	return New(Role{
		Name: "Query Interpreter",
		Goal: "Transform natural language business questions into structured analytical requirements",
		Backstory: "You are an expert at understanding stakeholder needs. You have " +
			"years of experience translating vague business questions into specific data " +
			"requirements. You know all the common business metrics and can identify what " +
			"data and calculations are needed to answer any question.\n\n" +
			"Available metrics: " + metricList() + ".\n" +
			"Time periods: Q1, Q2, Q3, Q4, or month names (January, February, etc.)\n" +
			"Groupings: product, region, channel",
	}, provider, nil, logger, opts)
}

// NewDataAnalyst creates the agent that drives the metrics engine. It is the
// only agent with tool access.
func NewDataAnalyst(provider llm.Provider, registry *tools.Registry, logger *zap.Logger, opts Options) *Agent {
	return New(Role{
		Name: "Data Analyst",
		Goal: "Execute precise metric calculations and uncover meaningful data patterns",
		Backstory: "You are a skilled data analyst with expertise in business metrics. " +
			"You have access to a business metrics engine that can calculate various metrics.\n\n" +
			"Available metrics: " + metricList() + ".\n\n" +
			"You're detail-oriented and always validate your results.",
	}, provider, registry, logger, opts)
}

// NewVisualizationSpecialist creates the agent that recommends chart designs.
func NewVisualizationSpecialist(provider llm.Provider, logger *zap.Logger, opts Options) *Agent {
	return New(Role{
		Name: "Visualization Specialist",
		Goal: "Design clear, effective visualizations that communicate insights",
		Backstory: "You are a data visualization expert who knows which charts work " +
			"best for different types of data. You understand that:\n" +
			"- Revenue trends -> Line charts\n" +
			"- Product comparisons -> Bar charts\n" +
			"- Regional distribution -> Pie charts or bar charts\n" +
			"- Time series -> Line charts\n" +
			"- Rankings -> Horizontal bar charts\n\n" +
			"You always consider your audience and design for maximum clarity.",
	}, provider, nil, logger, opts)
}

// NewInsightReporter creates the agent that writes the final report.
func NewInsightReporter(provider llm.Provider, logger *zap.Logger, opts Options) *Agent {
	return New(Role{
		Name: "Business Insight Reporter",
		Goal: "Transform analytical results into clear, actionable business insights",
		Backstory: "You are a business communication specialist who excels at " +
			"translating technical analysis into compelling narratives. You know how to " +
			"write for executives, highlight what matters, and provide recommendations " +
			"that drive decisions. Your reports are always clear, concise, and actionable.\n\n" +
			"Format your insights with:\n" +
			"- Clear headline summarizing key finding\n" +
			"- Supporting data points\n" +
			"- Business context\n" +
			"- Actionable recommendations",
	}, provider, nil, logger, opts)
}
