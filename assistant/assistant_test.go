package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/biquery/dataset"
	"github.com/BaSui01/biquery/llm"
)

type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
}

func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: "script exhausted"}
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string                        { return "scripted" }
func (p *scriptedProvider) SupportsNativeFunctionCalling() bool { return true }

func text(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "test",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
	}
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	day := func(d string) time.Time {
		parsed, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		return parsed
	}
	amount := decimal.RequireFromString
	return dataset.New([]dataset.SalesRecord{
		{TransactionID: "TXN00001", Date: day("2024-01-10"), Product: "Laptop", Region: "North",
			Channel: "Online", Quantity: 1, UnitPrice: amount("100.00"), CustomerID: "CUST1001", Revenue: amount("100.00")},
		{TransactionID: "TXN00002", Date: day("2024-02-10"), Product: "Mouse", Region: "South",
			Channel: "Retail", Quantity: 2, UnitPrice: amount("55.00"), CustomerID: "CUST1002", Revenue: amount("110.00")},
	})
}

func newAssistant(t *testing.T, provider llm.Provider) *Assistant {
	t.Helper()
	a, err := New(provider, testDataset(t), zap.NewNop(), Options{})
	require.NoError(t, err)
	return a
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testDataset(t), zap.NewNop(), Options{})
	assert.Error(t, err)

	_, err = New(&scriptedProvider{}, dataset.New(nil), zap.NewNop(), Options{})
	assert.Error(t, err)
}

func TestProcessQuery(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		text("Metric needed: total_revenue, no filters."),
		text("total_revenue: $210.00"),
		text("Use a single KPI card; no axes needed."),
		text("Revenue stands at $210.00 across both months."),
		text("Final: revenue is exactly $210.00."),
	}}
	a := newAssistant(t, provider)

	report, err := a.ProcessQuery(context.Background(), "What is our total revenue?")
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)

	// Four chain steps plus the controller's synthesis.
	require.Len(t, report.Steps, 5)
	assert.Equal(t, StepInterpret, report.Steps[0].Step)
	assert.Equal(t, StepReport, report.Steps[3].Step)
	assert.Equal(t, StepSynthesize, report.Steps[4].Step)

	// The keyword pass computed the exact number independently.
	require.Len(t, report.DetailedMetrics, 1)
	assert.Equal(t, "total_revenue: $210.00", report.DetailedMetrics[0])

	assert.Equal(t, "Final: revenue is exactly $210.00.", report.FinalInsight)

	formatted := report.Format()
	assert.Contains(t, formatted, "Question: What is our total revenue?")
	assert.Contains(t, formatted, "Detailed metrics:")
	assert.Contains(t, formatted, "Final insight:")

	// Only the analyst's request carries tool schemas.
	require.Len(t, provider.requests, 5)
	assert.Empty(t, provider.requests[0].Tools)
	assert.NotEmpty(t, provider.requests[1].Tools)
	assert.Empty(t, provider.requests[2].Tools)
}

func TestProcessQueryWithoutKeywordMatch(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		text("interpretation"),
		text("analysis"),
		text("visualization"),
		text("final report"),
	}}
	a := newAssistant(t, provider)

	report, err := a.ProcessQuery(context.Background(), "How are sales trending overall?")
	require.NoError(t, err)

	require.Len(t, report.Steps, 4)
	assert.Empty(t, report.DetailedMetrics)
	assert.Equal(t, "final report", report.FinalInsight)
}

func TestProcessQueryEmptyQuestion(t *testing.T) {
	a := newAssistant(t, &scriptedProvider{})

	_, err := a.ProcessQuery(context.Background(), "   ")
	assert.Error(t, err)
}

func TestProcessQueryStepFailure(t *testing.T) {
	// Only the interpreter's response is scripted; the analyst's call fails.
	provider := &scriptedProvider{responses: []*llm.ChatResponse{text("interpretation")}}
	a := newAssistant(t, provider)

	_, err := a.ProcessQuery(context.Background(), "How are sales trending overall?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze")
}

func TestKeywordMetrics(t *testing.T) {
	a := newAssistant(t, &scriptedProvider{})

	cases := []struct {
		question string
		want     int
	}{
		{"What is our total revenue?", 1},
		{"Show me the top 10 products", 1},
		{"What is our month-over-month growth rate?", 1},
		{"How many customers do we have?", 1},
		{"Top regions and total revenue for Q1", 3},
		{"Tell me something interesting", 0},
	}
	for _, tc := range cases {
		got := a.keywordMetrics(tc.question)
		assert.Len(t, got, tc.want, "question %q", tc.question)
	}

	// "top 10" widens the ranking limit; both products fit either way, so
	// check the request path via a richer phrase instead.
	results := a.keywordMetrics("top ten products")
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "top_products")
}

func TestKeywordMetricsSkipsFailures(t *testing.T) {
	a := newAssistant(t, &scriptedProvider{})

	// The fixture has two months, so growth works; a Q3 dataset gap would
	// not. Growth on this fixture: 100 -> 110 is +10%.
	results := a.keywordMetrics("growth")
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "+10.00%")
}
