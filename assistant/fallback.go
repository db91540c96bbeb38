package assistant

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/biquery/metrics"
)

// keywordMetrics runs the engine directly for metric intents that are
// obvious from the question's wording. The agents narrate; this pass
// guarantees exact numbers are on the report regardless.
func (a *Assistant) keywordMetrics(question string) []string {
	q := strings.ToLower(question)
	var requests []metrics.Request

	if strings.Contains(q, "revenue") && strings.Contains(q, "total") {
		requests = append(requests, metrics.Request{Metric: metrics.TotalRevenue})
	}
	if strings.Contains(q, "top") && strings.Contains(q, "product") {
		limit := metrics.DefaultRankingLimit
		if strings.Contains(q, "top 10") || strings.Contains(q, "top ten") {
			limit = 10
		}
		requests = append(requests, metrics.Request{Metric: metrics.TopProducts, Limit: limit})
	}
	if strings.Contains(q, "growth") {
		requests = append(requests, metrics.Request{Metric: metrics.GrowthRate})
	}
	if strings.Contains(q, "customer") {
		requests = append(requests, metrics.Request{Metric: metrics.CustomerCount})
	}
	if strings.Contains(q, "region") && strings.Contains(q, "top") {
		requests = append(requests, metrics.Request{Metric: metrics.TopRegions})
	}
	if strings.Contains(q, "q1") || strings.Contains(q, "quarter 1") {
		requests = append(requests, metrics.Request{
			Metric: metrics.TotalRevenue,
			Period: metrics.Period{Kind: metrics.PeriodQuarter, Quarter: 1},
		})
	}

	var results []string
	for _, req := range requests {
		res, err := a.engine.Calculate(req)
		if err != nil {
			a.logger.Warn("keyword metric failed",
				zap.String("metric", string(req.Metric)),
				zap.Error(err))
			continue
		}
		results = append(results, res.Format())
	}
	return results
}
