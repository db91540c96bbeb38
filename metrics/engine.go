// Package metrics implements the business metrics engine: nine fixed KPI
// computations over an immutable sales dataset, with optional time filtering
// and dimensional grouping.
//
// Every computation is a pure function of (dataset, request). The engine
// holds no mutable state, so a single Engine may serve concurrent callers.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/BaSui01/biquery/dataset"
)

// Engine computes metrics over a loaded dataset.
type Engine struct {
	ds *dataset.Dataset
}

// NewEngine creates an engine over the given dataset.
func NewEngine(ds *dataset.Dataset) *Engine {
	return &Engine{ds: ds}
}

// Calculate executes one metric request. It returns a typed *Error for
// unknown metrics, malformed filters, empty filter windows, and undefined
// divisions; the dataset is never mutated.
func (e *Engine) Calculate(req Request) (*Result, error) {
	if _, ok := metricDescriptions[req.Metric]; !ok {
		names := make([]string, 0, len(metricDescriptions))
		for _, m := range Metrics() {
			names = append(names, string(m))
		}
		return nil, NewError(ErrInvalidRequest,
			"unknown metric %q (available: %s)", req.Metric, strings.Join(names, ", "))
	}

	records := e.filter(req.Period)
	if len(records) == 0 {
		return nil, NewError(ErrEmptyResult, "no data for time period %s", req.Period)
	}

	result := &Result{
		Metric:  req.Metric,
		Period:  req.Period.String(),
		GroupBy: req.GroupBy,
	}

	switch req.Metric {
	case TotalRevenue:
		if req.GroupBy != ByNone {
			return e.groupedRevenue(result, records, req.GroupBy)
		}
		result.Kind = KindScalar
		result.Scalar = sumRevenue(records)

	case AverageOrderValue:
		if req.GroupBy != ByNone {
			return e.groupedAverage(result, records, req.GroupBy)
		}
		result.Kind = KindScalar
		result.Scalar = averageRevenue(records)

	case TotalTransactions:
		if req.GroupBy != ByNone {
			return e.groupedCount(result, records, req.GroupBy, "transactions",
				func(rs []dataset.SalesRecord) int { return len(rs) })
		}
		result.Kind = KindCount
		result.Count = len(records)
		result.CountUnit = "transactions"

	case CustomerCount:
		if req.GroupBy != ByNone {
			return e.groupedCount(result, records, req.GroupBy, "unique customers", distinctCustomers)
		}
		result.Kind = KindCount
		result.Count = distinctCustomers(records)
		result.CountUnit = "unique customers"

	case TopProducts:
		result.Kind = KindRanking
		result.Groups = rankBySummedRevenue(records, rankingDimension(req, ByProduct), req.limit())

	case TopRegions:
		result.Kind = KindRanking
		result.Groups = rankBySummedRevenue(records, rankingDimension(req, ByRegion), req.limit())

	case RevenueByChannel:
		result.Kind = KindBreakdown
		result.Groups = rankBySummedRevenue(records, rankingDimension(req, ByChannel), 0)

	case MonthlyRevenue:
		if req.GroupBy != ByNone {
			return nil, NewError(ErrInvalidRequest, "metric %s does not support grouping", req.Metric)
		}
		result.Kind = KindSeries
		result.Series = monthlySeries(records)

	case GrowthRate:
		if req.GroupBy != ByNone {
			return nil, NewError(ErrInvalidRequest, "metric %s does not support grouping", req.Metric)
		}
		growth, err := monthOverMonthGrowth(records)
		if err != nil {
			return nil, err
		}
		result.Kind = KindGrowth
		result.Growth = growth
	}

	return result, nil
}

// ListMetrics returns the available-metrics help text.
func (e *Engine) ListMetrics() string {
	var b strings.Builder
	b.WriteString("Available metrics:\n")
	for _, m := range Metrics() {
		fmt.Fprintf(&b, "- %s: %s\n", m, Describe(m))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) filter(p Period) []dataset.SalesRecord {
	switch p.Kind {
	case PeriodQuarter:
		return e.ds.Select(func(r dataset.SalesRecord) bool { return r.Quarter() == p.Quarter })
	case PeriodMonth:
		return e.ds.Select(func(r dataset.SalesRecord) bool { return r.Date.Month() == p.Month })
	case PeriodYear:
		return e.ds.Select(func(r dataset.SalesRecord) bool { return r.Date.Year() == p.Year })
	default:
		return e.ds.Select(func(dataset.SalesRecord) bool { return true })
	}
}

// rankingDimension lets an explicit group_by override a ranking metric's
// default dimension, matching the original tool's behavior.
func rankingDimension(req Request, fallback Dimension) Dimension {
	if req.GroupBy != ByNone {
		return req.GroupBy
	}
	return fallback
}

func dimensionKey(r dataset.SalesRecord, dim Dimension) string {
	switch dim {
	case ByProduct:
		return r.Product
	case ByRegion:
		return r.Region
	case ByChannel:
		return r.Channel
	default:
		return ""
	}
}

func partition(records []dataset.SalesRecord, dim Dimension) map[string][]dataset.SalesRecord {
	parts := make(map[string][]dataset.SalesRecord)
	for _, r := range records {
		key := dimensionKey(r, dim)
		parts[key] = append(parts[key], r)
	}
	return parts
}

func sumRevenue(records []dataset.SalesRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Revenue)
	}
	return total
}

func averageRevenue(records []dataset.SalesRecord) decimal.Decimal {
	return sumRevenue(records).DivRound(decimal.NewFromInt(int64(len(records))), 2)
}

func distinctCustomers(records []dataset.SalesRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.CustomerID] = struct{}{}
	}
	return len(seen)
}

// rankBySummedRevenue sums revenue per group and sorts descending by value,
// breaking ties alphabetically by group key. limit <= 0 keeps all groups.
func rankBySummedRevenue(records []dataset.SalesRecord, dim Dimension, limit int) []GroupValue {
	groups := make([]GroupValue, 0)
	for key, part := range partition(records, dim) {
		groups = append(groups, GroupValue{Key: key, Value: sumRevenue(part)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].Value.Equal(groups[j].Value) {
			return groups[i].Value.GreaterThan(groups[j].Value)
		}
		return groups[i].Key < groups[j].Key
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

func (e *Engine) groupedRevenue(result *Result, records []dataset.SalesRecord, dim Dimension) (*Result, error) {
	result.Kind = KindBreakdown
	result.Groups = rankBySummedRevenue(records, dim, 0)
	return result, nil
}

func (e *Engine) groupedAverage(result *Result, records []dataset.SalesRecord, dim Dimension) (*Result, error) {
	groups := make([]GroupValue, 0)
	for key, part := range partition(records, dim) {
		groups = append(groups, GroupValue{Key: key, Value: averageRevenue(part)})
	}
	sortGroupsDescending(groups)
	result.Kind = KindBreakdown
	result.Groups = groups
	return result, nil
}

func (e *Engine) groupedCount(result *Result, records []dataset.SalesRecord, dim Dimension, unit string, count func([]dataset.SalesRecord) int) (*Result, error) {
	groups := make([]GroupValue, 0)
	for key, part := range partition(records, dim) {
		groups = append(groups, GroupValue{Key: key, Value: decimal.NewFromInt(int64(count(part)))})
	}
	sortGroupsDescending(groups)
	result.Kind = KindBreakdown
	result.CountUnit = unit
	result.Groups = groups
	return result, nil
}

func sortGroupsDescending(groups []GroupValue) {
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].Value.Equal(groups[j].Value) {
			return groups[i].Value.GreaterThan(groups[j].Value)
		}
		return groups[i].Key < groups[j].Key
	})
}

// monthKey orders records into calendar-month buckets across years.
type monthKey struct {
	year  int
	month int
}

func monthBuckets(records []dataset.SalesRecord) ([]monthKey, map[monthKey]decimal.Decimal) {
	sums := make(map[monthKey]decimal.Decimal)
	for _, r := range records {
		k := monthKey{year: r.Date.Year(), month: int(r.Date.Month())}
		sums[k] = sums[k].Add(r.Revenue)
	}
	keys := make([]monthKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	return keys, sums
}

func monthLabel(k monthKey, multiYear bool) string {
	name := timeMonthName(k.month)
	if multiYear {
		return fmt.Sprintf("%s %d", name, k.year)
	}
	return name
}

func timeMonthName(m int) string {
	names := []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
	return names[m-1]
}

func monthlySeries(records []dataset.SalesRecord) []SeriesPoint {
	keys, sums := monthBuckets(records)
	multiYear := len(keys) > 0 && keys[0].year != keys[len(keys)-1].year
	series := make([]SeriesPoint, 0, len(keys))
	for _, k := range keys {
		series = append(series, SeriesPoint{Label: monthLabel(k, multiYear), Value: sums[k]})
	}
	return series
}

func monthOverMonthGrowth(records []dataset.SalesRecord) (*Growth, error) {
	keys, sums := monthBuckets(records)
	if len(keys) < 2 {
		return nil, NewError(ErrInvalidRequest, "growth_rate requires at least two months of data")
	}

	multiYear := keys[0].year != keys[len(keys)-1].year
	latestKey := keys[len(keys)-1]
	previousKey := keys[len(keys)-2]
	latest := sums[latestKey]
	previous := sums[previousKey]

	if previous.IsZero() {
		return nil, NewError(ErrDivisionUndefined,
			"growth rate undefined: previous month (%s) has zero revenue", monthLabel(previousKey, multiYear))
	}

	rate := latest.Sub(previous).
		Div(previous).
		Mul(decimal.NewFromInt(100)).
		Round(2)

	return &Growth{
		LatestLabel:   monthLabel(latestKey, multiYear),
		Latest:        latest,
		PreviousLabel: monthLabel(previousKey, multiYear),
		Previous:      previous,
		RatePercent:   rate,
	}, nil
}
