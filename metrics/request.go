package metrics

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metric names one of the nine supported computations.
type Metric string

const (
	TotalRevenue      Metric = "total_revenue"
	AverageOrderValue Metric = "average_order_value"
	TotalTransactions Metric = "total_transactions"
	CustomerCount     Metric = "customer_count"
	TopProducts       Metric = "top_products"
	TopRegions        Metric = "top_regions"
	RevenueByChannel  Metric = "revenue_by_channel"
	MonthlyRevenue    Metric = "monthly_revenue"
	GrowthRate        Metric = "growth_rate"
)

var metricDescriptions = map[Metric]string{
	TotalRevenue:      "Sum of all revenue",
	AverageOrderValue: "Average revenue per transaction",
	TotalTransactions: "Total number of transactions",
	CustomerCount:     "Number of unique customers",
	TopProducts:       "Products ranked by revenue",
	TopRegions:        "Regions ranked by revenue",
	RevenueByChannel:  "Revenue by sales channel",
	MonthlyRevenue:    "Revenue by month",
	GrowthRate:        "Month-over-month growth rate",
}

// Metrics lists the supported metric names in stable order.
func Metrics() []Metric {
	names := make([]Metric, 0, len(metricDescriptions))
	for m := range metricDescriptions {
		names = append(names, m)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Describe returns the one-line description of a metric, or "".
func Describe(m Metric) string { return metricDescriptions[m] }

// Dimension is a categorical field aggregates can be partitioned by.
type Dimension string

const (
	ByNone    Dimension = ""
	ByProduct Dimension = "product"
	ByRegion  Dimension = "region"
	ByChannel Dimension = "channel"
)

// ParseDimension parses a grouping dimension. Empty and "none" mean no
// grouping.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ByNone, nil
	case "product":
		return ByProduct, nil
	case "region":
		return ByRegion, nil
	case "channel":
		return ByChannel, nil
	default:
		return ByNone, NewError(ErrInvalidRequest,
			"unknown grouping dimension %q (supported: product, region, channel)", s)
	}
}

// PeriodKind discriminates time filters.
type PeriodKind int

const (
	PeriodAll PeriodKind = iota
	PeriodQuarter
	PeriodMonth
	PeriodYear
)

// Period restricts the dataset to a quarter, a named month, or a year.
// The zero value matches everything.
type Period struct {
	Kind    PeriodKind
	Quarter int        // 1-4 when Kind == PeriodQuarter
	Month   time.Month // when Kind == PeriodMonth
	Year    int        // when Kind == PeriodYear
}

// String returns the canonical form of the period ("all", "Q1", "January",
// "2024").
func (p Period) String() string {
	switch p.Kind {
	case PeriodQuarter:
		return "Q" + strconv.Itoa(p.Quarter)
	case PeriodMonth:
		return p.Month.String()
	case PeriodYear:
		return strconv.Itoa(p.Year)
	default:
		return "all"
	}
}

// ParsePeriod parses a time filter: "all" (or empty), Q1-Q4, an English
// month name, or a 4-digit year.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Period{Kind: PeriodAll}, nil
	}

	if len(s) == 2 && (s[0] == 'Q' || s[0] == 'q') && s[1] >= '1' && s[1] <= '4' {
		return Period{Kind: PeriodQuarter, Quarter: int(s[1] - '0')}, nil
	}

	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(s, m.String()) {
			return Period{Kind: PeriodMonth, Month: m}, nil
		}
	}

	if year, err := strconv.Atoi(s); err == nil && year >= 1000 && year <= 9999 {
		return Period{Kind: PeriodYear, Year: year}, nil
	}

	return Period{}, NewError(ErrInvalidRequest,
		"malformed time period %q (expected Q1-Q4, a month name, a year, or \"all\")", s)
}

// Request is one metric computation request.
type Request struct {
	Metric  Metric    `json:"metric"`
	Period  Period    `json:"-"`
	GroupBy Dimension `json:"group_by,omitempty"`
	// Limit bounds ranking results. Defaults to 5.
	Limit int `json:"limit,omitempty"`
}

// DefaultRankingLimit is applied when a ranking request has no limit.
const DefaultRankingLimit = 5

func (r Request) limit() int {
	if r.Limit > 0 {
		return r.Limit
	}
	return DefaultRankingLimit
}
