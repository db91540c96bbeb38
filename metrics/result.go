package metrics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ResultKind discriminates the shape of a computed value.
type ResultKind string

const (
	KindScalar    ResultKind = "scalar"    // a single currency amount
	KindCount     ResultKind = "count"     // a single integer
	KindRanking   ResultKind = "ranking"   // top-n groups by revenue
	KindBreakdown ResultKind = "breakdown" // one amount per group
	KindSeries    ResultKind = "series"    // amounts in chronological order
	KindGrowth    ResultKind = "growth"    // period-over-period change
)

// GroupValue is one group's summed revenue.
type GroupValue struct {
	Key   string          `json:"key"`
	Value decimal.Decimal `json:"value"`
}

// SeriesPoint is one month's summed revenue.
type SeriesPoint struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// Growth describes a period-over-period revenue change.
type Growth struct {
	LatestLabel   string          `json:"latest_label"`
	Latest        decimal.Decimal `json:"latest"`
	PreviousLabel string          `json:"previous_label"`
	Previous      decimal.Decimal `json:"previous"`
	// RatePercent is (latest-previous)/previous*100, rounded to 2 decimals.
	RatePercent decimal.Decimal `json:"rate_percent"`
}

// Result is a computed metric value, structured for the caller and
// formattable for the report.
type Result struct {
	Metric  Metric     `json:"metric"`
	Period  string     `json:"period"`
	GroupBy Dimension  `json:"group_by,omitempty"`
	Kind    ResultKind `json:"kind"`

	Scalar decimal.Decimal `json:"scalar,omitempty"`
	Count  int             `json:"count,omitempty"`
	// CountUnit labels count results ("transactions", "unique customers").
	CountUnit string        `json:"count_unit,omitempty"`
	Groups    []GroupValue  `json:"groups,omitempty"`
	Series    []SeriesPoint `json:"series,omitempty"`
	Growth    *Growth       `json:"growth,omitempty"`
}

// Format renders the result as the human-readable text handed back to the
// analyst agent and the report.
func (r *Result) Format() string {
	var b strings.Builder
	switch r.Kind {
	case KindScalar:
		fmt.Fprintf(&b, "%s: $%s", r.Metric, formatAmount(r.Scalar))

	case KindCount:
		fmt.Fprintf(&b, "%s: %s %s", r.Metric, formatInt(r.Count), r.CountUnit)

	case KindRanking:
		fmt.Fprintf(&b, "%s (top %d):\n", r.Metric, len(r.Groups))
		for i, g := range r.Groups {
			fmt.Fprintf(&b, "%d. %s: $%s\n", i+1, g.Key, formatAmount(g.Value))
		}

	case KindBreakdown:
		fmt.Fprintf(&b, "%s:\n", r.Metric)
		for _, g := range r.Groups {
			if r.CountUnit != "" {
				fmt.Fprintf(&b, "- %s: %s %s\n", g.Key, formatInt(int(g.Value.IntPart())), r.CountUnit)
			} else {
				fmt.Fprintf(&b, "- %s: $%s\n", g.Key, formatAmount(g.Value))
			}
		}

	case KindSeries:
		fmt.Fprintf(&b, "%s:\n", r.Metric)
		for _, p := range r.Series {
			fmt.Fprintf(&b, "- %s: $%s\n", p.Label, formatAmount(p.Value))
		}

	case KindGrowth:
		fmt.Fprintf(&b, "%s:\n", r.Metric)
		fmt.Fprintf(&b, "Latest month (%s): $%s\n", r.Growth.LatestLabel, formatAmount(r.Growth.Latest))
		fmt.Fprintf(&b, "Previous month (%s): $%s\n", r.Growth.PreviousLabel, formatAmount(r.Growth.Previous))
		sign := ""
		if r.Growth.RatePercent.Sign() >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "Growth rate: %s%s%%", sign, r.Growth.RatePercent.StringFixed(2))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatAmount renders a currency amount with two decimals and thousands
// separators.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	out := groupThousands(intPart) + "." + fracPart
	if neg {
		return "-" + out
	}
	return out
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if strings.HasPrefix(s, "-") {
		return "-" + groupThousands(s[1:])
	}
	return groupThousands(s)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
