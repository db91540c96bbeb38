package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/biquery/dataset"
)

func genRecords(t *rapid.T) []dataset.SalesRecord {
	products := []string{"Laptop", "Mouse", "Keyboard", "Monitor", "Headphones"}
	regions := []string{"North", "South", "East", "West"}
	channels := []string{"Online", "Retail", "Partner"}

	n := rapid.IntRange(1, 200).Draw(t, "n")
	records := make([]dataset.SalesRecord, 0, n)
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("rec%d", i)
		month := rapid.IntRange(1, 12).Draw(t, label+".month")
		day := rapid.IntRange(1, 28).Draw(t, label+".day")
		qty := rapid.IntRange(1, 9).Draw(t, label+".qty")
		priceCents := rapid.Int64Range(1, 100_000).Draw(t, label+".price")
		unit := decimal.New(priceCents, -2)

		records = append(records, dataset.SalesRecord{
			TransactionID: fmt.Sprintf("TXN%05d", i),
			Date:          time.Date(2024, time.Month(month), day, 0, 0, 0, 0, time.UTC),
			Product:       rapid.SampledFrom(products).Draw(t, label+".product"),
			Region:        rapid.SampledFrom(regions).Draw(t, label+".region"),
			Channel:       rapid.SampledFrom(channels).Draw(t, label+".channel"),
			Quantity:      qty,
			UnitPrice:     unit,
			CustomerID:    fmt.Sprintf("CUST%d", rapid.IntRange(1000, 1050).Draw(t, label+".cust")),
			Revenue:       unit.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return records
}

// Revenue amounts are exact cent values, so the engine's total must equal an
// integer-cent accumulation with no drift.
func TestTotalRevenueIsExact(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genRecords(t)
		e := NewEngine(dataset.New(records))

		res, err := e.Calculate(Request{Metric: TotalRevenue})
		require.NoError(t, err)

		var cents int64
		for _, r := range records {
			cents += r.Revenue.Mul(decimal.NewFromInt(100)).IntPart()
		}
		require.True(t, res.Scalar.Equal(decimal.New(cents, -2)),
			"engine %s, cents %d", res.Scalar, cents)
	})
}

func TestGroupedRevenueSumsToTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genRecords(t)
		e := NewEngine(dataset.New(records))

		total, err := e.Calculate(Request{Metric: TotalRevenue})
		require.NoError(t, err)

		for _, dim := range []Dimension{ByProduct, ByRegion, ByChannel} {
			grouped, err := e.Calculate(Request{Metric: TotalRevenue, GroupBy: dim})
			require.NoError(t, err)

			sum := decimal.Zero
			for _, g := range grouped.Groups {
				sum = sum.Add(g.Value)
			}
			require.True(t, sum.Equal(total.Scalar),
				"dimension %s: groups sum to %s, total %s", dim, sum, total.Scalar)
		}
	})
}

func TestRankingsAreBoundedAndOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genRecords(t)
		e := NewEngine(dataset.New(records))
		limit := rapid.IntRange(1, 10).Draw(t, "limit")

		res, err := e.Calculate(Request{Metric: TopProducts, Limit: limit})
		require.NoError(t, err)
		require.LessOrEqual(t, len(res.Groups), limit)

		for i := 1; i < len(res.Groups); i++ {
			prev, cur := res.Groups[i-1], res.Groups[i]
			require.False(t, cur.Value.GreaterThan(prev.Value),
				"rank %d (%s) above rank %d (%s)", i, cur.Value, i-1, prev.Value)
			if cur.Value.Equal(prev.Value) {
				require.Less(t, prev.Key, cur.Key)
			}
		}
	})
}

func TestCustomerCountIgnoresDuplicates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genRecords(t)
		// Duplicating every record must not change the distinct count.
		doubled := append(append([]dataset.SalesRecord{}, records...), records...)

		base := NewEngine(dataset.New(records))
		dup := NewEngine(dataset.New(doubled))

		a, err := base.Calculate(Request{Metric: CustomerCount})
		require.NoError(t, err)
		b, err := dup.Calculate(Request{Metric: CustomerCount})
		require.NoError(t, err)

		require.Equal(t, a.Count, b.Count)
		require.LessOrEqual(t, a.Count, len(records))
	})
}
