package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/biquery/dataset"
)

func rec(t *testing.T, date, product, region, channel, customer string, qty int, price string) dataset.SalesRecord {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	unit := decimal.RequireFromString(price)
	return dataset.SalesRecord{
		TransactionID: "TXN-" + date + "-" + product,
		Date:          d,
		Product:       product,
		Region:        region,
		Channel:       channel,
		Quantity:      qty,
		UnitPrice:     unit,
		CustomerID:    customer,
		Revenue:       unit.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	return dataset.New([]dataset.SalesRecord{
		rec(t, "2024-01-05", "Laptop", "North", "Online", "CUST1001", 1, "100.00"),
		rec(t, "2024-01-20", "Mouse", "South", "Retail", "CUST1002", 2, "10.25"),
		rec(t, "2024-02-03", "Laptop", "North", "Online", "CUST1001", 1, "110.00"),
		rec(t, "2024-02-14", "Keyboard", "East", "Partner", "CUST1003", 3, "20.00"),
		rec(t, "2024-03-09", "Monitor", "West", "Online", "CUST1002", 1, "250.50"),
		rec(t, "2024-04-11", "Mouse", "North", "Retail", "CUST1004", 4, "10.25"),
	})
}

func TestCalculateTotalRevenue(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: TotalRevenue})
	require.NoError(t, err)

	assert.Equal(t, KindScalar, res.Kind)
	// 100 + 20.50 + 110 + 60 + 250.50 + 41 = 582.00, exactly.
	assert.True(t, res.Scalar.Equal(decimal.RequireFromString("582.00")),
		"got %s", res.Scalar)
	assert.Equal(t, "total_revenue: $582.00", res.Format())
}

func TestCalculateTotalRevenueQuarterFilter(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{
		Metric: TotalRevenue,
		Period: Period{Kind: PeriodQuarter, Quarter: 1},
	})
	require.NoError(t, err)

	// Q1 covers January through March.
	assert.True(t, res.Scalar.Equal(decimal.RequireFromString("541.00")),
		"got %s", res.Scalar)
	assert.Equal(t, "Q1", res.Period)
}

func TestCalculateAverageOrderValue(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: AverageOrderValue})
	require.NoError(t, err)

	// 582.00 / 6 = 97.00
	assert.True(t, res.Scalar.Equal(decimal.RequireFromString("97.00")),
		"got %s", res.Scalar)
}

func TestCalculateCounts(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: TotalTransactions})
	require.NoError(t, err)
	assert.Equal(t, KindCount, res.Kind)
	assert.Equal(t, 6, res.Count)
	assert.Equal(t, "total_transactions: 6 transactions", res.Format())

	res, err = e.Calculate(Request{Metric: CustomerCount})
	require.NoError(t, err)
	// CUST1001 and CUST1002 both repeat.
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, "customer_count: 4 unique customers", res.Format())
}

func TestCalculateTopProducts(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: TopProducts})
	require.NoError(t, err)
	require.Equal(t, KindRanking, res.Kind)
	require.Len(t, res.Groups, 4)

	assert.Equal(t, "Monitor", res.Groups[0].Key)
	assert.Equal(t, "Laptop", res.Groups[1].Key)
	assert.True(t, res.Groups[1].Value.Equal(decimal.RequireFromString("210.00")))
	// Mouse totals 20.50+41.00 = 61.50, just above Keyboard's 60.00.
	assert.Equal(t, "Mouse", res.Groups[2].Key)
	assert.Equal(t, "Keyboard", res.Groups[3].Key)
}

func TestCalculateRankingTieBreaksAlphabetically(t *testing.T) {
	ds := dataset.New([]dataset.SalesRecord{
		rec(t, "2024-01-01", "Zebra", "North", "Online", "CUST1001", 1, "50.00"),
		rec(t, "2024-01-02", "Alpha", "North", "Online", "CUST1002", 1, "50.00"),
	})
	e := NewEngine(ds)

	res, err := e.Calculate(Request{Metric: TopProducts})
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "Alpha", res.Groups[0].Key)
	assert.Equal(t, "Zebra", res.Groups[1].Key)
}

func TestCalculateRankingLimit(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: TopProducts, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "Monitor", res.Groups[0].Key)
}

func TestCalculateTopRegionsGroupByOverride(t *testing.T) {
	e := NewEngine(testDataset(t))

	// group_by swaps the ranking dimension.
	res, err := e.Calculate(Request{Metric: TopRegions, GroupBy: ByChannel})
	require.NoError(t, err)
	require.Len(t, res.Groups, 3)
	assert.Equal(t, "Online", res.Groups[0].Key)
	assert.True(t, res.Groups[0].Value.Equal(decimal.RequireFromString("460.50")))
}

func TestCalculateRevenueByChannel(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: RevenueByChannel})
	require.NoError(t, err)
	require.Equal(t, KindBreakdown, res.Kind)
	require.Len(t, res.Groups, 3)

	assert.Equal(t, "Online", res.Groups[0].Key)
	assert.Equal(t, "Retail", res.Groups[1].Key)
	assert.True(t, res.Groups[1].Value.Equal(decimal.RequireFromString("61.50")))
	assert.Equal(t, "Partner", res.Groups[2].Key)
}

func TestCalculateGroupedAggregates(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: TotalRevenue, GroupBy: ByRegion})
	require.NoError(t, err)
	require.Equal(t, KindBreakdown, res.Kind)
	require.Len(t, res.Groups, 4)
	assert.Equal(t, "North", res.Groups[0].Key)
	assert.True(t, res.Groups[0].Value.Equal(decimal.RequireFromString("251.00")))

	res, err = e.Calculate(Request{Metric: CustomerCount, GroupBy: ByRegion})
	require.NoError(t, err)
	require.Equal(t, KindBreakdown, res.Kind)
	assert.Equal(t, "unique customers", res.CountUnit)
	// North has CUST1001 (twice) and CUST1004.
	assert.Equal(t, "North", res.Groups[0].Key)
	assert.True(t, res.Groups[0].Value.Equal(decimal.NewFromInt(2)))
}

func TestCalculateMonthlyRevenue(t *testing.T) {
	e := NewEngine(testDataset(t))

	res, err := e.Calculate(Request{Metric: MonthlyRevenue})
	require.NoError(t, err)
	require.Equal(t, KindSeries, res.Kind)
	require.Len(t, res.Series, 4)

	assert.Equal(t, "January", res.Series[0].Label)
	assert.True(t, res.Series[0].Value.Equal(decimal.RequireFromString("120.50")))
	assert.Equal(t, "April", res.Series[3].Label)
}

func TestCalculateMonthlyRevenueRejectsGrouping(t *testing.T) {
	e := NewEngine(testDataset(t))

	_, err := e.Calculate(Request{Metric: MonthlyRevenue, GroupBy: ByRegion})
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))
}

func TestCalculateGrowthRate(t *testing.T) {
	ds := dataset.New([]dataset.SalesRecord{
		rec(t, "2024-01-15", "Laptop", "North", "Online", "CUST1001", 1, "100.00"),
		rec(t, "2024-02-15", "Laptop", "North", "Online", "CUST1001", 1, "110.00"),
	})
	e := NewEngine(ds)

	res, err := e.Calculate(Request{Metric: GrowthRate})
	require.NoError(t, err)
	require.Equal(t, KindGrowth, res.Kind)
	require.NotNil(t, res.Growth)

	assert.Equal(t, "February", res.Growth.LatestLabel)
	assert.Equal(t, "January", res.Growth.PreviousLabel)
	assert.True(t, res.Growth.RatePercent.Equal(decimal.RequireFromString("10.00")),
		"got %s", res.Growth.RatePercent)
	assert.Contains(t, res.Format(), "Growth rate: +10.00%")

	// Same customer both months.
	customers, err := e.Calculate(Request{Metric: CustomerCount})
	require.NoError(t, err)
	assert.Equal(t, 1, customers.Count)
}

func TestCalculateGrowthRateZeroBaseline(t *testing.T) {
	ds := dataset.New([]dataset.SalesRecord{
		rec(t, "2024-01-15", "Laptop", "North", "Online", "CUST1001", 1, "0.00"),
		rec(t, "2024-02-15", "Laptop", "North", "Online", "CUST1001", 1, "110.00"),
	})
	e := NewEngine(ds)

	_, err := e.Calculate(Request{Metric: GrowthRate})
	assert.Equal(t, ErrDivisionUndefined, CodeOf(err))
}

func TestCalculateGrowthRateSingleMonth(t *testing.T) {
	ds := dataset.New([]dataset.SalesRecord{
		rec(t, "2024-01-15", "Laptop", "North", "Online", "CUST1001", 1, "100.00"),
	})
	e := NewEngine(ds)

	_, err := e.Calculate(Request{Metric: GrowthRate})
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))
}

func TestCalculateUnknownMetric(t *testing.T) {
	e := NewEngine(testDataset(t))

	_, err := e.Calculate(Request{Metric: "median_revenue"})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))
	assert.Contains(t, err.Error(), "total_revenue")
}

func TestCalculateEmptyPeriod(t *testing.T) {
	ds := dataset.New([]dataset.SalesRecord{
		rec(t, "2024-05-15", "Laptop", "North", "Online", "CUST1001", 1, "100.00"),
	})
	e := NewEngine(ds)

	_, err := e.Calculate(Request{
		Metric: TotalRevenue,
		Period: Period{Kind: PeriodQuarter, Quarter: 1},
	})
	require.Error(t, err)
	assert.Equal(t, ErrEmptyResult, CodeOf(err))
	assert.Contains(t, err.Error(), "Q1")
}

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "all"},
		{"all", "all"},
		{"ALL", "all"},
		{"Q1", "Q1"},
		{"q3", "Q3"},
		{"january", "January"},
		{"December", "December"},
		{"2024", "2024"},
	}
	for _, tc := range cases {
		p, err := ParsePeriod(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, p.String(), "input %q", tc.in)
	}

	for _, bad := range []string{"Q5", "Q0", "Januray", "24", "last week"} {
		_, err := ParsePeriod(bad)
		require.Error(t, err, "input %q", bad)
		assert.Equal(t, ErrInvalidRequest, CodeOf(err))
	}
}

func TestParseDimension(t *testing.T) {
	for in, want := range map[string]Dimension{
		"":        ByNone,
		"none":    ByNone,
		"Product": ByProduct,
		"region":  ByRegion,
		"CHANNEL": ByChannel,
	} {
		dim, err := ParseDimension(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, dim)
	}

	_, err := ParseDimension("customer")
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))
}

func TestToolFunc(t *testing.T) {
	e := NewEngine(testDataset(t))
	fn := ToolFunc(e)

	out, err := fn(context.Background(), json.RawMessage(`{"metric":"total_revenue","period":"Q1"}`))
	require.NoError(t, err)

	var payload struct {
		Result Result `json:"result"`
		Text   string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.Equal(t, TotalRevenue, payload.Result.Metric)
	assert.Equal(t, "total_revenue: $541.00", payload.Text)
}

func TestToolFuncErrors(t *testing.T) {
	e := NewEngine(testDataset(t))
	fn := ToolFunc(e)

	_, err := fn(context.Background(), json.RawMessage(`{"metric":"total_revenue","period":"soon"}`))
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))

	_, err = fn(context.Background(), json.RawMessage(`{`))
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))

	_, err = fn(context.Background(), json.RawMessage(`{}`))
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fn(ctx, json.RawMessage(`{"metric":"total_revenue"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToolSchema(t *testing.T) {
	schema := ToolSchema()
	assert.Equal(t, ToolName, schema.Name)

	var params map[string]any
	require.NoError(t, json.Unmarshal(schema.Parameters, &params))
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "metric")
	assert.Contains(t, props, "period")
}
