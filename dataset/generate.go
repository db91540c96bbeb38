package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateConfig controls sample data generation.
type GenerateConfig struct {
	// Transactions is the number of rows to generate. Defaults to 1000.
	Transactions int
	// Year is the calendar year the dates span. Defaults to 2024.
	Year int
	// Seed seeds the RNG so generated datasets are reproducible.
	Seed int64
}

type priceRange struct {
	min, max float64
}

var (
	sampleProducts = []string{"Laptop", "Mouse", "Keyboard", "Monitor", "Headphones"}
	sampleRegions  = []string{"North", "South", "East", "West"}
	sampleChannels = []string{"Online", "Retail", "Partner"}

	productPrices = map[string]priceRange{
		"Laptop":     {800, 2000},
		"Monitor":    {200, 800},
		"Keyboard":   {30, 150},
		"Mouse":      {15, 80},
		"Headphones": {50, 300},
	}
)

// Generate produces a reproducible sample sales dataset.
func Generate(cfg GenerateConfig) *Dataset {
	if cfg.Transactions <= 0 {
		cfg.Transactions = 1000
	}
	if cfg.Year == 0 {
		cfg.Year = 2024
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	start := time.Date(cfg.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := 365
	if start.AddDate(1, 0, 0).Sub(start).Hours() > float64(365*24) {
		days = 366
	}

	records := make([]SalesRecord, 0, cfg.Transactions)
	for i := 0; i < cfg.Transactions; i++ {
		product := sampleProducts[rng.Intn(len(sampleProducts))]
		prices := productPrices[product]

		quantity := rng.Intn(9) + 1
		unitPrice := decimal.NewFromFloat(prices.min + rng.Float64()*(prices.max-prices.min)).Round(2)

		records = append(records, SalesRecord{
			TransactionID: fmt.Sprintf("TXN%04d", i+1),
			Date:          start.AddDate(0, 0, rng.Intn(days)),
			Product:       product,
			Region:        sampleRegions[rng.Intn(len(sampleRegions))],
			Channel:       sampleChannels[rng.Intn(len(sampleChannels))],
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			CustomerID:    fmt.Sprintf("CUST%04d", rng.Intn(4000)+1000),
			Revenue:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
		})
	}

	// Sort by date like the sample file, keeping generation order for ties.
	sortRecordsByDate(records)
	return New(records)
}

func sortRecordsByDate(records []SalesRecord) {
	// Insertion sort is stable and the dataset is small.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].Date.Before(records[j-1].Date); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// WriteCSV writes the dataset to path in the sample-file column layout,
// including the derived year/month/quarter/month_name columns.
func WriteCSV(d *Dataset, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"transaction_id", "date", "product", "region", "channel",
		"quantity", "unit_price", "customer_id", "revenue",
		"year", "month", "quarter", "month_name",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := 0; i < d.Len(); i++ {
		r := d.Record(i)
		row := []string{
			r.TransactionID,
			r.Date.Format("2006-01-02"),
			r.Product,
			r.Region,
			r.Channel,
			strconv.Itoa(r.Quantity),
			r.UnitPrice.StringFixed(2),
			r.CustomerID,
			r.Revenue.StringFixed(2),
			strconv.Itoa(r.Date.Year()),
			strconv.Itoa(int(r.Date.Month())),
			strconv.Itoa(r.Quarter()),
			r.MonthName(),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
