package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Required columns of the sample sales CSV. Derived columns (year, month,
// quarter, month_name) may be present but are ignored; they are recomputed
// from the date on demand.
var requiredColumns = []string{
	"transaction_id", "date", "product", "region", "channel",
	"quantity", "unit_price", "customer_id", "revenue",
}

// LoadCSV reads a sales dataset from the CSV file at path.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a sales dataset from r. The first row must be a header
// containing at least the required columns, in any order.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("dataset missing required column %q", name)
		}
	}

	var records []SalesRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line+1, err)
		}
		line++

		rec, err := parseRecord(row, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("dataset contains no records")
	}
	return New(records), nil
}

func parseRecord(row []string, cols map[string]int) (SalesRecord, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[cols[name]])
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return SalesRecord{}, err
	}

	quantity, err := strconv.Atoi(field("quantity"))
	if err != nil {
		return SalesRecord{}, fmt.Errorf("invalid quantity %q: %w", field("quantity"), err)
	}

	unitPrice, err := decimal.NewFromString(field("unit_price"))
	if err != nil {
		return SalesRecord{}, fmt.Errorf("invalid unit_price %q: %w", field("unit_price"), err)
	}

	revenue, err := decimal.NewFromString(field("revenue"))
	if err != nil {
		return SalesRecord{}, fmt.Errorf("invalid revenue %q: %w", field("revenue"), err)
	}

	return SalesRecord{
		TransactionID: field("transaction_id"),
		Date:          date,
		Product:       field("product"),
		Region:        field("region"),
		Channel:       field("channel"),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		CustomerID:    field("customer_id"),
		Revenue:       revenue,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
