// Package dataset holds the static sales dataset the metrics engine
// computes over. Records are loaded once and never mutated, so a Dataset is
// safe for concurrent readers.
package dataset

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesRecord is one sales transaction.
type SalesRecord struct {
	TransactionID string
	Date          time.Time
	Product       string
	Region        string
	Channel       string
	Quantity      int
	UnitPrice     decimal.Decimal
	CustomerID    string
	Revenue       decimal.Decimal
}

// Quarter returns the calendar quarter (1-4) of the record's date.
func (r SalesRecord) Quarter() int {
	return (int(r.Date.Month())-1)/3 + 1
}

// MonthName returns the English month name of the record's date.
func (r SalesRecord) MonthName() string {
	return r.Date.Month().String()
}

// Dataset is an ordered, immutable sequence of sales records.
type Dataset struct {
	records []SalesRecord
}

// New creates a dataset from records. The slice is copied so later changes
// by the caller cannot reach the dataset.
func New(records []SalesRecord) *Dataset {
	copied := make([]SalesRecord, len(records))
	copy(copied, records)
	return &Dataset{records: copied}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Record returns the record at index i.
func (d *Dataset) Record(i int) SalesRecord { return d.records[i] }

// Each calls fn for every record in load order.
func (d *Dataset) Each(fn func(SalesRecord)) {
	for _, r := range d.records {
		fn(r)
	}
}

// Select returns the records matching the predicate, in load order.
func (d *Dataset) Select(pred func(SalesRecord) bool) []SalesRecord {
	var out []SalesRecord
	for _, r := range d.records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
