package reconcile

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReferenceSheet is the workbook tab the loader reads expectations from.
const ReferenceSheet = "Expected"

// Expectation is one expected value from a reference workbook. Product is
// empty for quote-level totals.
type Expectation struct {
	Product string
	Field   string
	Value   decimal.Decimal
	Row     int
}

// Reference is a parsed reference workbook.
type Reference struct {
	Expectations []Expectation
}

// LoadReference parses a legacy reference workbook. The Expected sheet
// carries three columns: product name (blank for quote totals), field name,
// and the expected value. The first row is a header and is skipped.
func LoadReference(r io.Reader) (*Reference, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("reconcile: open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(ReferenceSheet)
	if err != nil {
		return nil, fmt.Errorf("reconcile: sheet %q: %w", ReferenceSheet, err)
	}

	ref := &Reference{}
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		product := strings.TrimSpace(row[0])
		field := strings.ToLower(strings.TrimSpace(row[1]))
		raw := strings.TrimSpace(row[2])
		if field == "" || raw == "" {
			continue
		}
		if product == "" {
			if _, ok := quoteFields[field]; !ok {
				return nil, fmt.Errorf("reconcile: row %d: unknown quote field %q", i+1, field)
			}
		} else if _, ok := productFields[field]; !ok {
			return nil, fmt.Errorf("reconcile: row %d: unknown product field %q", i+1, field)
		}
		value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("reconcile: row %d: malformed value %q", i+1, raw)
		}
		ref.Expectations = append(ref.Expectations, Expectation{
			Product: product,
			Field:   field,
			Value:   value,
			Row:     i + 1,
		})
	}
	if len(ref.Expectations) == 0 {
		return nil, fmt.Errorf("reconcile: workbook has no expectations")
	}
	return ref, nil
}
