package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateSet holds the rates published for one calendar date. Each rate is the
// value of one unit of the currency expressed in RUB.
type RateSet struct {
	Date  time.Time                 `json:"date"`
	Rates map[Currency]decimal.Decimal `json:"rates"`
}

// Empty reports whether the set carries no rates at all, which for the rate
// source means "nothing published for this date".
func (rs RateSet) Empty() bool {
	return len(rs.Rates) == 0
}

// Rate returns the RUB rate for a currency. The reference currency always
// resolves to 1.
func (rs RateSet) Rate(code Currency) (decimal.Decimal, bool) {
	if code == Reference {
		return decimal.NewFromInt(1), true
	}
	rate, ok := rs.Rates[code]
	if !ok || !rate.IsPositive() {
		return decimal.Decimal{}, false
	}
	return rate, true
}

// Source fetches published rates from the external rate provider.
// An empty RateSet with a nil error means the provider published nothing for
// that date (weekend, holiday); the caller walks back a day.
type Source interface {
	FetchRates(ctx context.Context, asOf time.Time) (RateSet, error)
}

// Store persists rate sets per calendar date.
type Store interface {
	GetRates(ctx context.Context, date time.Time) (RateSet, error)
	SaveRates(ctx context.Context, set RateSet) error
}

// DateKey normalises a timestamp to the calendar date used for rate lookups.
func DateKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
