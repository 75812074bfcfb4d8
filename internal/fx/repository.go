package fx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/shared"
)

// Repository provides PostgreSQL backed rate persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRates loads the rate set stored for a calendar date.
func (r *Repository) GetRates(ctx context.Context, date time.Time) (RateSet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT currency, rate FROM fx_rates WHERE rate_date = $1`, DateKey(date))
	if err != nil {
		return RateSet{}, err
	}
	defer rows.Close()

	set := RateSet{Date: DateKey(date), Rates: make(map[Currency]decimal.Decimal)}
	for rows.Next() {
		var code string
		var rate decimal.Decimal
		if err := rows.Scan(&code, &rate); err != nil {
			return RateSet{}, err
		}
		set.Rates[Currency(code)] = rate
	}
	if err := rows.Err(); err != nil {
		return RateSet{}, err
	}
	if set.Empty() {
		return RateSet{}, shared.ErrNotFound
	}
	return set, nil
}

// SaveRates upserts a full rate set for its date.
func (r *Repository) SaveRates(ctx context.Context, set RateSet) error {
	for code, rate := range set.Rates {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO fx_rates (rate_date, currency, rate)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (rate_date, currency) DO UPDATE SET rate = EXCLUDED.rate`,
			DateKey(set.Date), string(code), rate)
		if err != nil {
			return err
		}
	}
	return nil
}
