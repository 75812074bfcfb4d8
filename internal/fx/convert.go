package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-trade/meridian/internal/shared"
)

// MaxFallbackDays bounds the backward day walk when the rate source has a
// publication gap. Seven days covers any public-holiday stretch.
const MaxFallbackDays = 7

const cacheTTL = 12 * time.Hour

// Converter converts amounts between supported currencies through the RUB hop.
type Converter struct {
	store  Store
	source Source
	cache  *redis.Client
	logger *slog.Logger
	group  singleflight.Group
}

// NewConverter constructs a Converter. The cache client is optional.
func NewConverter(store Store, source Source, cache *redis.Client, logger *slog.Logger) *Converter {
	return &Converter{store: store, source: source, cache: cache, logger: logger}
}

// Convert converts amount from one currency to another using the rates
// published on or before asOf.
//
// Identity conversions and zero amounts return immediately without consulting
// rates. When a needed rate is unavailable after the fallback walk, the
// original amount is returned unconverted and a warning is logged; callers
// never see an error for rate-source outages.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to Currency, asOf time.Time) decimal.Decimal {
	if from == to {
		return amount
	}
	if amount.IsZero() {
		return amount
	}

	set, ok := c.ratesFor(ctx, DateKey(asOf))
	if !ok {
		c.warn("no rate set available, returning amount unconverted",
			slog.String("from", string(from)), slog.String("to", string(to)), slog.Time("as_of", asOf))
		return amount
	}

	inRUB := amount
	if from != Reference {
		rate, ok := set.Rate(from)
		if !ok {
			c.warn("rate missing for currency, returning amount unconverted",
				slog.String("currency", string(from)), slog.Time("rate_date", set.Date))
			return amount
		}
		inRUB = amount.Mul(rate)
	}

	if to == Reference {
		return inRUB
	}
	rate, ok := set.Rate(to)
	if !ok {
		c.warn("rate missing for currency, returning amount unconverted",
			slog.String("currency", string(to)), slog.Time("rate_date", set.Date))
		return amount
	}
	return inRUB.Div(rate)
}

// RateBetween resolves the effective cross rate from one currency to another
// for asOf. The second return value is false in degraded mode, in which case
// the rate is 1.
func (c *Converter) RateBetween(ctx context.Context, from, to Currency, asOf time.Time) (decimal.Decimal, bool) {
	one := decimal.NewFromInt(1)
	if from == to {
		return one, true
	}
	set, ok := c.ratesFor(ctx, DateKey(asOf))
	if !ok {
		return one, false
	}
	fromRate, okFrom := set.Rate(from)
	toRate, okTo := set.Rate(to)
	if !okFrom || !okTo {
		return one, false
	}
	return fromRate.Div(toRate), true
}

// ratesFor walks backward from date up to MaxFallbackDays attempts looking for
// the most recent non-empty rate set. Lookup order per day: redis cache,
// store, then the external source (fetches are collapsed via singleflight and
// persisted on success).
func (c *Converter) ratesFor(ctx context.Context, date time.Time) (RateSet, bool) {
	for i := 0; i < MaxFallbackDays; i++ {
		day := date.AddDate(0, 0, -i)

		if set, ok := c.fromCache(ctx, day); ok {
			return set, true
		}

		set, err := c.store.GetRates(ctx, day)
		if err == nil && !set.Empty() {
			c.toCache(ctx, set)
			return set, true
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			c.warn("rate store lookup failed", slog.Time("date", day), slog.Any("error", err))
		}

		set, ok := c.fetchDay(ctx, day)
		if ok {
			return set, true
		}
	}
	return RateSet{}, false
}

func (c *Converter) fetchDay(ctx context.Context, day time.Time) (RateSet, bool) {
	if c.source == nil {
		return RateSet{}, false
	}
	key := day.Format("2006-01-02")
	v, err, _ := c.group.Do(key, func() (any, error) {
		set, err := c.source.FetchRates(ctx, day)
		if err != nil {
			return RateSet{}, err
		}
		if set.Empty() {
			return RateSet{}, nil
		}
		if err := c.store.SaveRates(ctx, set); err != nil {
			c.warn("persist fetched rates", slog.Time("date", day), slog.Any("error", err))
		}
		c.toCache(ctx, set)
		return set, nil
	})
	if err != nil {
		c.warn("rate source fetch failed", slog.Time("date", day), slog.Any("error", err))
		return RateSet{}, false
	}
	set, _ := v.(RateSet)
	return set, !set.Empty()
}

func (c *Converter) fromCache(ctx context.Context, day time.Time) (RateSet, bool) {
	if c.cache == nil {
		return RateSet{}, false
	}
	payload, err := c.cache.Get(ctx, cacheKey(day)).Bytes()
	if err != nil {
		return RateSet{}, false
	}
	var set RateSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return RateSet{}, false
	}
	return set, !set.Empty()
}

func (c *Converter) toCache(ctx context.Context, set RateSet) {
	if c.cache == nil || set.Empty() {
		return
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, cacheKey(set.Date), payload, cacheTTL).Err()
}

func (c *Converter) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func cacheKey(day time.Time) string {
	return fmt.Sprintf("fx:rates:%s", day.Format("2006-01-02"))
}
