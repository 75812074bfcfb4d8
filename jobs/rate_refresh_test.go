package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/jobs"
)

type stubSource struct {
	set fx.RateSet
	err error
}

func (s *stubSource) FetchRates(context.Context, time.Time) (fx.RateSet, error) {
	return s.set, s.err
}

type stubStore struct {
	saved []fx.RateSet
	err   error
}

func (s *stubStore) GetRates(context.Context, time.Time) (fx.RateSet, error) {
	return fx.RateSet{}, nil
}

func (s *stubStore) SaveRates(_ context.Context, set fx.RateSet) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, set)
	return nil
}

func TestRateRefreshPersistsFetchedSheet(t *testing.T) {
	set := fx.RateSet{
		Date: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Rates: map[fx.Currency]decimal.Decimal{
			fx.USD: decimal.RequireFromString("91.5"),
			fx.EUR: decimal.RequireFromString("99.2"),
		},
	}
	store := &stubStore{}
	refresher := jobs.NewRateRefresher(&stubSource{set: set}, store, nil)

	err := refresher.Handle(context.Background(), jobs.NewRateRefreshTask())
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	require.Equal(t, set.Date, store.saved[0].Date)
}

func TestRateRefreshSkipsEmptySheet(t *testing.T) {
	store := &stubStore{}
	refresher := jobs.NewRateRefresher(&stubSource{set: fx.RateSet{}}, store, nil)

	err := refresher.Handle(context.Background(), jobs.NewRateRefreshTask())
	require.NoError(t, err)
	require.Empty(t, store.saved)
}

func TestRateRefreshPropagatesFetchError(t *testing.T) {
	store := &stubStore{}
	refresher := jobs.NewRateRefresher(&stubSource{err: errors.New("upstream down")}, store, nil)

	err := refresher.Handle(context.Background(), jobs.NewRateRefreshTask())
	require.Error(t, err)
	require.Empty(t, store.saved)
}

func TestQuoteRecalcMalformedPayloadSkipsRetry(t *testing.T) {
	recalc := jobs.NewRecalculator(nil, nil)
	task := asynq.NewTask(jobs.TaskTypeQuoteRecalc, []byte("not json"))

	err := recalc.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
