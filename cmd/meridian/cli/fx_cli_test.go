package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/shared"
)

type stubStore struct {
	sets map[string]fx.RateSet
}

func newStubStore() *stubStore {
	return &stubStore{sets: make(map[string]fx.RateSet)}
}

func (s *stubStore) GetRates(_ context.Context, date time.Time) (fx.RateSet, error) {
	set, ok := s.sets[fx.DateKey(date).Format("2006-01-02")]
	if !ok {
		return fx.RateSet{}, shared.ErrNotFound
	}
	return set, nil
}

func (s *stubStore) SaveRates(_ context.Context, set fx.RateSet) error {
	s.sets[fx.DateKey(set.Date).Format("2006-01-02")] = set
	return nil
}

func seedDate(store *stubStore, date string) {
	day, _ := time.Parse("2006-01-02", date)
	store.sets[date] = fx.RateSet{
		Date:  day,
		Rates: map[fx.Currency]decimal.Decimal{fx.USD: decimal.RequireFromString("91")},
	}
}

func TestBackfillDryRunReportsMissing(t *testing.T) {
	store := newStubStore()
	seedDate(store, "2026-03-02")
	cli, err := NewFXOpsCLI(store)
	require.NoError(t, err)

	csv := "date,currency,rate\n2026-03-03,USD,91.5\n2026-03-03,EUR,99.2\n"
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	code := cli.BackfillCommand(context.Background(), FXBackfillOptions{
		From:         "2026-03-02",
		To:           "2026-03-03",
		Mode:         FXBackfillModeDry,
		SourceReader: strings.NewReader(csv),
		JSONOutput:   true,
		Stdout:       stdout,
		Stderr:       stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	var summary FXBackfillSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, []string{"2026-03-03"}, summary.Missing)
	require.Len(t, summary.Candidates, 1)
	require.Empty(t, summary.Applied)

	_, err = store.GetRates(context.Background(), mustDate(t, "2026-03-03"))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBackfillApplyPersistsAfterConfirm(t *testing.T) {
	store := newStubStore()
	cli, err := NewFXOpsCLI(store)
	require.NoError(t, err)

	csv := "2026-03-03,USD,91.5\n2026-03-03,EUR,99.2\n"
	stdout := new(bytes.Buffer)

	code := cli.BackfillCommand(context.Background(), FXBackfillOptions{
		From:         "2026-03-03",
		To:           "2026-03-03",
		Mode:         FXBackfillModeApply,
		SourceReader: strings.NewReader(csv),
		JSONOutput:   true,
		Stdout:       stdout,
		Confirm: func(io.Reader, io.Writer) (bool, error) {
			return true, nil
		},
	})
	require.Equal(t, 0, code)

	set, err := store.GetRates(context.Background(), mustDate(t, "2026-03-03"))
	require.NoError(t, err)
	require.Len(t, set.Rates, 2)
}

func TestBackfillRejectsMalformedCSV(t *testing.T) {
	cli, err := NewFXOpsCLI(newStubStore())
	require.NoError(t, err)
	stderr := new(bytes.Buffer)

	code := cli.BackfillCommand(context.Background(), FXBackfillOptions{
		From:         "2026-03-03",
		To:           "2026-03-03",
		SourceReader: strings.NewReader("2026-03-03,XXX,91.5\n"),
		Stdout:       new(bytes.Buffer),
		Stderr:       stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "unsupported currency")
}

func TestValidateFindsGapBeyondFallback(t *testing.T) {
	store := newStubStore()
	seedDate(store, "2026-03-02")
	cli, err := NewFXOpsCLI(store)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.ValidateCommand(context.Background(), FXValidateOptions{
		From:       "2026-03-02",
		To:         "2026-03-20",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Equal(t, 10, code)

	var summary FXValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	// Dates within a week of the seeded sheet resolve through fallback.
	require.Equal(t, "2026-03-09", summary.Gaps[0].Date)
}

func TestValidateOKWithinFallback(t *testing.T) {
	store := newStubStore()
	seedDate(store, "2026-03-02")
	cli, err := NewFXOpsCLI(store)
	require.NoError(t, err)

	code := cli.ValidateCommand(context.Background(), FXValidateOptions{
		From:   "2026-03-02",
		To:     "2026-03-06",
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	day, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return day
}
