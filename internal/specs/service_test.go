package specs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/specs"
	"github.com/meridian-trade/meridian/internal/workflow"
)

type memRepo struct {
	mu        sync.Mutex
	specsByID map[uuid.UUID]*specs.Specification
	dealsByID map[uuid.UUID]*specs.Deal
}

func newMemRepo() *memRepo {
	return &memRepo{
		specsByID: make(map[uuid.UUID]*specs.Specification),
		dealsByID: make(map[uuid.UUID]*specs.Deal),
	}
}

func (m *memRepo) CreateSpecification(_ context.Context, spec *specs.Specification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *spec
	m.specsByID[spec.ID] = &cp
	return nil
}

func (m *memRepo) GetSpecification(_ context.Context, id uuid.UUID) (*specs.Specification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec, ok := m.specsByID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *spec
	return &cp, nil
}

func (m *memRepo) SpecificationByQuote(_ context.Context, quoteID uuid.UUID) (*specs.Specification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, spec := range m.specsByID {
		if spec.QuoteID == quoteID {
			cp := *spec
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) UpdateSpecification(_ context.Context, spec *specs.Specification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specsByID[spec.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *spec
	m.specsByID[spec.ID] = &cp
	return nil
}

func (m *memRepo) CreateDeal(_ context.Context, deal *specs.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *deal
	m.dealsByID[deal.ID] = &cp
	return nil
}

func (m *memRepo) GetDeal(_ context.Context, id uuid.UUID) (*specs.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deal, ok := m.dealsByID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *deal
	return &cp, nil
}

func (m *memRepo) DealBySpecification(_ context.Context, specID uuid.UUID) (*specs.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, deal := range m.dealsByID {
		if deal.SpecificationID == specID {
			cp := *deal
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) UpdateDeal(_ context.Context, deal *specs.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dealsByID[deal.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *deal
	m.dealsByID[deal.ID] = &cp
	return nil
}

type stubQuotes struct {
	quote *quotes.Quote
}

func (s *stubQuotes) Get(_ context.Context, id uuid.UUID) (*quotes.Quote, error) {
	if s.quote == nil || s.quote.ID != id {
		return nil, shared.ErrNotFound
	}
	cp := *s.quote
	return &cp, nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func signableQuote() *quotes.Quote {
	return &quotes.Quote{
		ID:       uuid.New(),
		Number:   "Q-2026-00042",
		Currency: fx.Currency("USD"),
		Status:   workflow.StatusPendingSignature,
		Defaults: map[string]any{
			"payment_percent_1": "30",
			"payment_days_1":    "0",
			"payment_percent_2": "70",
			"payment_days_2":    "45",
		},
		Results: &calc.QuoteResult{
			TotalExclVAT: d("10350"),
			TotalInclVAT: d("12420"),
			TotalProfit:  d("1350"),
		},
	}
}

func TestCreateFromQuoteSnapshotsTotals(t *testing.T) {
	repo := newMemRepo()
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(repo, qs, nil, nil)

	spec, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, "SP-Q-2026-00042", spec.Number)
	require.Equal(t, specs.SpecDraft, spec.Status)
	require.True(t, spec.TotalExclVAT.Equal(d("10350")))
	require.True(t, spec.TotalInclVAT.Equal(d("12420")))

	again, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, spec.ID, again.ID)
}

func TestCreateFromQuoteRequiresSignatureGate(t *testing.T) {
	q := signableQuote()
	q.Status = workflow.StatusDraft
	svc := specs.NewService(newMemRepo(), &stubQuotes{quote: q}, nil, nil)

	_, err := svc.CreateFromQuote(context.Background(), q.ID, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateFromQuoteRequiresCalculation(t *testing.T) {
	q := signableQuote()
	q.Results = nil
	svc := specs.NewService(newMemRepo(), &stubQuotes{quote: q}, nil, nil)

	_, err := svc.CreateFromQuote(context.Background(), q.ID, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestMarkSignedIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(repo, qs, nil, nil)

	spec, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)

	signed, err := svc.MarkSigned(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, specs.SpecSigned, signed.Status)
	require.NotNil(t, signed.SignedAt)

	first := *signed.SignedAt
	again, err := svc.MarkSigned(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, first, *again.SignedAt)
}

func TestActivateDealBuildsPaymentSchedule(t *testing.T) {
	repo := newMemRepo()
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(repo, qs, nil, nil)

	spec, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.MarkSigned(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)

	deal, err := svc.ActivateDeal(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, "D-Q-2026-00042", deal.Number)
	require.Equal(t, specs.DealActive, deal.Status)

	require.Len(t, deal.Payments, 2)
	require.Equal(t, specs.PayAdvance, deal.Payments[0].Kind)
	require.Equal(t, "3726", deal.Payments[0].Amount.String())
	require.Equal(t, specs.PayShipment, deal.Payments[1].Kind)
	require.Equal(t, "8694", deal.Payments[1].Amount.String())
	require.NotNil(t, deal.Payments[1].DueAt)
	require.Equal(t, 45, int(deal.Payments[1].DueAt.Sub(deal.CreatedAt).Hours()/24))

	require.Len(t, deal.Logistics, 4)
	for _, l := range deal.Logistics {
		require.Nil(t, l.OccurredAt)
	}
}

func TestActivateDealRequiresSignedSpec(t *testing.T) {
	repo := newMemRepo()
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(repo, qs, nil, nil)

	spec, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)

	_, err = svc.ActivateDeal(context.Background(), spec.ID, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestActivateDealFallsBackToSingleFinalPayment(t *testing.T) {
	q := signableQuote()
	q.Defaults = map[string]any{}
	repo := newMemRepo()
	svc := specs.NewService(repo, &stubQuotes{quote: q}, nil, nil)

	spec, err := svc.CreateFromQuote(context.Background(), q.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.MarkSigned(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)

	deal, err := svc.ActivateDeal(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	require.Len(t, deal.Payments, 1)
	require.Equal(t, specs.PayFinal, deal.Payments[0].Kind)
	require.Equal(t, "12420", deal.Payments[0].Amount.String())
}

func activeDeal(t *testing.T, svc *specs.Service, qs *stubQuotes) *specs.Deal {
	t.Helper()
	spec, err := svc.CreateFromQuote(context.Background(), qs.quote.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.MarkSigned(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	deal, err := svc.ActivateDeal(context.Background(), spec.ID, uuid.New())
	require.NoError(t, err)
	return deal
}

func TestDealRollsUpToCompleted(t *testing.T) {
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(newMemRepo(), qs, nil, nil)
	deal := activeDeal(t, svc, qs)
	actor := uuid.New()

	deal, err := svc.RecordPayment(context.Background(), deal.ID, specs.PayAdvance, actor)
	require.NoError(t, err)
	require.Equal(t, specs.DealActive, deal.Status)
	require.NotNil(t, deal.Payments[0].PaidAt)

	for _, kind := range specs.LogisticsKinds() {
		deal, err = svc.RecordLogistics(context.Background(), deal.ID, kind, actor)
		require.NoError(t, err)
	}
	require.Equal(t, specs.DealActive, deal.Status)

	deal, err = svc.RecordPayment(context.Background(), deal.ID, specs.PayShipment, actor)
	require.NoError(t, err)
	require.Equal(t, specs.DealCompleted, deal.Status)

	_, err = svc.RecordPayment(context.Background(), deal.ID, specs.PayAdvance, actor)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRecordPaymentUnknownMilestone(t *testing.T) {
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(newMemRepo(), qs, nil, nil)
	deal := activeDeal(t, svc, qs)

	_, err := svc.RecordPayment(context.Background(), deal.ID, specs.PayCustoms, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCancelDeal(t *testing.T) {
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(newMemRepo(), qs, nil, nil)
	deal := activeDeal(t, svc, qs)

	cancelled, err := svc.CancelDeal(context.Background(), deal.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, specs.DealCancelled, cancelled.Status)

	again, err := svc.CancelDeal(context.Background(), deal.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, specs.DealCancelled, again.Status)

	_, err = svc.RecordPayment(context.Background(), deal.ID, specs.PayAdvance, uuid.New())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestPaymentDueDates(t *testing.T) {
	qs := &stubQuotes{quote: signableQuote()}
	svc := specs.NewService(newMemRepo(), qs, nil, nil)
	deal := activeDeal(t, svc, qs)

	require.NotNil(t, deal.Payments[0].DueAt)
	require.WithinDuration(t, deal.CreatedAt, *deal.Payments[0].DueAt, time.Minute)
}
