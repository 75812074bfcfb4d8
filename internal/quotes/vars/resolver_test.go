package vars

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/shared"
)

type stubRateStore struct {
	set fx.RateSet
}

func (s stubRateStore) GetRates(_ context.Context, date time.Time) (fx.RateSet, error) {
	if s.set.Empty() || !s.set.Date.Equal(date) {
		return fx.RateSet{}, shared.ErrNotFound
	}
	return s.set, nil
}

func (s stubRateStore) SaveRates(context.Context, fx.RateSet) error { return nil }

func baseQuoteVars() QuoteVars {
	return QuoteVars{
		Defaults: map[string]any{
			VarQuoteCurrency: "USD",
			VarExchangeRate:  "1",
		},
		Products: []ProductVars{
			{Name: "Valve DN50", Overrides: map[string]any{
				VarBasePrice: "1000",
				VarQuantity:  "10",
			}},
		},
		AsOf: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolvePrecedence(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarMarkupPercent] = "15"
	q.Defaults[VarDiscountPercent] = "5"
	q.Products[0].Overrides[VarMarkupPercent] = "20"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	// Override beats quote default; quote default beats system fallback.
	require.Equal(t, "20", inputs[0].Financial.MarkupPercent.String())
	require.Equal(t, "5", inputs[0].Financial.DiscountPercent.String())
	// System fallbacks apply when neither tier has a value.
	require.Equal(t, "5", inputs[0].Rates.FinancingCommissionPercent.String())
	require.Equal(t, calc.Incoterms("DAP"), inputs[0].Logistics.Incoterms)
	require.Equal(t, calc.SaleTypeResale, inputs[0].Company.SaleType)
}

func TestResolveExplicitZeroStopsFallthrough(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarMarkupPercent] = "15"
	q.Products[0].Overrides[VarMarkupPercent] = "0"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.True(t, inputs[0].Financial.MarkupPercent.IsZero())
}

func TestResolveNilOverrideFallsThrough(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarMarkupPercent] = "15"
	q.Products[0].Overrides[VarMarkupPercent] = nil

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "15", inputs[0].Financial.MarkupPercent.String())
}

func TestNormalizePercent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.15", "15"},
		{"15", "15"},
		{"1", "100"},
		{"1.01", "1.01"},
		{"0", "0"},
		{"-0.05", "-5"},
	}
	for _, tc := range cases {
		got := NormalizePercent(decimal.RequireFromString(tc.in))
		require.Equal(t, tc.want, got.String(), "NormalizePercent(%s)", tc.in)
	}
}

func TestResolveFractionalPercents(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarMarkupPercent] = "0.2"
	q.Defaults[VarVATPercent] = 0.2
	q.Defaults[VarDMFeeType] = "percent"
	q.Defaults[VarDMFeeValue] = "0.05"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "20", inputs[0].Financial.MarkupPercent.String())
	require.Equal(t, "20", inputs[0].Taxes.VATPercent.String())
	require.Equal(t, "5", inputs[0].Financial.DMFeeValue.String())
}

func TestResolveCommaDecimals(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Products[0].Overrides[VarBasePrice] = "1 234,56"
	q.Products[0].Overrides[VarQuantity] = "2"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "1234.56", inputs[0].Product.BasePrice.String())
}

func TestResolveRequiredFields(t *testing.T) {
	r := NewResolver(nil, nil)

	cases := []struct {
		name   string
		mutate func(*QuoteVars)
		field  string
		row    int
	}{
		{"missing base price", func(q *QuoteVars) { delete(q.Products[0].Overrides, VarBasePrice) }, VarBasePrice, 1},
		{"missing quantity", func(q *QuoteVars) { delete(q.Products[0].Overrides, VarQuantity) }, VarQuantity, 1},
		{"missing currency", func(q *QuoteVars) { delete(q.Defaults, VarQuoteCurrency) }, VarQuoteCurrency, 0},
		{"malformed base price", func(q *QuoteVars) { q.Products[0].Overrides[VarBasePrice] = "abc" }, VarBasePrice, 1},
		{"unknown incoterms", func(q *QuoteVars) { q.Defaults[VarIncoterms] = "XYZ" }, VarIncoterms, 1},
		{"unknown country", func(q *QuoteVars) { q.Defaults[VarSupplierCountry] = "ZZ" }, VarSupplierCountry, 1},
		{"unknown sale type", func(q *QuoteVars) { q.Defaults[VarSaleType] = "consignment" }, VarSaleType, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := baseQuoteVars()
			tc.mutate(&q)

			_, err := r.Resolve(context.Background(), q)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
			require.Equal(t, tc.row, verr.Row)
		})
	}
}

func TestResolveNoProducts(t *testing.T) {
	r := NewResolver(nil, nil)
	_, err := r.Resolve(context.Background(), QuoteVars{Defaults: map[string]any{VarQuoteCurrency: "USD"}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestResolveExplicitExchangeRateWins(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarBasePriceCurrency] = "EUR"
	q.Defaults[VarExchangeRate] = "1.09"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, fx.EUR, inputs[0].Product.BasePriceCurrency)
	require.Equal(t, "1.09", inputs[0].Financial.ExchangeRate.String())
}

func TestResolveDerivesExchangeRate(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := stubRateStore{set: fx.RateSet{
		Date: fx.DateKey(asOf),
		Rates: map[fx.Currency]decimal.Decimal{
			fx.USD: decimal.RequireFromString("90"),
			fx.EUR: decimal.RequireFromString("99"),
		},
	}}
	conv := fx.NewConverter(store, nil, nil, nil)
	r := NewResolver(conv, nil)

	q := baseQuoteVars()
	q.Defaults[VarBasePriceCurrency] = "EUR"
	delete(q.Defaults, VarExchangeRate)
	q.AsOf = asOf

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "1.1", inputs[0].Financial.ExchangeRate.String())
}

func TestResolveSameCurrencyRateDefaultsToOne(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	delete(q.Defaults, VarExchangeRate)

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "1", inputs[0].Financial.ExchangeRate.String())
}

func TestResolveWeightAllocation(t *testing.T) {
	r := NewResolver(nil, nil)
	q := QuoteVars{
		Defaults: map[string]any{
			VarQuoteCurrency:    "USD",
			VarExchangeRate:     "1",
			VarLegSupplierToHub: "300",
		},
		Products: []ProductVars{
			{Name: "heavy", Overrides: map[string]any{
				VarBasePrice: "100", VarQuantity: "4", VarUnitWeightKG: "50",
			}},
			{Name: "light", Overrides: map[string]any{
				VarBasePrice: "100", VarQuantity: "2", VarUnitWeightKG: "50",
			}},
		},
	}

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	// Total mass 300 kg: 200 kg vs 100 kg.
	require.Equal(t, "200", inputs[0].Logistics.SupplierToHub.String())
	require.Equal(t, "100", inputs[1].Logistics.SupplierToHub.String())

	sum := inputs[0].Logistics.SupplierToHub.Add(inputs[1].Logistics.SupplierToHub)
	require.Equal(t, "300", sum.String())
}

func TestResolveLegOverrideSkipsAllocation(t *testing.T) {
	r := NewResolver(nil, nil)
	q := QuoteVars{
		Defaults: map[string]any{
			VarQuoteCurrency:    "USD",
			VarExchangeRate:     "1",
			VarLegSupplierToHub: "300",
		},
		Products: []ProductVars{
			{Name: "a", Overrides: map[string]any{
				VarBasePrice: "100", VarQuantity: "1", VarUnitWeightKG: "10",
				VarLegSupplierToHub: "40",
			}},
			{Name: "b", Overrides: map[string]any{
				VarBasePrice: "100", VarQuantity: "1", VarUnitWeightKG: "10",
			}},
		},
	}

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "40", inputs[0].Logistics.SupplierToHub.String())
	// The other row still receives its weight share of the quote-level total.
	require.Equal(t, "150", inputs[1].Logistics.SupplierToHub.String())
}

func TestResolveQuantityAllocationFallback(t *testing.T) {
	r := NewResolver(nil, nil)
	q := QuoteVars{
		Defaults: map[string]any{
			VarQuoteCurrency:      "USD",
			VarExchangeRate:       "1",
			VarLegCustomsToClient: "90",
		},
		Products: []ProductVars{
			{Name: "a", Overrides: map[string]any{VarBasePrice: "10", VarQuantity: "2"}},
			{Name: "b", Overrides: map[string]any{VarBasePrice: "10", VarQuantity: "1"}},
		},
	}

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, "60", inputs[0].Logistics.CustomsToClient.String())
	require.Equal(t, "30", inputs[1].Logistics.CustomsToClient.String())
}

func TestResolvePaymentMilestones(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults["payment_percent_1"] = "30"
	q.Defaults["payment_days_1"] = 0
	q.Defaults["payment_percent_2"] = "0.7"
	q.Defaults["payment_days_2"] = "60"
	q.Defaults["payment_percent_3"] = "0"

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)

	milestones := inputs[0].Payment.Milestones
	require.Len(t, milestones, 2)
	require.Equal(t, "30", milestones[0].Percent.String())
	require.Equal(t, 0, milestones[0].DayOffset)
	require.Equal(t, "70", milestones[1].Percent.String())
	require.Equal(t, 60, milestones[1].DayOffset)
}

func TestResolveClearanceAndBoolCoercion(t *testing.T) {
	r := NewResolver(nil, nil)
	q := baseQuoteVars()
	q.Defaults[VarBasePriceIncludesVAT] = "yes"
	q.Defaults[VarBrokerageAtCustoms] = "120,50"
	q.Defaults[VarWarehousing] = 35

	inputs, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	require.True(t, inputs[0].Product.BasePriceIncludesVAT)
	require.Equal(t, "120.5", inputs[0].Clearance.BrokerageAtCustoms.String())
	require.Equal(t, "35", inputs[0].Clearance.Warehousing.String())
}

func TestValidationErrorMessage(t *testing.T) {
	err := validationErr(VarBasePrice, 3, "required variable missing")
	require.EqualError(t, err, "base_price for product row 3: required variable missing")

	err = validationErr(VarQuoteCurrency, 0, "required variable missing")
	require.EqualError(t, err, "quote_currency: required variable missing")
}
