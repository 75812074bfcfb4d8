package reconcile_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/reconcile"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleResult() *calc.QuoteResult {
	return &calc.QuoteResult{
		Currency: fx.Currency("USD"),
		Products: []calc.ProductResult{
			{
				ProductName:      "Pump",
				Quantity:         d("10"),
				PurchaseTotal:    d("9000"),
				LogisticsTotal:   d("450"),
				CustomsTotal:     d("900"),
				COGSTotal:        d("10350"),
				SaleExclVATTotal: d("11902.5"),
				SaleInclVATTotal: d("14283"),
				NetVATPayable:    d("580.5"),
				Profit:           d("1552.5"),
				ProfitPercent:    d("15"),
			},
		},
		TotalPurchase:   d("9000"),
		TotalExclVAT:    d("11902.5"),
		TotalInclVAT:    d("14283"),
		TotalProfit:     d("1552.5"),
		TotalVATPayable: d("580.5"),
	}
}

func referenceWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet(reconcile.ReferenceSheet)
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow(reconcile.ReferenceSheet, "A1", &[]any{"Product", "Field", "Expected"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(reconcile.ReferenceSheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestLoadReference(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Pump", "purchase_total", "9,000"},
		{"Pump", "sale_excl_vat_total", "11902.50"},
		{"", "total_profit", "1552.5"},
	})

	ref, err := reconcile.LoadReference(buf)
	require.NoError(t, err)
	require.Len(t, ref.Expectations, 3)
	require.Equal(t, "Pump", ref.Expectations[0].Product)
	require.True(t, ref.Expectations[0].Value.Equal(d("9000")))
	require.Empty(t, ref.Expectations[2].Product)
}

func TestLoadReferenceRejectsUnknownField(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Pump", "gross_margin", "1"},
	})
	_, err := reconcile.LoadReference(buf)
	require.ErrorContains(t, err, "gross_margin")
}

func TestLoadReferenceRejectsEmptyWorkbook(t *testing.T) {
	buf := referenceWorkbook(t, nil)
	_, err := reconcile.LoadReference(buf)
	require.ErrorContains(t, err, "no expectations")
}

func TestCompareWithinTolerance(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Pump", "purchase_total", "9000"},
		{"Pump", "sale_excl_vat_total", "11902.9"},
		{"", "total_incl_vat", "14283"},
	})
	ref, err := reconcile.LoadReference(buf)
	require.NoError(t, err)

	report := reconcile.Compare(ref, sampleResult())
	require.Equal(t, 3, report.Checked)
	require.True(t, report.OK(), "deviation under 0.01%% should pass: %+v", report.Mismatches)
}

func TestCompareFlagsDeviation(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Pump", "profit", "1600"},
		{"", "total_profit", "1552.5"},
	})
	ref, err := reconcile.LoadReference(buf)
	require.NoError(t, err)

	report := reconcile.Compare(ref, sampleResult())
	require.False(t, report.OK())
	require.Len(t, report.Mismatches, 1)
	require.Equal(t, "profit", report.Mismatches[0].Field)
	require.True(t, report.Mismatches[0].Actual.Equal(d("1552.5")))
}

func TestCompareUnknownProduct(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Valve", "profit", "10"},
	})
	ref, err := reconcile.LoadReference(buf)
	require.NoError(t, err)

	report := reconcile.Compare(ref, sampleResult())
	require.False(t, report.OK())
	require.Contains(t, report.Mismatches[0].Reason, "Valve")
}

func TestCompareZeroExpectsZero(t *testing.T) {
	buf := referenceWorkbook(t, [][]any{
		{"Pump", "dm_fee", "0"},
		{"Pump", "forex_reserve", "0"},
	})
	ref, err := reconcile.LoadReference(buf)
	require.NoError(t, err)

	report := reconcile.Compare(ref, sampleResult())
	require.True(t, report.OK())
}

func TestExportQuoteRoundTrip(t *testing.T) {
	quote := &quotes.Quote{
		Number:   "Q-2026-00007",
		Currency: fx.Currency("USD"),
		Results:  sampleResult(),
	}

	var buf bytes.Buffer
	require.NoError(t, reconcile.ExportQuote(quote, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	number, err := f.GetCellValue("Calculation", "A1")
	require.NoError(t, err)
	require.Equal(t, "Q-2026-00007", number)

	name, err := f.GetCellValue("Calculation", "B4")
	require.NoError(t, err)
	require.Equal(t, "Pump", name)

	purchase, err := f.GetCellValue("Calculation", "D4")
	require.NoError(t, err)
	require.Equal(t, "9,000.00", purchase)

	totalLabel, err := f.GetCellValue("Calculation", "B6")
	require.NoError(t, err)
	require.Equal(t, "Total", totalLabel)
}

func TestExportRequiresCalculation(t *testing.T) {
	quote := &quotes.Quote{Number: "Q-2026-00008"}
	var buf bytes.Buffer
	require.Error(t, reconcile.ExportQuote(quote, &buf))
}
