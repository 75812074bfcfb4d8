package reconcile

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/meridian-trade/meridian/internal/quotes"
)

const exportSheet = "Calculation"

// XLSXContentType is the response content type for workbook downloads.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []string{
	"#", "Product", "Qty", "Purchase", "Logistics", "Customs", "COGS",
	"Sale excl VAT", "VAT", "Sale incl VAT", "Profit", "Profit %",
}

// ExportQuote renders a calculated quote as a spreadsheet. Amounts are
// written in the quote currency with locale grouping.
func ExportQuote(quote *quotes.Quote, w io.Writer) error {
	if quote.Results == nil {
		return fmt.Errorf("reconcile: quote %s has no calculation snapshot", quote.Number)
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheet)

	printer := message.NewPrinter(language.English)
	amount := func(d decimal.Decimal) string {
		return printer.Sprintf("%v", number.Decimal(d.InexactFloat64(),
			number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	}

	f.SetCellValue(exportSheet, "A1", quote.Number)
	f.SetCellValue(exportSheet, "B1", string(quote.Currency))
	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		f.SetCellValue(exportSheet, cell, title)
	}

	row := 4
	for i, p := range quote.Results.Products {
		values := []any{
			i + 1, p.ProductName, p.Quantity.String(),
			amount(p.PurchaseTotal), amount(p.LogisticsTotal), amount(p.CustomsTotal),
			amount(p.COGSTotal), amount(p.SaleExclVATTotal), amount(p.NetVATPayable),
			amount(p.SaleInclVATTotal), amount(p.Profit), p.ProfitPercent.StringFixed(2),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(exportSheet, cell, v)
		}
		row++
	}

	totals := quote.Results
	totalRow := []any{
		"", "Total", "",
		amount(totals.TotalPurchase), amount(totals.TotalLogistics), amount(totals.TotalCustoms),
		amount(totals.TotalCOGS), amount(totals.TotalExclVAT), amount(totals.TotalVATPayable),
		amount(totals.TotalInclVAT), amount(totals.TotalProfit), "",
	}
	for col, v := range totalRow {
		cell, _ := excelize.CoordinatesToCellName(col+1, row+1)
		f.SetCellValue(exportSheet, cell, v)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("reconcile: write workbook: %w", err)
	}
	return nil
}
