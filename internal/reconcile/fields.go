package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quotes/calc"
)

// Field names accepted in reference workbooks. They match the json tags of
// the per-product calculation result.
var productFields = map[string]func(calc.ProductResult) decimal.Decimal{
	"purchase_unit_gross":        func(r calc.ProductResult) decimal.Decimal { return r.PurchaseUnitGross },
	"purchase_unit_net":          func(r calc.ProductResult) decimal.Decimal { return r.PurchaseUnitNet },
	"purchase_unit_discounted":   func(r calc.ProductResult) decimal.Decimal { return r.PurchaseUnitDiscounted },
	"purchase_total":             func(r calc.ProductResult) decimal.Decimal { return r.PurchaseTotal },
	"logistics_supplier_to_hub":  func(r calc.ProductResult) decimal.Decimal { return r.LogisticsSupplierToHub },
	"logistics_hub_to_customs":   func(r calc.ProductResult) decimal.Decimal { return r.LogisticsHubToCustoms },
	"logistics_customs_to_client": func(r calc.ProductResult) decimal.Decimal { return r.LogisticsCustomsToClient },
	"logistics_total":            func(r calc.ProductResult) decimal.Decimal { return r.LogisticsTotal },
	"customs_valuation_base":     func(r calc.ProductResult) decimal.Decimal { return r.CustomsValuationBase },
	"import_duty":                func(r calc.ProductResult) decimal.Decimal { return r.ImportDuty },
	"excise_amount":              func(r calc.ProductResult) decimal.Decimal { return r.ExciseAmount },
	"utilization_fee":            func(r calc.ProductResult) decimal.Decimal { return r.UtilizationFee },
	"customs_total":              func(r calc.ProductResult) decimal.Decimal { return r.CustomsTotal },
	"clearance_total":            func(r calc.ProductResult) decimal.Decimal { return r.ClearanceTotal },
	"cogs_unit":                  func(r calc.ProductResult) decimal.Decimal { return r.COGSUnit },
	"cogs_total":                 func(r calc.ProductResult) decimal.Decimal { return r.COGSTotal },
	"markup_amount":              func(r calc.ProductResult) decimal.Decimal { return r.MarkupAmount },
	"sale_price_before_fees":     func(r calc.ProductResult) decimal.Decimal { return r.SalePriceBeforeFee },
	"dm_fee":                     func(r calc.ProductResult) decimal.Decimal { return r.DMFee },
	"forex_reserve":              func(r calc.ProductResult) decimal.Decimal { return r.ForexReserve },
	"agent_commission":           func(r calc.ProductResult) decimal.Decimal { return r.AgentCommission },
	"sale_excl_vat_unit":         func(r calc.ProductResult) decimal.Decimal { return r.SaleExclVATUnit },
	"sale_excl_vat_total":        func(r calc.ProductResult) decimal.Decimal { return r.SaleExclVATTotal },
	"output_vat":                 func(r calc.ProductResult) decimal.Decimal { return r.OutputVAT },
	"import_vat":                 func(r calc.ProductResult) decimal.Decimal { return r.ImportVAT },
	"net_vat_payable":            func(r calc.ProductResult) decimal.Decimal { return r.NetVATPayable },
	"sale_incl_vat_unit":         func(r calc.ProductResult) decimal.Decimal { return r.SaleInclVATUnit },
	"sale_incl_vat_total":        func(r calc.ProductResult) decimal.Decimal { return r.SaleInclVATTotal },
	"financing_cost":             func(r calc.ProductResult) decimal.Decimal { return r.FinancingCost },
	"profit":                     func(r calc.ProductResult) decimal.Decimal { return r.Profit },
	"profit_percent":             func(r calc.ProductResult) decimal.Decimal { return r.ProfitPercent },
	"transfer_price_net":         func(r calc.ProductResult) decimal.Decimal { return r.TransferPriceNet },
	"transfer_price_with_vat":    func(r calc.ProductResult) decimal.Decimal { return r.TransferPriceWithVAT },
}

var quoteFields = map[string]func(*calc.QuoteResult) decimal.Decimal{
	"total_purchase":    func(r *calc.QuoteResult) decimal.Decimal { return r.TotalPurchase },
	"total_logistics":   func(r *calc.QuoteResult) decimal.Decimal { return r.TotalLogistics },
	"total_customs":     func(r *calc.QuoteResult) decimal.Decimal { return r.TotalCustoms },
	"total_cogs":        func(r *calc.QuoteResult) decimal.Decimal { return r.TotalCOGS },
	"total_profit":      func(r *calc.QuoteResult) decimal.Decimal { return r.TotalProfit },
	"total_excl_vat":    func(r *calc.QuoteResult) decimal.Decimal { return r.TotalExclVAT },
	"total_incl_vat":    func(r *calc.QuoteResult) decimal.Decimal { return r.TotalInclVAT },
	"total_vat_payable": func(r *calc.QuoteResult) decimal.Decimal { return r.TotalVATPayable },
}
