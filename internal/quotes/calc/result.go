package calc

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
)

// ProductResult is the complete output of one per-product calculation run.
// Every field is expressed in the quote currency and derived deterministically
// from the Input; the value is an immutable snapshot.
type ProductResult struct {
	ProductName string          `json:"product_name"`
	Currency    fx.Currency     `json:"currency"`
	Quantity    decimal.Decimal `json:"quantity"`

	// Purchase price resolution (phases 1-3)
	PurchaseUnitGross      decimal.Decimal `json:"purchase_unit_gross"`
	PurchaseUnitNet        decimal.Decimal `json:"purchase_unit_net"`
	PurchaseUnitDiscounted decimal.Decimal `json:"purchase_unit_discounted"`
	PurchaseTotal          decimal.Decimal `json:"purchase_total"`

	// Logistics split (phase 4)
	LogisticsSupplierToHub   decimal.Decimal `json:"logistics_supplier_to_hub"`
	LogisticsHubToCustoms    decimal.Decimal `json:"logistics_hub_to_customs"`
	LogisticsCustomsToClient decimal.Decimal `json:"logistics_customs_to_client"`
	LogisticsTotal           decimal.Decimal `json:"logistics_total"`

	// Customs duties (phase 5)
	CustomsValuationBase decimal.Decimal `json:"customs_valuation_base"`
	ImportDuty           decimal.Decimal `json:"import_duty"`
	ExciseAmount         decimal.Decimal `json:"excise_amount"`
	UtilizationFee       decimal.Decimal `json:"utilization_fee"`
	CustomsTotal         decimal.Decimal `json:"customs_total"`

	// Cost of goods sold (phase 6)
	ClearanceTotal decimal.Decimal `json:"clearance_total"`
	COGSUnit       decimal.Decimal `json:"cogs_unit"`
	COGSTotal      decimal.Decimal `json:"cogs_total"`

	// Sale price build-up (phases 7-11)
	MarkupAmount       decimal.Decimal `json:"markup_amount"`
	SalePriceBeforeFee decimal.Decimal `json:"sale_price_before_fees"`
	DMFee              decimal.Decimal `json:"dm_fee"`
	ForexReserve       decimal.Decimal `json:"forex_reserve"`
	AgentCommission    decimal.Decimal `json:"agent_commission"`
	SaleExclVATUnit    decimal.Decimal `json:"sale_excl_vat_unit"`
	SaleExclVATTotal   decimal.Decimal `json:"sale_excl_vat_total"`

	// VAT (phase 12)
	OutputVAT        decimal.Decimal `json:"output_vat"`
	ImportVAT        decimal.Decimal `json:"import_vat"`
	NetVATPayable    decimal.Decimal `json:"net_vat_payable"`
	SaleInclVATUnit  decimal.Decimal `json:"sale_incl_vat_unit"`
	SaleInclVATTotal decimal.Decimal `json:"sale_incl_vat_total"`

	// Financing and profit (phase 13)
	FinancingDays         int             `json:"financing_days"`
	FinancingCost         decimal.Decimal `json:"financing_cost"`
	Profit                decimal.Decimal `json:"profit"`
	ProfitPercent         decimal.Decimal `json:"profit_percent"`
	TransferPriceNet      decimal.Decimal `json:"transfer_price_net"`
	TransferPriceWithVAT  decimal.Decimal `json:"transfer_price_with_vat"`
}

// QuoteResult aggregates per-product results across a multi-product quote.
// Aggregation is pure summation of already-rounded per-product totals, so the
// per-field sums match the product list exactly.
type QuoteResult struct {
	Currency fx.Currency     `json:"currency"`
	Products []ProductResult `json:"products"`

	TotalPurchase    decimal.Decimal `json:"total_purchase"`
	TotalLogistics   decimal.Decimal `json:"total_logistics"`
	TotalCustoms     decimal.Decimal `json:"total_customs"`
	TotalCOGS        decimal.Decimal `json:"total_cogs"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TotalExclVAT     decimal.Decimal `json:"total_excl_vat"`
	TotalInclVAT     decimal.Decimal `json:"total_incl_vat"`
	TotalVATPayable  decimal.Decimal `json:"total_vat_payable"`
}
