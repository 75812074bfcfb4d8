package calc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
)

var (
	one        = decimal.NewFromInt(1)
	hundred    = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
)

// round2 applies half-up rounding to the currency minor unit. Rounding happens
// only at designated phase boundaries; moving a rounding point is what breaks
// reconciliation against the legacy spreadsheet.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func pct(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// CalculateProduct executes the 13-phase formula chain for one product line.
// The phases run strictly in order; later phases consume earlier phases'
// rounded outputs exactly where the legacy spreadsheet does.
func CalculateProduct(in Input) (*ProductResult, error) {
	qty := in.Product.Quantity
	if qty.IsNegative() {
		return nil, calcErr(3, "quantity", "must not be negative")
	}

	// Phase 1: purchase price resolution in the quote currency.
	if !fx.Supported(in.Financial.QuoteCurrency) {
		return nil, calcErr(1, "quote_currency", fmt.Sprintf("unsupported currency %q", in.Financial.QuoteCurrency))
	}
	if !fx.Supported(in.Product.BasePriceCurrency) {
		return nil, calcErr(1, "base_price_currency", fmt.Sprintf("unsupported currency %q", in.Product.BasePriceCurrency))
	}
	if !in.Financial.ExchangeRate.IsPositive() {
		return nil, calcErr(1, "exchange_rate", "must be positive")
	}
	if in.Product.BasePrice.IsNegative() {
		return nil, calcErr(1, "base_price", "must not be negative")
	}
	unitGross := in.Product.BasePrice.Mul(in.Financial.ExchangeRate)
	unitNet := unitGross
	if in.Product.BasePriceIncludesVAT {
		if in.Product.SupplierVATPercent.IsNegative() {
			return nil, calcErr(1, "supplier_vat_percent", "must not be negative")
		}
		unitNet = unitGross.Div(one.Add(pct(in.Product.SupplierVATPercent)))
	}

	// Phase 2: supplier discount.
	discount := in.Financial.DiscountPercent
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return nil, calcErr(2, "discount_percent", "must be between 0 and 100")
	}
	unitDiscounted := unitNet.Mul(one.Sub(pct(discount)))

	// Phase 3: per-unit and total purchase price. Rounding boundary.
	purchaseUnit := round2(unitDiscounted)
	purchaseTotal := round2(purchaseUnit.Mul(qty))

	// Phase 4: logistics cost assembly.
	if _, err := ParseIncoterms(string(in.Logistics.Incoterms)); err != nil {
		return nil, calcErr(4, "incoterms", err.Error())
	}
	legs := []struct {
		field string
		value decimal.Decimal
	}{
		{"logistics_supplier_to_hub", in.Logistics.SupplierToHub},
		{"logistics_hub_to_customs", in.Logistics.HubToCustoms},
		{"logistics_customs_to_client", in.Logistics.CustomsToClient},
	}
	for _, leg := range legs {
		if leg.value.IsNegative() {
			return nil, calcErr(4, leg.field, "must not be negative")
		}
	}
	logisticsTotal := in.Logistics.SupplierToHub.
		Add(in.Logistics.HubToCustoms).
		Add(in.Logistics.CustomsToClient)

	// Phase 5: customs duty and fees. The valuation base depends on the
	// supplier country's customs regime.
	regime, err := RegimeForCountry(in.Logistics.SupplierCountry)
	if err != nil {
		return nil, calcErr(5, "supplier_country", err.Error())
	}
	if in.Taxes.ImportTariffPercent.IsNegative() {
		return nil, calcErr(5, "import_tariff_percent", "must not be negative")
	}
	if in.Taxes.ExcisePercent.IsNegative() {
		return nil, calcErr(5, "excise_percent", "must not be negative")
	}
	if in.Taxes.UtilizationFeeUnit.IsNegative() {
		return nil, calcErr(5, "utilization_fee", "must not be negative")
	}
	valuationBase := purchaseTotal
	if regime == RegimeStandard {
		valuationBase = valuationBase.Add(in.Logistics.SupplierToHub)
	}
	importDuty := valuationBase.Mul(pct(in.Taxes.ImportTariffPercent))
	excise := valuationBase.Mul(pct(in.Taxes.ExcisePercent))
	utilization := in.Taxes.UtilizationFeeUnit.Mul(qty)
	customsTotal := importDuty.Add(excise).Add(utilization)

	// Phase 6: COGS assembly. Rounding boundary.
	clearanceTotal := in.Clearance.BrokerageAtHub.
		Add(in.Clearance.BrokerageAtCustoms).
		Add(in.Clearance.Warehousing).
		Add(in.Clearance.Documentation).
		Add(in.Clearance.Extra)
	if clearanceTotal.IsNegative() {
		return nil, calcErr(6, "clearance", "must not be negative")
	}
	cogsTotal := round2(purchaseTotal.Add(logisticsTotal).Add(customsTotal).Add(clearanceTotal))
	cogsUnit := decimal.Zero
	if qty.IsPositive() {
		cogsUnit = round2(cogsTotal.Div(qty))
	}

	// Phase 7: markup.
	if in.Financial.MarkupPercent.IsNegative() {
		return nil, calcErr(7, "markup_percent", "must not be negative")
	}
	markup := cogsTotal.Mul(pct(in.Financial.MarkupPercent))
	saleBeforeFees := cogsTotal.Add(markup)

	// Phase 8: distribution-management fee, fixed or percent of sale price.
	if in.Financial.DMFeeValue.IsNegative() {
		return nil, calcErr(8, "dm_fee_value", "must not be negative")
	}
	var dmFee decimal.Decimal
	switch in.Financial.DMFeeMode {
	case DMFeeFixed, "":
		dmFee = in.Financial.DMFeeValue
	case DMFeePercent:
		dmFee = saleBeforeFees.Mul(pct(in.Financial.DMFeeValue))
	default:
		return nil, calcErr(8, "dm_fee_type", fmt.Sprintf("unknown mode %q", in.Financial.DMFeeMode))
	}

	// Phase 9: forex risk reserve over the fee-inclusive sale price.
	if in.Financial.ForexRiskPercent.IsNegative() {
		return nil, calcErr(9, "forex_risk_percent", "must not be negative")
	}
	forexReserve := saleBeforeFees.Add(dmFee).Mul(pct(in.Financial.ForexRiskPercent))

	// Phase 10: financial agent commission, brokerage sales only.
	var agentCommission decimal.Decimal
	switch in.Company.SaleType {
	case SaleTypeBrokerage:
		if in.Rates.FinancingCommissionPercent.IsNegative() {
			return nil, calcErr(10, "financing_commission_percent", "must not be negative")
		}
		agentCommission = saleBeforeFees.Mul(pct(in.Rates.FinancingCommissionPercent))
	case SaleTypeResale, "":
		agentCommission = decimal.Zero
	default:
		return nil, calcErr(10, "sale_type", fmt.Sprintf("unknown sale type %q", in.Company.SaleType))
	}

	// Phase 11: sale price excl. VAT. Rounding boundary.
	saleExclTotal := round2(saleBeforeFees.Add(dmFee).Add(forexReserve).Add(agentCommission))
	saleExclUnit := decimal.Zero
	if qty.IsPositive() {
		saleExclUnit = round2(saleExclTotal.Div(qty))
	}

	// Phase 12: VAT. Import VAT is reclaimable for direct resale through the
	// standard regime; brokerage and transit-zone entries carry it as cost.
	if in.Taxes.VATPercent.IsNegative() {
		return nil, calcErr(12, "vat_percent", "must not be negative")
	}
	outputVAT := round2(saleExclTotal.Mul(pct(in.Taxes.VATPercent)))
	importVAT := round2(valuationBase.Add(importDuty).Add(excise).Mul(pct(in.Taxes.VATPercent)))
	reclaimable := in.Company.SaleType != SaleTypeBrokerage && regime == RegimeStandard
	netVAT := outputVAT
	if reclaimable {
		netVAT = outputVAT.Sub(importVAT)
	}
	saleInclTotal := round2(saleExclTotal.Add(outputVAT))
	saleInclUnit := decimal.Zero
	if qty.IsPositive() {
		saleInclUnit = round2(saleInclTotal.Div(qty))
	}

	// Phase 13: financing cost over the payment schedule, then profit.
	for _, m := range in.Payment.Milestones {
		if m.DayOffset < 0 {
			return nil, calcErr(13, "payment_terms", "milestone day offsets must not be negative")
		}
	}
	days := financingDays(in.Payment)
	financingCost := round2(cogsTotal.
		Mul(pct(in.Rates.AnnualLoanInterestPercent)).
		Mul(decimal.NewFromInt(int64(days))).
		Div(daysInYear))
	profit := round2(saleExclTotal.
		Sub(cogsTotal).
		Sub(dmFee).
		Sub(forexReserve).
		Sub(agentCommission).
		Sub(financingCost))
	profitPercent := decimal.Zero
	if cogsTotal.IsPositive() {
		profitPercent = round2(profit.Div(cogsTotal).Mul(hundred))
	}
	transferNet := round2(cogsTotal.Add(financingCost))
	transferVAT := round2(transferNet.Mul(one.Add(pct(in.Taxes.VATPercent))))

	return &ProductResult{
		ProductName: in.Product.Name,
		Currency:    in.Financial.QuoteCurrency,
		Quantity:    qty,

		PurchaseUnitGross:      round2(unitGross),
		PurchaseUnitNet:        round2(unitNet),
		PurchaseUnitDiscounted: purchaseUnit,
		PurchaseTotal:          purchaseTotal,

		LogisticsSupplierToHub:   round2(in.Logistics.SupplierToHub),
		LogisticsHubToCustoms:    round2(in.Logistics.HubToCustoms),
		LogisticsCustomsToClient: round2(in.Logistics.CustomsToClient),
		LogisticsTotal:           round2(logisticsTotal),

		CustomsValuationBase: round2(valuationBase),
		ImportDuty:           round2(importDuty),
		ExciseAmount:         round2(excise),
		UtilizationFee:       round2(utilization),
		CustomsTotal:         round2(customsTotal),

		ClearanceTotal: round2(clearanceTotal),
		COGSUnit:       cogsUnit,
		COGSTotal:      cogsTotal,

		MarkupAmount:       round2(markup),
		SalePriceBeforeFee: round2(saleBeforeFees),
		DMFee:              round2(dmFee),
		ForexReserve:       round2(forexReserve),
		AgentCommission:    round2(agentCommission),
		SaleExclVATUnit:    saleExclUnit,
		SaleExclVATTotal:   saleExclTotal,

		OutputVAT:        outputVAT,
		ImportVAT:        importVAT,
		NetVATPayable:    round2(netVAT),
		SaleInclVATUnit:  saleInclUnit,
		SaleInclVATTotal: saleInclTotal,

		FinancingDays:        days,
		FinancingCost:        financingCost,
		Profit:               profit,
		ProfitPercent:        profitPercent,
		TransferPriceNet:     transferNet,
		TransferPriceWithVAT: transferVAT,
	}, nil
}

// financingDays spans the payment schedule from the first advance to the final
// payment. Fewer than two milestones means no capital lock-up window.
func financingDays(terms PaymentTerms) int {
	if len(terms.Milestones) < 2 {
		return 0
	}
	first := terms.Milestones[0].DayOffset
	last := terms.Milestones[0].DayOffset
	for _, m := range terms.Milestones[1:] {
		if m.DayOffset < first {
			first = m.DayOffset
		}
		if m.DayOffset > last {
			last = m.DayOffset
		}
	}
	return last - first
}

// CalculateQuote runs the per-product chain for every line and sums the
// totals. Aggregation is pure summation; no value is re-derived.
func CalculateQuote(inputs []Input) (*QuoteResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("calc: quote has no product lines")
	}
	currency := inputs[0].Financial.QuoteCurrency
	result := &QuoteResult{Currency: currency}

	for i, in := range inputs {
		if in.Financial.QuoteCurrency != currency {
			return nil, fmt.Errorf("calc: product %d uses currency %s, quote currency is %s",
				i+1, in.Financial.QuoteCurrency, currency)
		}
		product, err := CalculateProduct(in)
		if err != nil {
			return nil, fmt.Errorf("calc: product %d (%s): %w", i+1, in.Product.Name, err)
		}
		result.Products = append(result.Products, *product)

		result.TotalPurchase = result.TotalPurchase.Add(product.PurchaseTotal)
		result.TotalLogistics = result.TotalLogistics.Add(product.LogisticsTotal)
		result.TotalCustoms = result.TotalCustoms.Add(product.CustomsTotal)
		result.TotalCOGS = result.TotalCOGS.Add(product.COGSTotal)
		result.TotalProfit = result.TotalProfit.Add(product.Profit)
		result.TotalExclVAT = result.TotalExclVAT.Add(product.SaleExclVATTotal)
		result.TotalInclVAT = result.TotalInclVAT.Add(product.SaleInclVATTotal)
		result.TotalVATPayable = result.TotalVATPayable.Add(product.NetVATPayable)
	}
	return result, nil
}
