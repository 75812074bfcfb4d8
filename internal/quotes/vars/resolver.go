package vars

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
)

// Calculation variable names as they arrive from spreadsheet imports and
// quote forms. One flat namespace shared by quote-level defaults and
// per-product overrides.
const (
	VarBasePrice            = "base_price"
	VarBasePriceCurrency    = "base_price_currency"
	VarBasePriceIncludesVAT = "base_price_includes_vat"
	VarSupplierVATPercent   = "supplier_vat_percent"
	VarQuantity             = "quantity"
	VarUnitWeightKG         = "unit_weight_kg"
	VarQuoteCurrency        = "quote_currency"
	VarExchangeRate         = "exchange_rate"
	VarDiscountPercent      = "discount_percent"
	VarMarkupPercent        = "markup_percent"
	VarForexRiskPercent     = "forex_risk_percent"
	VarDMFeeType            = "dm_fee_type"
	VarDMFeeValue           = "dm_fee_value"
	VarSupplierCountry      = "supplier_country"
	VarIncoterms            = "incoterms"
	VarDeliveryDays         = "delivery_days"
	VarLogisticsCurrency    = "logistics_currency"
	VarLegSupplierToHub     = "logistics_supplier_to_hub"
	VarLegHubToCustoms      = "logistics_hub_to_customs"
	VarLegCustomsToClient   = "logistics_customs_to_client"
	VarImportTariffPercent  = "import_tariff_percent"
	VarExcisePercent        = "excise_percent"
	VarUtilizationFee       = "utilization_fee"
	VarVATPercent           = "vat_percent"
	VarBrokerageAtHub       = "brokerage_at_hub"
	VarBrokerageAtCustoms   = "brokerage_at_customs"
	VarWarehousing          = "warehousing"
	VarDocumentation        = "documentation"
	VarClearanceExtra       = "clearance_extra"
	VarSellerEntity         = "seller_entity"
	VarSaleType             = "sale_type"
	VarFinancingCommission  = "financing_commission_percent"
	VarAnnualLoanInterest   = "annual_loan_interest_percent"
	VarInsuranceRate        = "insurance_rate_percent"
	VarCustomsDueDays       = "customs_due_days"
)

// Payment schedule slots. Up to five milestones, percent plus day offset.
var (
	PaymentPercentVars = []string{"payment_percent_1", "payment_percent_2", "payment_percent_3", "payment_percent_4", "payment_percent_5"}
	PaymentDaysVars    = []string{"payment_days_1", "payment_days_2", "payment_days_3", "payment_days_4", "payment_days_5"}
)

// systemDefaults is the third resolution tier: hard fallback constants used
// when neither the product override nor the quote default carries a value.
var systemDefaults = map[string]any{
	VarBasePriceIncludesVAT: false,
	VarSupplierVATPercent:   "20",
	VarUnitWeightKG:         "0",
	VarDiscountPercent:      "0",
	VarMarkupPercent:        "0",
	VarForexRiskPercent:     "0",
	VarDMFeeType:            "fixed",
	VarDMFeeValue:           "0",
	VarSupplierCountry:      "RU",
	VarIncoterms:            "DAP",
	VarDeliveryDays:         30,
	VarLegSupplierToHub:     "0",
	VarLegHubToCustoms:      "0",
	VarLegCustomsToClient:   "0",
	VarImportTariffPercent:  "0",
	VarExcisePercent:        "0",
	VarUtilizationFee:       "0",
	VarVATPercent:           "20",
	VarBrokerageAtHub:       "0",
	VarBrokerageAtCustoms:   "0",
	VarWarehousing:          "0",
	VarDocumentation:        "0",
	VarClearanceExtra:       "0",
	VarSellerEntity:         "",
	VarSaleType:             "resale",
	VarFinancingCommission:  "5",
	VarAnnualLoanInterest:   "15",
	VarInsuranceRate:        "0.5",
	VarCustomsDueDays:       15,
}

// QuoteVars is the raw input surface: quote-level defaults plus per-product
// override mappings, exactly as uploaded or submitted.
type QuoteVars struct {
	Defaults map[string]any
	Products []ProductVars
	AsOf     time.Time
}

// ProductVars is one product row with its override mapping.
type ProductVars struct {
	Name      string
	Overrides map[string]any
}

// Resolver turns raw variable mappings into engine inputs. It owns the only
// cross-currency conversions in the pipeline: everything handed to the engine
// is already in the quote currency.
type Resolver struct {
	conv   *fx.Converter
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(conv *fx.Converter, logger *slog.Logger) *Resolver {
	return &Resolver{conv: conv, logger: logger}
}

// Resolve produces one calc.Input per product row.
func (r *Resolver) Resolve(ctx context.Context, q QuoteVars) ([]calc.Input, error) {
	if len(q.Products) == 0 {
		return nil, validationErr("products", 0, "quote has no product rows")
	}
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	quoteCurrencyRaw, ok := lookup(q.Defaults, nil, VarQuoteCurrency)
	if !ok {
		return nil, validationErr(VarQuoteCurrency, 0, "required variable missing")
	}
	quoteCurrency, err := fx.ParseCurrency(toString(quoteCurrencyRaw))
	if err != nil {
		return nil, validationErr(VarQuoteCurrency, 0, err.Error())
	}

	masses, totalMass, err := r.allocationMasses(q)
	if err != nil {
		return nil, err
	}

	inputs := make([]calc.Input, 0, len(q.Products))
	for i, product := range q.Products {
		row := i + 1
		rv := rowResolver{defaults: q.Defaults, overrides: product.Overrides, row: row}

		input, err := r.resolveProduct(ctx, &rv, product, quoteCurrency, allocation{mass: masses[i], total: totalMass}, asOf)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, *input)
	}
	return inputs, nil
}

func (r *Resolver) resolveProduct(ctx context.Context, rv *rowResolver, product ProductVars, quoteCurrency fx.Currency, share allocation, asOf time.Time) (*calc.Input, error) {
	basePrice, err := rv.requiredDecimal(VarBasePrice)
	if err != nil {
		return nil, err
	}
	quantity, err := rv.requiredDecimal(VarQuantity)
	if err != nil {
		return nil, err
	}

	baseCurrency := quoteCurrency
	if raw, ok := rv.get(VarBasePriceCurrency); ok {
		baseCurrency, err = fx.ParseCurrency(toString(raw))
		if err != nil {
			return nil, validationErr(VarBasePriceCurrency, rv.row, err.Error())
		}
	}

	exchangeRate, err := r.resolveExchangeRate(ctx, rv, baseCurrency, quoteCurrency, asOf)
	if err != nil {
		return nil, err
	}

	includesVAT, err := rv.boolVar(VarBasePriceIncludesVAT)
	if err != nil {
		return nil, err
	}
	supplierVAT, err := rv.percentVar(VarSupplierVATPercent)
	if err != nil {
		return nil, err
	}
	unitWeight, err := rv.decimalVar(VarUnitWeightKG)
	if err != nil {
		return nil, err
	}

	discount, err := rv.percentVar(VarDiscountPercent)
	if err != nil {
		return nil, err
	}
	markup, err := rv.percentVar(VarMarkupPercent)
	if err != nil {
		return nil, err
	}
	forexRisk, err := rv.percentVar(VarForexRiskPercent)
	if err != nil {
		return nil, err
	}
	dmModeRaw, _ := rv.get(VarDMFeeType)
	dmMode, err := calc.ParseDMFeeMode(toString(dmModeRaw))
	if err != nil {
		return nil, validationErr(VarDMFeeType, rv.row, err.Error())
	}
	var dmValue decimal.Decimal
	if dmMode == calc.DMFeePercent {
		dmValue, err = rv.percentVar(VarDMFeeValue)
	} else {
		dmValue, err = rv.decimalVar(VarDMFeeValue)
	}
	if err != nil {
		return nil, err
	}

	country, _ := rv.get(VarSupplierCountry)
	if _, err := calc.RegimeForCountry(toString(country)); err != nil {
		return nil, validationErr(VarSupplierCountry, rv.row, err.Error())
	}
	incotermsRaw, _ := rv.get(VarIncoterms)
	incoterms, err := calc.ParseIncoterms(toString(incotermsRaw))
	if err != nil {
		return nil, validationErr(VarIncoterms, rv.row, err.Error())
	}
	deliveryDays, err := rv.intVar(VarDeliveryDays)
	if err != nil {
		return nil, err
	}

	logisticsCurrency := quoteCurrency
	if raw, ok := rv.get(VarLogisticsCurrency); ok {
		logisticsCurrency, err = fx.ParseCurrency(toString(raw))
		if err != nil {
			return nil, validationErr(VarLogisticsCurrency, rv.row, err.Error())
		}
	}

	legSupplierToHub, err := r.resolveLeg(ctx, rv, VarLegSupplierToHub, share, logisticsCurrency, quoteCurrency, asOf)
	if err != nil {
		return nil, err
	}
	legHubToCustoms, err := r.resolveLeg(ctx, rv, VarLegHubToCustoms, share, logisticsCurrency, quoteCurrency, asOf)
	if err != nil {
		return nil, err
	}
	legCustomsToClient, err := r.resolveLeg(ctx, rv, VarLegCustomsToClient, share, logisticsCurrency, quoteCurrency, asOf)
	if err != nil {
		return nil, err
	}

	tariff, err := rv.percentVar(VarImportTariffPercent)
	if err != nil {
		return nil, err
	}
	excise, err := rv.percentVar(VarExcisePercent)
	if err != nil {
		return nil, err
	}
	utilization, err := rv.decimalVar(VarUtilizationFee)
	if err != nil {
		return nil, err
	}
	vat, err := rv.percentVar(VarVATPercent)
	if err != nil {
		return nil, err
	}

	milestones, err := rv.paymentMilestones()
	if err != nil {
		return nil, err
	}

	clearance := calc.ClearanceCosts{}
	for _, entry := range []struct {
		name   string
		target *decimal.Decimal
	}{
		{VarBrokerageAtHub, &clearance.BrokerageAtHub},
		{VarBrokerageAtCustoms, &clearance.BrokerageAtCustoms},
		{VarWarehousing, &clearance.Warehousing},
		{VarDocumentation, &clearance.Documentation},
		{VarClearanceExtra, &clearance.Extra},
	} {
		value, err := rv.decimalVar(entry.name)
		if err != nil {
			return nil, err
		}
		*entry.target = r.convertAmount(ctx, value, logisticsCurrency, quoteCurrency, asOf)
	}

	sellerRaw, _ := rv.get(VarSellerEntity)
	saleTypeRaw, _ := rv.get(VarSaleType)
	saleType, err := calc.ParseSaleType(toString(saleTypeRaw))
	if err != nil {
		return nil, validationErr(VarSaleType, rv.row, err.Error())
	}

	financingCommission, err := rv.percentVar(VarFinancingCommission)
	if err != nil {
		return nil, err
	}
	loanInterest, err := rv.percentVar(VarAnnualLoanInterest)
	if err != nil {
		return nil, err
	}
	insuranceRate, err := rv.percentVar(VarInsuranceRate)
	if err != nil {
		return nil, err
	}
	customsDueDays, err := rv.intVar(VarCustomsDueDays)
	if err != nil {
		return nil, err
	}

	return &calc.Input{
		Product: calc.ProductParams{
			Name:                 product.Name,
			Quantity:             quantity,
			UnitWeightKG:         unitWeight,
			BasePrice:            basePrice,
			BasePriceCurrency:    baseCurrency,
			BasePriceIncludesVAT: includesVAT,
			SupplierVATPercent:   supplierVAT,
		},
		Financial: calc.FinancialParams{
			QuoteCurrency:    quoteCurrency,
			ExchangeRate:     exchangeRate,
			DiscountPercent:  discount,
			MarkupPercent:    markup,
			ForexRiskPercent: forexRisk,
			DMFeeMode:        dmMode,
			DMFeeValue:       dmValue,
		},
		Logistics: calc.LogisticsParams{
			SupplierCountry: strings.ToUpper(toString(country)),
			Incoterms:       incoterms,
			DeliveryDays:    deliveryDays,
			SupplierToHub:   legSupplierToHub,
			HubToCustoms:    legHubToCustoms,
			CustomsToClient: legCustomsToClient,
		},
		Taxes: calc.TaxParams{
			ImportTariffPercent: tariff,
			ExcisePercent:       excise,
			UtilizationFeeUnit:  utilization,
			VATPercent:          vat,
		},
		Payment:   calc.PaymentTerms{Milestones: milestones},
		Clearance: clearance,
		Company: calc.CompanyParams{
			SellerEntity: toString(sellerRaw),
			SaleType:     saleType,
		},
		Rates: calc.SystemRates{
			FinancingCommissionPercent: financingCommission,
			AnnualLoanInterestPercent:  loanInterest,
			InsuranceRatePercent:       insuranceRate,
			CustomsPaymentDueDays:      customsDueDays,
		},
	}, nil
}

// resolveExchangeRate honours an explicit exchange_rate variable and otherwise
// derives the cross rate from published rates for the as-of date.
func (r *Resolver) resolveExchangeRate(ctx context.Context, rv *rowResolver, from, to fx.Currency, asOf time.Time) (decimal.Decimal, error) {
	if raw, ok := rv.get(VarExchangeRate); ok {
		rate, err := toDecimal(raw)
		if err != nil {
			return decimal.Decimal{}, validationErr(VarExchangeRate, rv.row, err.Error())
		}
		return rate, nil
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r.conv == nil {
		return decimal.Decimal{}, validationErr(VarExchangeRate, rv.row, "required variable missing")
	}
	rate, ok := r.conv.RateBetween(ctx, from, to, asOf)
	if !ok && r.logger != nil {
		r.logger.Warn("exchange rate unavailable, using 1",
			slog.String("from", string(from)), slog.String("to", string(to)))
	}
	return rate, nil
}

// resolveLeg resolves one logistics leg: a per-product override wins, a
// quote-level amount is allocated by weight share, and the system fallback is
// zero. The resolved amount is converted into the quote currency.
func (r *Resolver) resolveLeg(ctx context.Context, rv *rowResolver, name string, share allocation, legCurrency, quoteCurrency fx.Currency, asOf time.Time) (decimal.Decimal, error) {
	if raw, ok := get(rv.overrides, name); ok {
		value, err := toDecimal(raw)
		if err != nil {
			return decimal.Decimal{}, validationErr(name, rv.row, err.Error())
		}
		return r.convertAmount(ctx, value, legCurrency, quoteCurrency, asOf), nil
	}
	if raw, ok := get(rv.defaults, name); ok {
		total, err := toDecimal(raw)
		if err != nil {
			return decimal.Decimal{}, validationErr(name, 0, err.Error())
		}
		return r.convertAmount(ctx, share.apply(total), legCurrency, quoteCurrency, asOf), nil
	}
	return decimal.Zero, nil
}

// allocation is one product's share of a quote-level amount, kept as a
// mass/total pair so the division happens after the multiplication and exact
// splits stay exact.
type allocation struct {
	mass  decimal.Decimal
	total decimal.Decimal
}

func (a allocation) apply(amount decimal.Decimal) decimal.Decimal {
	if !a.total.IsPositive() {
		return amount
	}
	return amount.Mul(a.mass).Div(a.total)
}

func (r *Resolver) convertAmount(ctx context.Context, amount decimal.Decimal, from, to fx.Currency, asOf time.Time) decimal.Decimal {
	if from == to || amount.IsZero() || r.conv == nil {
		return amount
	}
	return r.conv.Convert(ctx, amount, from, to, asOf)
}

// allocationMasses computes the per-product numerators and shared denominator
// for splitting quote-level logistics totals: weight-proportional, falling
// back to quantity shares and finally an equal split when weights and
// quantities are absent.
func (r *Resolver) allocationMasses(q QuoteVars) ([]decimal.Decimal, decimal.Decimal, error) {
	weights := make([]decimal.Decimal, len(q.Products))
	quantities := make([]decimal.Decimal, len(q.Products))
	totalWeight := decimal.Zero
	totalQty := decimal.Zero

	for i, product := range q.Products {
		rv := rowResolver{defaults: q.Defaults, overrides: product.Overrides, row: i + 1}
		qty, err := rv.requiredDecimal(VarQuantity)
		if err != nil {
			return nil, decimal.Decimal{}, err
		}
		weight, err := rv.decimalVar(VarUnitWeightKG)
		if err != nil {
			return nil, decimal.Decimal{}, err
		}
		weights[i] = weight.Mul(qty)
		quantities[i] = qty
		totalWeight = totalWeight.Add(weights[i])
		totalQty = totalQty.Add(qty)
	}

	switch {
	case totalWeight.IsPositive():
		return weights, totalWeight, nil
	case totalQty.IsPositive():
		return quantities, totalQty, nil
	default:
		ones := make([]decimal.Decimal, len(q.Products))
		for i := range ones {
			ones[i] = decimal.NewFromInt(1)
		}
		return ones, decimal.NewFromInt(int64(len(q.Products))), nil
	}
}
