package calc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
)

// SaleType distinguishes direct resale from brokerage/agency transactions.
type SaleType string

const (
	SaleTypeResale    SaleType = "resale"
	SaleTypeBrokerage SaleType = "brokerage"
)

// ParseSaleType validates a raw sale type.
func ParseSaleType(raw string) (SaleType, error) {
	switch SaleType(strings.ToLower(strings.TrimSpace(raw))) {
	case SaleTypeResale:
		return SaleTypeResale, nil
	case SaleTypeBrokerage:
		return SaleTypeBrokerage, nil
	}
	return "", fmt.Errorf("calc: unknown sale type %q", raw)
}

// DMFeeMode selects how the distribution-management fee is expressed.
type DMFeeMode string

const (
	DMFeeFixed   DMFeeMode = "fixed"
	DMFeePercent DMFeeMode = "percent"
)

// ParseDMFeeMode validates a raw fee mode.
func ParseDMFeeMode(raw string) (DMFeeMode, error) {
	switch DMFeeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DMFeeFixed:
		return DMFeeFixed, nil
	case DMFeePercent:
		return DMFeePercent, nil
	}
	return "", fmt.Errorf("calc: unknown dm fee mode %q", raw)
}

// Incoterms is a recognised international delivery term.
type Incoterms string

var knownIncoterms = map[Incoterms]struct{}{
	"EXW": {}, "FCA": {}, "FAS": {}, "FOB": {}, "CFR": {}, "CIF": {},
	"CPT": {}, "CIP": {}, "DAP": {}, "DPU": {}, "DDP": {},
}

// ParseIncoterms validates a raw delivery term.
func ParseIncoterms(raw string) (Incoterms, error) {
	term := Incoterms(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownIncoterms[term]; !ok {
		return "", fmt.Errorf("calc: unknown incoterms %q", raw)
	}
	return term, nil
}

// CustomsRegime determines the customs valuation base for a supplier country.
type CustomsRegime string

const (
	// RegimeStandard values goods as purchase price plus the first logistics leg.
	RegimeStandard CustomsRegime = "standard"
	// RegimeTransit applies to transit-zone routes; valuation excludes logistics.
	RegimeTransit CustomsRegime = "transit"
)

var countryRegimes = map[string]CustomsRegime{
	"RU": RegimeStandard,
	"BY": RegimeStandard,
	"KZ": RegimeStandard,
	"DE": RegimeStandard,
	"IT": RegimeStandard,
	"FR": RegimeStandard,
	"NL": RegimeStandard,
	"PL": RegimeStandard,
	"US": RegimeStandard,
	"IN": RegimeStandard,
	"KR": RegimeStandard,
	"JP": RegimeStandard,
	"CN": RegimeTransit,
	"TR": RegimeTransit,
	"AE": RegimeTransit,
}

// RegimeForCountry resolves the customs regime for a supplier country code.
func RegimeForCountry(code string) (CustomsRegime, error) {
	regime, ok := countryRegimes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("calc: unknown supplier country %q", code)
	}
	return regime, nil
}

// ProductParams identifies the product line and its physical quantities.
type ProductParams struct {
	Name                 string
	Quantity             decimal.Decimal
	UnitWeightKG         decimal.Decimal
	BasePrice            decimal.Decimal
	BasePriceCurrency    fx.Currency
	BasePriceIncludesVAT bool
	SupplierVATPercent   decimal.Decimal
}

// FinancialParams carries the quote-currency pricing policy.
// All percentages are whole-number percentages (15 means 15%), normalised by
// the variable resolver before the engine runs.
type FinancialParams struct {
	QuoteCurrency    fx.Currency
	ExchangeRate     decimal.Decimal // base-price currency -> quote currency
	DiscountPercent  decimal.Decimal
	MarkupPercent    decimal.Decimal
	ForexRiskPercent decimal.Decimal
	DMFeeMode        DMFeeMode
	DMFeeValue       decimal.Decimal // absolute amount or percent, per mode
}

// LogisticsParams carries the three delivery legs, already expressed in the
// quote currency and already allocated to this product line.
type LogisticsParams struct {
	SupplierCountry string
	Incoterms       Incoterms
	DeliveryDays    int
	SupplierToHub   decimal.Decimal
	HubToCustoms    decimal.Decimal
	CustomsToClient decimal.Decimal
}

// TaxParams carries duty and VAT percentages plus the per-unit utilization fee.
type TaxParams struct {
	ImportTariffPercent decimal.Decimal
	ExcisePercent       decimal.Decimal
	UtilizationFeeUnit  decimal.Decimal
	VATPercent          decimal.Decimal
}

// PaymentMilestone is one step of the client payment schedule.
type PaymentMilestone struct {
	Percent   decimal.Decimal
	DayOffset int
}

// PaymentTerms is the ordered advance/final payment schedule, up to five steps.
type PaymentTerms struct {
	Milestones []PaymentMilestone
}

// ClearanceCosts groups customs clearance service fees in the quote currency.
type ClearanceCosts struct {
	BrokerageAtHub     decimal.Decimal
	BrokerageAtCustoms decimal.Decimal
	Warehousing        decimal.Decimal
	Documentation      decimal.Decimal
	Extra              decimal.Decimal
}

// CompanyParams identifies the selling legal entity and the transaction shape.
type CompanyParams struct {
	SellerEntity string
	SaleType     SaleType
}

// SystemRates are organisation-wide financing constants.
type SystemRates struct {
	FinancingCommissionPercent decimal.Decimal
	AnnualLoanInterestPercent  decimal.Decimal
	InsuranceRatePercent       decimal.Decimal
	CustomsPaymentDueDays      int
}

// Input is the engine's unit of work, one instance per product line.
//
// Every monetary amount entering the engine must already be expressed in the
// quote currency (except the base price, which is converted in phase 1 at the
// supplied exchange rate). The engine is a pure function of this value.
type Input struct {
	Product   ProductParams
	Financial FinancialParams
	Logistics LogisticsParams
	Taxes     TaxParams
	Payment   PaymentTerms
	Clearance ClearanceCosts
	Company   CompanyParams
	Rates     SystemRates
}
