package vars

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quotes/calc"
)

// one is the percent-form threshold: values at or below it are treated as
// fractional form and scaled up by NormalizePercent.
var one = decimal.NewFromInt(1)

// NormalizePercent maps fractional-form percentages into whole-number form:
// 0.15 becomes 15, while 15 stays 15. Zero and negative magnitudes up to one
// are scaled the same way, so the operation is idempotent for any value whose
// absolute magnitude exceeds one.
func NormalizePercent(value decimal.Decimal) decimal.Decimal {
	if value.Abs().LessThanOrEqual(one) {
		return value.Mul(decimal.NewFromInt(100))
	}
	return value
}

// get reports the raw value for name, treating nil values as absent.
func get(m map[string]any, name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	value, ok := m[name]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// lookup applies the resolution order: product override, then quote default,
// then the system fallback table. A stored zero or empty string is a present
// value and stops the fallthrough.
func lookup(defaults, overrides map[string]any, name string) (any, bool) {
	if value, ok := get(overrides, name); ok {
		return value, true
	}
	if value, ok := get(defaults, name); ok {
		return value, true
	}
	value, ok := systemDefaults[name]
	return value, ok
}

// rowResolver binds the lookup tiers to one product row for error reporting.
type rowResolver struct {
	defaults  map[string]any
	overrides map[string]any
	row       int
}

func (rv *rowResolver) get(name string) (any, bool) {
	return lookup(rv.defaults, rv.overrides, name)
}

func (rv *rowResolver) requiredDecimal(name string) (decimal.Decimal, error) {
	raw, ok := rv.get(name)
	if !ok {
		return decimal.Decimal{}, validationErr(name, rv.row, "required variable missing")
	}
	value, err := toDecimal(raw)
	if err != nil {
		return decimal.Decimal{}, validationErr(name, rv.row, err.Error())
	}
	return value, nil
}

func (rv *rowResolver) decimalVar(name string) (decimal.Decimal, error) {
	raw, ok := rv.get(name)
	if !ok {
		return decimal.Zero, nil
	}
	value, err := toDecimal(raw)
	if err != nil {
		return decimal.Decimal{}, validationErr(name, rv.row, err.Error())
	}
	return value, nil
}

func (rv *rowResolver) percentVar(name string) (decimal.Decimal, error) {
	value, err := rv.decimalVar(name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return NormalizePercent(value), nil
}

func (rv *rowResolver) boolVar(name string) (bool, error) {
	raw, ok := rv.get(name)
	if !ok {
		return false, nil
	}
	value, err := toBool(raw)
	if err != nil {
		return false, validationErr(name, rv.row, err.Error())
	}
	return value, nil
}

func (rv *rowResolver) intVar(name string) (int, error) {
	raw, ok := rv.get(name)
	if !ok {
		return 0, nil
	}
	value, err := toInt(raw)
	if err != nil {
		return 0, validationErr(name, rv.row, err.Error())
	}
	return value, nil
}

// paymentMilestones assembles the client payment schedule from the numbered
// slot variables. A slot participates when its percent resolves to a positive
// value; its day offset defaults to zero.
func (rv *rowResolver) paymentMilestones() ([]calc.PaymentMilestone, error) {
	var milestones []calc.PaymentMilestone
	for i, percentVar := range PaymentPercentVars {
		raw, ok := rv.get(percentVar)
		if !ok {
			continue
		}
		percent, err := toDecimal(raw)
		if err != nil {
			return nil, validationErr(percentVar, rv.row, err.Error())
		}
		percent = NormalizePercent(percent)
		if !percent.IsPositive() {
			continue
		}
		days, err := rv.intVar(PaymentDaysVars[i])
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, calc.PaymentMilestone{Percent: percent, DayOffset: days})
	}
	return milestones, nil
}

// toDecimal coerces spreadsheet-shaped values into decimals. Strings may use
// a comma decimal separator and thin spaces as digit grouping.
func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return parseDecimalString(v)
	case json.Number:
		return parseDecimalString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot interpret %T as a number", raw)
}

func parseDecimalString(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric value")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed numeric value %q", raw)
	}
	return value, nil
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("malformed boolean value %q", v)
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	}
	return false, fmt.Errorf("cannot interpret %T as a boolean", raw)
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("malformed integer value %q", v.String())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("malformed integer value %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot interpret %T as an integer", raw)
}
