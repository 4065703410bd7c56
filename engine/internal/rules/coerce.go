package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// Date layouts accepted for date fields. Extracts arrive from several report
// generators; day-first slash dates show up in the European source systems.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02"}

// timestampLayouts accepted for timestamp fields.
var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"}

// IsNull reports whether a raw value counts as null: absent, nil, or a
// blank string.
func IsNull(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}

// Coerce converts a raw value into the canonical typed representation for the
// field's declared type. Decimal fields accept decimal-comma input (the
// upstream extracts use "1.234,56" style amounts) and are rescaled per the
// field's declared scale.
func Coerce(v any, spec *schema.FieldSpec) (any, error) {
	switch spec.Type {
	case schema.TypeString:
		return coerceString(v)
	case schema.TypeInt:
		return coerceInt(v)
	case schema.TypeDecimal:
		d, err := coerceDecimal(v)
		if err != nil {
			return nil, err
		}
		return applyScale(d, spec.Scale), nil
	case schema.TypeBool:
		return coerceBool(v)
	case schema.TypeDate:
		return coerceTime(v, dateLayouts)
	case schema.TypeTimestamp:
		return coerceTime(v, timestampLayouts)
	default:
		return nil, fmt.Errorf("unsupported type %q", spec.Type)
	}
}

func coerceString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", s), nil
	default:
		return "", fmt.Errorf("cannot coerce %T to string", v)
	}
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v has a fractional part", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

func coerceDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		s := NormalizeDecimalString(n)
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as decimal", n)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("cannot coerce %T to decimal", v)
	}
}

// NormalizeDecimalString rewrites a localized numeric string into dot-decimal
// form. "1.234,56" and "1234,56" both become "1234.56"; plain dot-decimal
// input passes through.
func NormalizeDecimalString(s string) string {
	s = strings.TrimSpace(s)
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// The rightmost separator is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func applyScale(d decimal.Decimal, scale string) decimal.Decimal {
	switch scale {
	case "thousands":
		return d.Mul(decimal.NewFromInt(1000))
	case "millions":
		return d.Mul(decimal.NewFromInt(1000000))
	default:
		return d
	}
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(b)))
		if err != nil {
			return false, fmt.Errorf("cannot parse %q as bool", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("cannot coerce %T to bool", v)
	}
}

func coerceTime(v any, layouts []string) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		if t, isTime := v.(time.Time); isTime {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("cannot coerce %T to time", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

// CanonicalString renders a typed value in its canonical comparison form.
// Two records agree on a field exactly when their canonical strings match.
func CanonicalString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
