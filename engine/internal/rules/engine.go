// Package rules evaluates declarative validation rules against records.
// Rules are configuration, not code: the engine interprets field specs,
// single-field constraints and cross-field predicates generically, producing
// verdicts the outcome router can act on.
package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// Engine validates records against schema definitions. Stateless and safe
// for concurrent use.
type Engine struct{}

// NewEngine returns a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Validate runs per-field checks followed by cross-field rules and returns
// the record annotated with typed values and verdicts. Status is assigned
// later by the outcome router; Validate only collects evidence.
func (e *Engine) Validate(record *model.RawRecord, def *schema.Definition) *model.ValidatedRecord {
	validated := &model.ValidatedRecord{
		Raw:   record,
		Typed: make(map[string]any, len(def.Fields)),
	}

	for i := range def.Fields {
		e.checkField(validated, &def.Fields[i])
	}
	for _, rule := range def.FieldConstraintRules() {
		e.checkFieldConstraintRule(validated, rule)
	}
	for _, rule := range def.CrossFieldRules() {
		e.checkCrossField(validated, rule)
	}

	return validated
}

func (e *Engine) checkField(v *model.ValidatedRecord, spec *schema.FieldSpec) {
	raw, present := v.Raw.Field(spec.Name)

	if IsNull(raw, present) {
		if !spec.Nullable {
			v.AddVerdict(model.Verdict{
				Rule:     spec.Name + ".required",
				Field:    spec.Name,
				Code:     model.CodeMissingRequired,
				Severity: model.SeverityHard,
				Message:  fmt.Sprintf("field %q is required but null", spec.Name),
			})
		}
		return
	}

	typed, err := Coerce(raw, spec)
	if err != nil {
		v.AddVerdict(model.Verdict{
			Rule:     spec.Name + ".type",
			Field:    spec.Name,
			Code:     model.CodeTypeMismatch,
			Severity: model.SeverityHard,
			Message:  fmt.Sprintf("field %q: %v", spec.Name, err),
		})
		return
	}
	v.Typed[spec.Name] = typed

	if msg := checkConstraints(typed, spec.Constraints); msg != "" {
		v.AddVerdict(model.Verdict{
			Rule:     spec.Name + ".constraint",
			Field:    spec.Name,
			Code:     model.CodeConstraintViolation,
			Severity: spec.Constraints.EffectiveSeverity(),
			Message:  fmt.Sprintf("field %q: %s", spec.Name, msg),
		})
	}
}

func (e *Engine) checkFieldConstraintRule(v *model.ValidatedRecord, rule schema.RuleSpec) {
	// Nothing to check when coercion already failed or the value is null.
	typed, ok := v.Typed[rule.Field]
	if !ok {
		return
	}
	if msg := checkConstraints(typed, rule.Constraints); msg != "" {
		v.AddVerdict(model.Verdict{
			Rule:     rule.Name,
			Field:    rule.Field,
			Code:     model.CodeConstraintViolation,
			Severity: rule.EffectiveSeverity(),
			Message:  failureMessage(rule, fmt.Sprintf("field %q: %s", rule.Field, msg)),
		})
	}
}

// checkCrossField evaluates one cross-field predicate. The rule is skipped
// outright when any input field already carries a hard failure: a record with
// a broken amount should not also be blamed for a broken total check.
func (e *Engine) checkCrossField(v *model.ValidatedRecord, rule schema.RuleSpec) {
	inputs := rule.Inputs
	if rule.Target != "" {
		inputs = append(append([]string{}, rule.Inputs...), rule.Target)
	}
	for _, name := range inputs {
		if v.HardFailedField(name) {
			return
		}
	}

	ok, detail := evalCrossField(v, rule)
	if ok {
		return
	}
	v.AddVerdict(model.Verdict{
		Rule:     rule.Name,
		Code:     model.CodeConstraintViolation,
		Severity: rule.EffectiveSeverity(),
		Message:  failureMessage(rule, detail),
	})
}

func evalCrossField(v *model.ValidatedRecord, rule schema.RuleSpec) (bool, string) {
	switch rule.Predicate {
	case "sum_equals":
		return evalSumEquals(v.Typed, rule)
	case "equals":
		return evalEquals(v.Typed, rule.Inputs)
	case "not_after":
		return evalNotAfter(v.Typed, rule.Inputs)
	case "non_negative":
		return evalNonNegative(v.Typed, rule.Inputs)
	case "required_together":
		return evalRequiredTogether(v.Typed, rule.Inputs)
	default:
		// Unknown predicates are rejected at schema compile time.
		return true, ""
	}
}

func evalSumEquals(typed map[string]any, rule schema.RuleSpec) (bool, string) {
	sum := decimal.Zero
	for _, name := range rule.Inputs {
		d, ok := numericValue(typed[name])
		if !ok {
			return true, "" // inputs incomplete, nothing to compare
		}
		sum = sum.Add(d)
	}
	total, ok := numericValue(typed[rule.Target])
	if !ok {
		return true, ""
	}
	diff := sum.Sub(total).Abs()
	if diff.LessThanOrEqual(ruleTolerance(rule)) {
		return true, ""
	}
	return false, fmt.Sprintf("sum of %v is %s but %s is %s", rule.Inputs, sum, rule.Target, total)
}

func evalEquals(typed map[string]any, inputs []string) (bool, string) {
	var first string
	for i, name := range inputs {
		v, ok := typed[name]
		if !ok {
			return true, ""
		}
		s := CanonicalString(v)
		if i == 0 {
			first = s
			continue
		}
		if s != first {
			return false, fmt.Sprintf("%s=%q disagrees with %s=%q", name, s, inputs[0], first)
		}
	}
	return true, ""
}

func evalNotAfter(typed map[string]any, inputs []string) (bool, string) {
	if len(inputs) != 2 {
		return true, ""
	}
	start, ok1 := typed[inputs[0]].(time.Time)
	end, ok2 := typed[inputs[1]].(time.Time)
	if !ok1 || !ok2 {
		return true, ""
	}
	if start.After(end) {
		return false, fmt.Sprintf("%s (%s) is after %s (%s)",
			inputs[0], start.Format(time.RFC3339), inputs[1], end.Format(time.RFC3339))
	}
	return true, ""
}

func evalNonNegative(typed map[string]any, inputs []string) (bool, string) {
	for _, name := range inputs {
		d, ok := numericValue(typed[name])
		if !ok {
			continue
		}
		if d.IsNegative() {
			return false, fmt.Sprintf("%s is negative (%s)", name, d)
		}
	}
	return true, ""
}

func evalRequiredTogether(typed map[string]any, inputs []string) (bool, string) {
	presentCount := 0
	for _, name := range inputs {
		if _, ok := typed[name]; ok {
			presentCount++
		}
	}
	if presentCount == 0 || presentCount == len(inputs) {
		return true, ""
	}
	return false, fmt.Sprintf("fields %v must be present together (%d of %d set)", inputs, presentCount, len(inputs))
}

// ruleTolerance parses the rule's tolerance, defaulting to exact equality.
func ruleTolerance(rule schema.RuleSpec) decimal.Decimal {
	if rule.Tolerance == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(rule.Tolerance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func numericValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Zero, false
	}
}

func checkConstraints(typed any, c *schema.Constraints) string {
	if c == nil {
		return ""
	}

	if c.Min != nil || c.Max != nil {
		if d, ok := numericValue(typed); ok {
			if c.Min != nil && d.LessThan(decimal.NewFromFloat(*c.Min)) {
				return fmt.Sprintf("value %s below minimum %v", d, *c.Min)
			}
			if c.Max != nil && d.GreaterThan(decimal.NewFromFloat(*c.Max)) {
				return fmt.Sprintf("value %s above maximum %v", d, *c.Max)
			}
		}
	}

	if s, ok := typed.(string); ok {
		if len(c.Enum) > 0 {
			found := false
			for _, allowed := range c.Enum {
				if s == allowed {
					found = true
					break
				}
			}
			if !found {
				return fmt.Sprintf("value %q not in allowed set %v", s, c.Enum)
			}
		}
		if re := c.Regexp(); re != nil && !re.MatchString(s) {
			return fmt.Sprintf("value %q does not match pattern %q", s, re.String())
		}
		if c.MaxLength > 0 && len(s) > c.MaxLength {
			return fmt.Sprintf("value length %d exceeds %d", len(s), c.MaxLength)
		}
	}

	return ""
}

func failureMessage(rule schema.RuleSpec, detail string) string {
	if rule.Message != "" {
		if detail != "" {
			return rule.Message + ": " + detail
		}
		return rule.Message
	}
	return detail
}
