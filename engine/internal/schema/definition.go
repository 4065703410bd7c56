// Package schema holds versioned, immutable record-kind definitions and the
// process-wide registry they are published to. Definitions are declarative
// configuration, not code: fields, constraints and rules arrive as YAML and
// are compiled once at publish time.
package schema

import (
	"fmt"
	"regexp"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInt       FieldType = "int"
	TypeDecimal   FieldType = "decimal"
	TypeBool      FieldType = "bool"
	TypeDate      FieldType = "date"
	TypeTimestamp FieldType = "timestamp"
)

// Constraints restricts the admissible values of a field after coercion.
type Constraints struct {
	Min       *float64 `yaml:"min" json:"min,omitempty"`
	Max       *float64 `yaml:"max" json:"max,omitempty"`
	Enum      []string `yaml:"enum" json:"enum,omitempty"`
	Pattern   string   `yaml:"pattern" json:"pattern,omitempty"`
	MaxLength int      `yaml:"max_length" json:"max_length,omitempty"`

	// Severity of a constraint breach: "soft" or "hard". Defaults to hard.
	Severity model.Severity `yaml:"severity" json:"severity,omitempty"`

	pattern *regexp.Regexp
}

// EffectiveSeverity returns the configured severity, defaulting to hard.
func (c *Constraints) EffectiveSeverity() model.Severity {
	if c != nil && c.Severity == model.SeveritySoft {
		return model.SeveritySoft
	}
	return model.SeverityHard
}

// Regexp returns the compiled pattern, or nil when no pattern is set.
func (c *Constraints) Regexp() *regexp.Regexp {
	if c == nil {
		return nil
	}
	return c.pattern
}

// FieldSpec declares one field of a record kind.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Nullable bool      `yaml:"nullable" json:"nullable"`

	// Currency marks a decimal field holding a monetary amount. Currency
	// fields accept decimal-comma input and render with two decimal places.
	Currency bool `yaml:"currency" json:"currency,omitempty"`

	// Scale rescales numeric input to canonical units ("thousands",
	// "millions"). Empty means the value is already in units.
	Scale string `yaml:"scale" json:"scale,omitempty"`

	Constraints *Constraints `yaml:"constraints" json:"constraints,omitempty"`
}

// RuleKind discriminates the declarative rule union.
type RuleKind string

const (
	RuleFieldConstraint RuleKind = "field-constraint"
	RuleCrossField      RuleKind = "cross-field"
	RuleCrossRecord     RuleKind = "cross-record"
)

// predicates enumerates the evaluable predicate names per rule kind.
var predicates = map[RuleKind]map[string]bool{
	RuleCrossField: {
		"sum_equals":        true,
		"equals":            true,
		"not_after":         true,
		"non_negative":      true,
		"required_together": true,
	},
	RuleCrossRecord: {
		"fields_agree":      true,
		"sum_matches_total": true,
	},
}

// RuleSpec is one declarative validation rule. Rules are data: the engine
// evaluates them generically, so rule sets evolve without engine changes.
//
// Predicates by kind:
//
//	cross-field:  sum_equals, equals, not_after, non_negative, required_together
//	cross-record: fields_agree, sum_matches_total
type RuleSpec struct {
	Name      string   `yaml:"name" json:"name"`
	Kind      RuleKind `yaml:"kind" json:"kind"`
	Predicate string   `yaml:"predicate" json:"predicate,omitempty"`

	// Field targets a field-constraint rule.
	Field string `yaml:"field" json:"field,omitempty"`

	// Inputs are the fields a cross-field or cross-record predicate reads.
	Inputs []string `yaml:"inputs" json:"inputs,omitempty"`

	// Target is the aggregate field for sum predicates.
	Target string `yaml:"target" json:"target,omitempty"`

	// Tolerance is the admissible absolute difference for sum predicates,
	// expressed in canonical units (e.g. "0.01" for cents).
	Tolerance string `yaml:"tolerance" json:"tolerance,omitempty"`

	Constraints *Constraints   `yaml:"constraints" json:"constraints,omitempty"`
	Severity    model.Severity `yaml:"severity" json:"severity,omitempty"`
	Message     string         `yaml:"message" json:"message,omitempty"`
}

// EffectiveSeverity returns the rule severity, defaulting to hard.
func (r *RuleSpec) EffectiveSeverity() model.Severity {
	if r.Severity == model.SeveritySoft {
		return model.SeveritySoft
	}
	return model.SeverityHard
}

// Definition is the published schema for one (kind, version). Immutable once
// registered; evolving a schema means publishing a new version.
type Definition struct {
	Kind    string      `yaml:"kind" json:"kind"`
	Version int         `yaml:"version" json:"version"`
	Fields  []FieldSpec `yaml:"fields" json:"fields"`
	Rules   []RuleSpec  `yaml:"rules" json:"rules,omitempty"`

	// ReconcileKey names the fields whose canonical values group records
	// that describe the same underlying financial entity.
	ReconcileKey []string `yaml:"reconcile_key" json:"reconcile_key,omitempty"`

	fieldIndex map[string]int
}

// Field returns the spec for name, or nil when the schema does not declare it.
func (d *Definition) Field(name string) *FieldSpec {
	if i, ok := d.fieldIndex[name]; ok {
		return &d.Fields[i]
	}
	return nil
}

// CrossFieldRules returns the rules evaluated per record after field checks.
func (d *Definition) CrossFieldRules() []RuleSpec {
	return d.rulesOfKind(RuleCrossField)
}

// CrossRecordRules returns the rules evaluated per entity group.
func (d *Definition) CrossRecordRules() []RuleSpec {
	return d.rulesOfKind(RuleCrossRecord)
}

// FieldConstraintRules returns standalone single-field constraint rules.
func (d *Definition) FieldConstraintRules() []RuleSpec {
	return d.rulesOfKind(RuleFieldConstraint)
}

func (d *Definition) rulesOfKind(kind RuleKind) []RuleSpec {
	var out []RuleSpec
	for _, r := range d.Rules {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// compile validates the definition and precompiles constraint patterns.
// Called exactly once, before publication.
func (d *Definition) compile() error {
	if d.Kind == "" {
		return fmt.Errorf("schema kind is required")
	}
	if d.Version <= 0 {
		return fmt.Errorf("schema %s: version must be positive", d.Kind)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("schema %s v%d: at least one field is required", d.Kind, d.Version)
	}

	d.fieldIndex = make(map[string]int, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("schema %s v%d: field %d has no name", d.Kind, d.Version, i)
		}
		if _, dup := d.fieldIndex[f.Name]; dup {
			return fmt.Errorf("schema %s v%d: duplicate field %q", d.Kind, d.Version, f.Name)
		}
		d.fieldIndex[f.Name] = i

		switch f.Type {
		case TypeString, TypeInt, TypeDecimal, TypeBool, TypeDate, TypeTimestamp:
		default:
			return fmt.Errorf("schema %s v%d: field %q has unknown type %q", d.Kind, d.Version, f.Name, f.Type)
		}

		if err := compileConstraints(f.Constraints); err != nil {
			return fmt.Errorf("schema %s v%d: field %q: %w", d.Kind, d.Version, f.Name, err)
		}
	}

	for i := range d.Rules {
		r := &d.Rules[i]
		if r.Name == "" {
			return fmt.Errorf("schema %s v%d: rule %d has no name", d.Kind, d.Version, i)
		}
		switch r.Kind {
		case RuleFieldConstraint:
			if r.Field == "" {
				return fmt.Errorf("rule %q: field-constraint rules need a field", r.Name)
			}
			if _, ok := d.fieldIndex[r.Field]; !ok {
				return fmt.Errorf("rule %q: unknown field %q", r.Name, r.Field)
			}
			if err := compileConstraints(r.Constraints); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		case RuleCrossField, RuleCrossRecord:
			if r.Predicate == "" {
				return fmt.Errorf("rule %q: predicate is required", r.Name)
			}
			if !predicates[r.Kind][r.Predicate] {
				return fmt.Errorf("rule %q: unknown %s predicate %q", r.Name, r.Kind, r.Predicate)
			}
			for _, in := range r.Inputs {
				if _, ok := d.fieldIndex[in]; !ok {
					return fmt.Errorf("rule %q: unknown input field %q", r.Name, in)
				}
			}
			if r.Target != "" {
				if _, ok := d.fieldIndex[r.Target]; !ok {
					return fmt.Errorf("rule %q: unknown target field %q", r.Name, r.Target)
				}
			}
		default:
			return fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind)
		}
	}

	for _, key := range d.ReconcileKey {
		if _, ok := d.fieldIndex[key]; !ok {
			return fmt.Errorf("schema %s v%d: reconcile key field %q not declared", d.Kind, d.Version, key)
		}
	}

	return nil
}

func compileConstraints(c *Constraints) error {
	if c == nil {
		return nil
	}
	if c.Severity != "" && c.Severity != model.SeverityHard && c.Severity != model.SeveritySoft {
		return fmt.Errorf("invalid constraint severity %q", c.Severity)
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		c.pattern = re
	}
	return nil
}
