// Package transform normalizes records that survived validation and discards
// exact duplicates. Hard-failed records are never touched: they pass through
// to quarantine exactly as they arrived so diagnostics reference the
// offending values, not a cleaned-up version of them.
package transform

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/rules"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// Transformer applies canonical normalization. Stateless and safe for
// concurrent use.
type Transformer struct{}

// New returns a transformer.
func New() *Transformer {
	return &Transformer{}
}

// Normalize rewrites the record's typed values into canonical form: NFC
// strings with collapsed whitespace, currency decimals rounded to two
// places. Records carrying a hard failure are returned unchanged.
func (t *Transformer) Normalize(v *model.ValidatedRecord, def *schema.Definition) {
	if v.HardFailed() {
		return
	}
	for i := range def.Fields {
		spec := &def.Fields[i]
		typed, ok := v.Typed[spec.Name]
		if !ok {
			continue
		}
		switch spec.Type {
		case schema.TypeString:
			if s, isString := typed.(string); isString {
				v.Typed[spec.Name] = NormalizeString(s)
			}
		case schema.TypeDecimal:
			if d, isDecimal := typed.(decimal.Decimal); isDecimal && spec.Currency {
				v.Typed[spec.Name] = d.Round(2)
			}
		}
	}
}

// NormalizeString applies NFC normalization, trims surrounding whitespace and
// collapses internal runs of whitespace to single spaces.
func NormalizeString(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Deduplicate marks exact duplicates within one entity group. Members must
// share a reconciliation key already; a member is a duplicate when its
// canonical field values are identical to an earlier member's. The earliest
// record by ingestion timestamp survives; later copies receive a soft
// Deduplicated note and are routed to quarantine rather than silently
// dropped. Members are expected in deterministic group order (ingestion
// timestamp, then record id), which makes the survivor choice reproducible.
func (t *Transformer) Deduplicate(members []*model.ValidatedRecord, def *schema.Definition) int {
	if len(members) < 2 {
		return 0
	}

	seen := make(map[string]string, len(members))
	duplicates := 0
	for _, member := range members {
		if member.HardFailed() {
			continue
		}
		fp := fingerprint(member, def)
		if keeper, dup := seen[fp]; dup {
			member.AddVerdict(model.Verdict{
				Rule:     "dedupe",
				Code:     model.CodeDeduplicated,
				Severity: model.SeveritySoft,
				Message:  fmt.Sprintf("exact duplicate of record %s", keeper),
			})
			duplicates++
			continue
		}
		seen[fp] = member.Raw.RecordID
	}
	return duplicates
}

// fingerprint renders the record's canonical values in schema field order.
func fingerprint(v *model.ValidatedRecord, def *schema.Definition) string {
	parts := make([]string, 0, len(def.Fields))
	for i := range def.Fields {
		typed, ok := v.Typed[def.Fields[i].Name]
		if !ok {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, rules.CanonicalString(typed))
	}
	return strings.Join(parts, "\x1f")
}
