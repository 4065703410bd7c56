// Package reconcile groups records that describe the same underlying
// financial entity and checks the members of each group for mutual
// consistency. Grouping and rule evaluation are pure functions of the record
// set: identical inputs produce identical groups and verdicts no matter the
// arrival order, which audit reproducibility depends on.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/rules"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// keySep joins key parts; unit separator keeps composite keys unambiguous.
const keySep = "\x1f"

// EntityGroup is the transient set of records sharing a reconciliation key.
type EntityGroup struct {
	Key     string
	Members []*model.ValidatedRecord
}

// Singleton reports whether the group has a single member. Singletons are
// exempt from cross-record rules.
func (g *EntityGroup) Singleton() bool {
	return len(g.Members) == 1
}

// Reconciler builds entity groups and evaluates cross-record rules.
// Stateless and safe for concurrent use.
type Reconciler struct{}

// New returns a reconciler.
func New() *Reconciler {
	return &Reconciler{}
}

// GroupBy partitions validated records by the canonical values of the
// schema's reconcile key fields. Records whose key cannot be derived (a key
// field null or hard-failed) form singleton groups keyed by record id; they
// cannot be matched against anything, but they are never dropped.
//
// Output ordering is deterministic: groups sorted by key, members sorted by
// ingestion timestamp then record id.
func (r *Reconciler) GroupBy(records []*model.ValidatedRecord, keyFields []string) []*EntityGroup {
	byKey := make(map[string][]*model.ValidatedRecord)
	for _, rec := range records {
		key, ok := r.key(rec, keyFields)
		if !ok {
			key = "record:" + rec.Raw.RecordID
		}
		byKey[key] = append(byKey[key], rec)
	}

	groups := make([]*EntityGroup, 0, len(byKey))
	for key, members := range byKey {
		sort.Slice(members, func(i, j int) bool {
			a, b := members[i].Raw, members[j].Raw
			if !a.IngestedAt.Equal(b.IngestedAt) {
				return a.IngestedAt.Before(b.IngestedAt)
			}
			return a.RecordID < b.RecordID
		})
		groups = append(groups, &EntityGroup{Key: key, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Key derives the reconciliation key for a record, or "" when it cannot be
// derived. Exported for the transformer's duplicate detection.
func (r *Reconciler) Key(rec *model.ValidatedRecord, keyFields []string) string {
	key, ok := r.key(rec, keyFields)
	if !ok {
		return ""
	}
	return key
}

func (r *Reconciler) key(rec *model.ValidatedRecord, keyFields []string) (string, bool) {
	if len(keyFields) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(keyFields))
	for _, field := range keyFields {
		v, ok := rec.Typed[field]
		if !ok {
			return "", false
		}
		parts = append(parts, rules.CanonicalString(v))
	}
	return strings.Join(parts, keySep), true
}

// Check evaluates the schema's cross-record rules against a group, appending
// hard ReconciliationMismatch verdicts to every materially disagreeing
// member. A rule fails only when at least two members disagree; when three or
// more disagree pairwise, all of them are flagged rather than electing a
// majority.
func (r *Reconciler) Check(group *EntityGroup, def *schema.Definition) {
	if group.Singleton() {
		return
	}
	for _, rule := range def.CrossRecordRules() {
		switch rule.Predicate {
		case "fields_agree":
			r.checkFieldsAgree(group, rule)
		case "sum_matches_total":
			r.checkSumMatchesTotal(group, rule)
		}
	}
}

// checkFieldsAgree flags all members carrying a value for a disputed field
// once more than one distinct canonical value exists in the group.
func (r *Reconciler) checkFieldsAgree(group *EntityGroup, rule schema.RuleSpec) {
	for _, field := range rule.Inputs {
		distinct := make(map[string]struct{})
		var holders []*model.ValidatedRecord
		for _, member := range group.Members {
			v, ok := member.Typed[field]
			if !ok {
				continue
			}
			distinct[rules.CanonicalString(v)] = struct{}{}
			holders = append(holders, member)
		}
		if len(distinct) <= 1 || len(holders) < 2 {
			continue
		}
		values := sortedKeys(distinct)
		for _, member := range holders {
			member.AddVerdict(model.Verdict{
				Rule:     rule.Name,
				Field:    field,
				Code:     model.CodeReconciliationMismatch,
				Severity: model.SeverityHard,
				Message:  fmt.Sprintf("group %q reports conflicting values for %q: %v", group.Key, field, values),
			})
		}
	}
}

// checkSumMatchesTotal compares the group-wide sum of a component field with
// every member's reported total. When the books do not balance, every member
// that contributed a component or a total is flagged.
func (r *Reconciler) checkSumMatchesTotal(group *EntityGroup, rule schema.RuleSpec) {
	if len(rule.Inputs) == 0 || rule.Target == "" {
		return
	}
	component := rule.Inputs[0]

	sum := decimal.Zero
	var contributors []*model.ValidatedRecord
	for _, member := range group.Members {
		if d, ok := numeric(member.Typed[component]); ok {
			sum = sum.Add(d)
			contributors = append(contributors, member)
		}
	}

	var totals []*model.ValidatedRecord
	mismatch := false
	for _, member := range group.Members {
		total, ok := numeric(member.Typed[rule.Target])
		if !ok {
			continue
		}
		totals = append(totals, member)
		if sum.Sub(total).Abs().GreaterThan(tolerance(rule)) {
			mismatch = true
		}
	}

	if !mismatch || len(contributors)+len(totals) < 2 {
		return
	}

	flagged := make(map[string]struct{})
	for _, member := range append(contributors, totals...) {
		if _, done := flagged[member.Raw.RecordID]; done {
			continue
		}
		flagged[member.Raw.RecordID] = struct{}{}
		member.AddVerdict(model.Verdict{
			Rule:     rule.Name,
			Field:    rule.Target,
			Code:     model.CodeReconciliationMismatch,
			Severity: model.SeverityHard,
			Message:  fmt.Sprintf("group %q: sum of %q is %s, reported %q disagrees", group.Key, component, sum, rule.Target),
		})
	}
}

func tolerance(rule schema.RuleSpec) decimal.Decimal {
	if rule.Tolerance == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(rule.Tolerance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func numeric(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int64:
		return decimal.NewFromInt(n), true
	default:
		return decimal.Zero, false
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
