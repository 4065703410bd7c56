package model

import "time"

// BatchResult is the terminal summary of one batch run: aggregate counts plus
// per-rule failure tallies. It is written out and discarded; re-running the
// same batch against the same schema version reproduces it byte for byte
// (modulo timing fields).
type BatchResult struct {
	BatchID       string         `json:"batch_id"`
	SourceID      string         `json:"source_id"`
	Kind          string         `json:"kind"`
	SchemaVersion int            `json:"schema_version"`
	Input         int            `json:"input"`
	Clean         int            `json:"clean"`
	Quarantined   int            `json:"quarantined"`
	Deduplicated  int            `json:"deduplicated"`
	RuleFailures  map[string]int `json:"rule_failures,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	DurationMS    int64          `json:"duration_ms"`
	Signature     string         `json:"signature,omitempty"`
}

// Merge folds a per-worker partial result into r. Streams are merged by the
// orchestrator; this only folds counters.
func (r *BatchResult) Merge(other *BatchResult) {
	r.Input += other.Input
	r.Clean += other.Clean
	r.Quarantined += other.Quarantined
	r.Deduplicated += other.Deduplicated
	for rule, n := range other.RuleFailures {
		if r.RuleFailures == nil {
			r.RuleFailures = make(map[string]int)
		}
		r.RuleFailures[rule] += n
	}
}

// CountVerdicts tallies a record's verdicts into the per-rule failure map.
func (r *BatchResult) CountVerdicts(verdicts []Verdict) {
	for _, v := range verdicts {
		if r.RuleFailures == nil {
			r.RuleFailures = make(map[string]int)
		}
		r.RuleFailures[v.Rule]++
	}
}
