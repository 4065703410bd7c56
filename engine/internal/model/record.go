package model

import "time"

// RawRecord is a single extracted report row as delivered by the ingestion
// collaborator. Field values are untyped until the rule engine coerces them
// against a schema definition. A RawRecord is never mutated after creation.
type RawRecord struct {
	RecordID   string         `json:"record_id"`
	BatchID    string         `json:"batch_id"`
	SourceID   string         `json:"source_id"`
	IngestedAt time.Time      `json:"ingested_at"`
	Fields     map[string]any `json:"fields"`
}

// Field returns the raw value for name and whether it was present.
func (r *RawRecord) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Status classifies a processed record.
type Status string

const (
	StatusClean       Status = "clean"
	StatusQuarantined Status = "quarantined"
)

// ValidatedRecord annotates a RawRecord with schema-conformant typed values,
// the verdicts accumulated across validation and reconciliation, and the
// overall routing status.
type ValidatedRecord struct {
	Raw      *RawRecord     `json:"raw"`
	Typed    map[string]any `json:"typed,omitempty"`
	Verdicts []Verdict      `json:"verdicts,omitempty"`
	Status   Status         `json:"status"`
}

// HardFailed reports whether any verdict carries hard severity.
func (v *ValidatedRecord) HardFailed() bool {
	for _, verdict := range v.Verdicts {
		if verdict.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// HardFailedField reports whether the named field carries a hard verdict.
// Used to skip cross-field rules whose inputs are already known bad.
func (v *ValidatedRecord) HardFailedField(name string) bool {
	for _, verdict := range v.Verdicts {
		if verdict.Field == name && verdict.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// AddVerdict appends a verdict to the record.
func (v *ValidatedRecord) AddVerdict(verdict Verdict) {
	v.Verdicts = append(v.Verdicts, verdict)
}
