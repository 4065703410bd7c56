package model

// Severity grades a verdict. Hard failures force quarantine; soft failures
// are recorded for visibility but do not block clean status.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Code identifies the failure category of a verdict.
type Code string

const (
	CodeTypeMismatch           Code = "TypeMismatch"
	CodeMissingRequired        Code = "MissingRequired"
	CodeConstraintViolation    Code = "ConstraintViolation"
	CodeReconciliationMismatch Code = "ReconciliationMismatch"
	CodeDeduplicated           Code = "Deduplicated"
)

// Verdict is the outcome of evaluating one rule against one record (or one
// record's membership in an entity group). Pass verdicts are not materialized;
// only failures and informational notes are recorded.
type Verdict struct {
	Rule     string   `json:"rule"`
	Field    string   `json:"field,omitempty"`
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Diagnostic is attached to every quarantined record so the failure can be
// explained without re-running validation.
type Diagnostic struct {
	RecordID string    `json:"record_id"`
	BatchID  string    `json:"batch_id"`
	SourceID string    `json:"source_id"`
	Status   Status    `json:"status"`
	Verdicts []Verdict `json:"verdicts"`
}
