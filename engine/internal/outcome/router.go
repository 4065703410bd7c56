// Package outcome partitions processed records into the clean and quarantine
// streams. Routing is total and deterministic: every input record lands in
// exactly one stream, and quarantined records carry a diagnostic that
// explains every failing rule without re-running validation.
package outcome

import "github.com/clearline-systems/clearline-engine/engine/internal/model"

// Streams collects the two output streams of a batch (or of one worker's
// share of a batch; partial streams are merged by the orchestrator).
type Streams struct {
	Clean      []*model.ValidatedRecord
	Quarantine []*model.ValidatedRecord
}

// Router assigns a final status to validated records.
type Router struct{}

// New returns a router.
func New() *Router {
	return &Router{}
}

// Route stamps the record's status and appends it to the matching stream.
// A record is clean iff it carries no hard verdict and was not discarded as
// a duplicate.
func (r *Router) Route(v *model.ValidatedRecord, streams *Streams) {
	if v.HardFailed() || isDuplicate(v) {
		v.Status = model.StatusQuarantined
		streams.Quarantine = append(streams.Quarantine, v)
		return
	}
	v.Status = model.StatusClean
	streams.Clean = append(streams.Clean, v)
}

// Diagnostic builds the structured quarantine diagnostic for a record.
func Diagnostic(v *model.ValidatedRecord) model.Diagnostic {
	return model.Diagnostic{
		RecordID: v.Raw.RecordID,
		BatchID:  v.Raw.BatchID,
		SourceID: v.Raw.SourceID,
		Status:   v.Status,
		Verdicts: v.Verdicts,
	}
}

func isDuplicate(v *model.ValidatedRecord) bool {
	for _, verdict := range v.Verdicts {
		if verdict.Code == model.CodeDeduplicated {
			return true
		}
	}
	return false
}

// Merge appends other's streams onto s, preserving order.
func (s *Streams) Merge(other *Streams) {
	s.Clean = append(s.Clean, other.Clean...)
	s.Quarantine = append(s.Quarantine, other.Quarantine...)
}

// Total returns the number of records across both streams.
func (s *Streams) Total() int {
	return len(s.Clean) + len(s.Quarantine)
}
