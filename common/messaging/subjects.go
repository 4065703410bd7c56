package messaging

import "fmt"

// Subject layout for the processing pipeline.
//
//	pipeline.batches.submit        batch envelopes from the ingestion layer
//	pipeline.clean.<kind>          clean records, tagged with record kind
//	pipeline.quarantine.<kind>     quarantined records plus diagnostics
//	pipeline.results.<batch_id>    terminal batch result summaries
const (
	// SubjectBatchSubmit carries inbound batch envelopes.
	SubjectBatchSubmit = "pipeline.batches.submit"

	// QueueEngine is the queue group engine instances share so each batch
	// is processed exactly once.
	QueueEngine = "engine-workers"
)

// SubjectClean returns the clean-stream subject for a record kind.
func SubjectClean(kind string) string {
	return fmt.Sprintf("pipeline.clean.%s", kind)
}

// SubjectQuarantine returns the quarantine-stream subject for a record kind.
func SubjectQuarantine(kind string) string {
	return fmt.Sprintf("pipeline.quarantine.%s", kind)
}

// SubjectResult returns the result subject for a batch.
func SubjectResult(batchID string) string {
	return fmt.Sprintf("pipeline.results.%s", batchID)
}
