package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
)

func record(id string, verdicts ...model.Verdict) *model.ValidatedRecord {
	return &model.ValidatedRecord{
		Raw: &model.RawRecord{
			RecordID: id,
			BatchID:  "batch-1",
			SourceID: "erp-west",
		},
		Verdicts: verdicts,
	}
}

func TestRouteClean(t *testing.T) {
	var streams Streams
	rec := record("rec-1")

	New().Route(rec, &streams)

	assert.Equal(t, model.StatusClean, rec.Status)
	require.Len(t, streams.Clean, 1)
	assert.Empty(t, streams.Quarantine)
}

func TestRouteSoftVerdictStaysClean(t *testing.T) {
	var streams Streams
	rec := record("rec-1", model.Verdict{
		Rule:     "notes.constraint",
		Field:    "notes",
		Code:     model.CodeConstraintViolation,
		Severity: model.SeveritySoft,
		Message:  "value exceeds max length",
	})

	New().Route(rec, &streams)

	assert.Equal(t, model.StatusClean, rec.Status)
	require.Len(t, streams.Clean, 1)
	require.Len(t, streams.Clean[0].Verdicts, 1, "soft verdicts travel with the clean record")
}

func TestRouteHardVerdictQuarantines(t *testing.T) {
	var streams Streams
	rec := record("rec-1", model.Verdict{
		Rule:     "gross_amount.type",
		Field:    "gross_amount",
		Code:     model.CodeTypeMismatch,
		Severity: model.SeverityHard,
		Message:  "cannot parse",
	})

	New().Route(rec, &streams)

	assert.Equal(t, model.StatusQuarantined, rec.Status)
	assert.Empty(t, streams.Clean)
	require.Len(t, streams.Quarantine, 1)
}

func TestRouteDuplicateQuarantines(t *testing.T) {
	var streams Streams
	// Dedup notes are soft, yet duplicates must not reach the clean stream.
	rec := record("rec-2", model.Verdict{
		Rule:     "dedupe",
		Code:     model.CodeDeduplicated,
		Severity: model.SeveritySoft,
		Message:  "exact duplicate of record rec-1",
	})

	New().Route(rec, &streams)

	assert.Equal(t, model.StatusQuarantined, rec.Status)
	require.Len(t, streams.Quarantine, 1)
}

func TestDiagnostic(t *testing.T) {
	rec := record("rec-1", model.Verdict{
		Rule:     "amounts_reconcile",
		Field:    "gross_amount",
		Code:     model.CodeConstraintViolation,
		Severity: model.SeverityHard,
		Message:  "sum of inputs differs from target",
	})
	rec.Status = model.StatusQuarantined

	d := Diagnostic(rec)

	assert.Equal(t, "rec-1", d.RecordID)
	assert.Equal(t, "batch-1", d.BatchID)
	assert.Equal(t, "erp-west", d.SourceID)
	assert.Equal(t, model.StatusQuarantined, d.Status)
	require.Len(t, d.Verdicts, 1)
	assert.Equal(t, "amounts_reconcile", d.Verdicts[0].Rule)
}

func TestMergePreservesOrder(t *testing.T) {
	a := &Streams{
		Clean:      []*model.ValidatedRecord{record("rec-1")},
		Quarantine: []*model.ValidatedRecord{record("rec-2")},
	}
	b := &Streams{
		Clean:      []*model.ValidatedRecord{record("rec-3"), record("rec-4")},
		Quarantine: []*model.ValidatedRecord{record("rec-5")},
	}

	a.Merge(b)

	require.Len(t, a.Clean, 3)
	assert.Equal(t, "rec-1", a.Clean[0].Raw.RecordID)
	assert.Equal(t, "rec-3", a.Clean[1].Raw.RecordID)
	assert.Equal(t, "rec-4", a.Clean[2].Raw.RecordID)
	require.Len(t, a.Quarantine, 2)
	assert.Equal(t, 5, a.Total())
}
