package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() *BatchEnvelope {
	return &BatchEnvelope{
		BatchID:  "batch-1",
		SourceID: "erp-west",
		Schema:   SchemaRef{Kind: "financial_report", Version: 1},
		Records: []RecordEnvelope{
			{RecordID: "rec-1", Fields: map[string]any{"report_id": "RPT-000001"}},
		},
	}
}

func TestEnvelopeValidate(t *testing.T) {
	assert.NoError(t, validEnvelope().Validate())

	cases := map[string]func(*BatchEnvelope){
		"missing batch id":  func(b *BatchEnvelope) { b.BatchID = "" },
		"missing source id": func(b *BatchEnvelope) { b.SourceID = "" },
		"missing kind":      func(b *BatchEnvelope) { b.Schema.Kind = "" },
		"negative version":  func(b *BatchEnvelope) { b.Schema.Version = -1 },
		"no records":        func(b *BatchEnvelope) { b.Records = nil },
		"record without fields": func(b *BatchEnvelope) {
			b.Records = []RecordEnvelope{{RecordID: "rec-1"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := validEnvelope()
			mutate(env)
			err := env.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestSchemaRefString(t *testing.T) {
	assert.Equal(t, "financial_report@v2", SchemaRef{Kind: "financial_report", Version: 2}.String())
	assert.Equal(t, "financial_report@latest", SchemaRef{Kind: "financial_report"}.String())
}

func TestRawRecordsStampProvenance(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ingested := now.Add(-time.Hour)
	env := validEnvelope()
	env.Records = []RecordEnvelope{
		{RecordID: "rec-1", IngestedAt: ingested, Fields: map[string]any{"a": 1}},
		{Fields: map[string]any{"b": 2}},
	}

	records := env.RawRecords(now)
	require.Len(t, records, 2)

	assert.Equal(t, "rec-1", records[0].RecordID)
	assert.Equal(t, ingested, records[0].IngestedAt)
	assert.Equal(t, "batch-1", records[0].BatchID)
	assert.Equal(t, "erp-west", records[0].SourceID)

	// Missing id and timestamp are filled in.
	_, err := uuid.Parse(records[1].RecordID)
	assert.NoError(t, err)
	assert.Equal(t, now, records[1].IngestedAt)
}
