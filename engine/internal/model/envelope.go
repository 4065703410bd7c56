package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrMalformedEnvelope is returned when a batch envelope fails structural
// validation. Envelope-level problems abort the whole batch; record-level
// problems never do.
var ErrMalformedEnvelope = errors.New("malformed batch envelope")

var envelopeValidator = validator.New(validator.WithRequiredStructEnabled())

// SchemaRef names the schema a batch should be validated against.
// Version 0 resolves to the latest published version of the kind.
type SchemaRef struct {
	Kind    string `json:"kind" validate:"required"`
	Version int    `json:"version" validate:"gte=0"`
}

func (r SchemaRef) String() string {
	if r.Version == 0 {
		return r.Kind + "@latest"
	}
	return fmt.Sprintf("%s@v%d", r.Kind, r.Version)
}

// RecordEnvelope is one raw record as submitted by the ingestion collaborator.
type RecordEnvelope struct {
	RecordID   string         `json:"record_id,omitempty"`
	IngestedAt time.Time      `json:"ingested_at,omitempty"`
	Fields     map[string]any `json:"fields" validate:"required"`
}

// BatchEnvelope is the unit of submission: a bounded set of raw records plus
// the schema reference they should be validated against.
type BatchEnvelope struct {
	BatchID  string           `json:"batch_id" validate:"required"`
	SourceID string           `json:"source_id" validate:"required"`
	Schema   SchemaRef        `json:"schema" validate:"required"`
	Records  []RecordEnvelope `json:"records" validate:"required,min=1,dive"`
}

// Validate checks the envelope structure. Failures wrap ErrMalformedEnvelope.
func (b *BatchEnvelope) Validate() error {
	if err := envelopeValidator.Struct(b); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

// RawRecords converts the envelope into immutable RawRecords, stamping batch
// provenance and filling in missing record ids and ingestion timestamps.
func (b *BatchEnvelope) RawRecords(now time.Time) []*RawRecord {
	records := make([]*RawRecord, 0, len(b.Records))
	for _, env := range b.Records {
		id := env.RecordID
		if id == "" {
			id = uuid.New().String()
		}
		ingested := env.IngestedAt
		if ingested.IsZero() {
			ingested = now
		}
		records = append(records, &RawRecord{
			RecordID:   id,
			BatchID:    b.BatchID,
			SourceID:   b.SourceID,
			IngestedAt: ingested,
			Fields:     env.Fields,
		})
	}
	return records
}
