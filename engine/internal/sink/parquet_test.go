package sink

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

func sinkDefinition() *schema.Definition {
	return &schema.Definition{
		Kind:    "financial_report",
		Version: 1,
		Fields: []schema.FieldSpec{
			{Name: "report_id", Type: schema.TypeString},
			{Name: "gross_amount", Type: schema.TypeDecimal, Currency: true},
			{Name: "line_count", Type: schema.TypeInt},
			{Name: "amended", Type: schema.TypeBool},
			{Name: "period_start", Type: schema.TypeDate},
			{Name: "notes", Type: schema.TypeString, Nullable: true},
		},
	}
}

func TestBuildParquetSchema(t *testing.T) {
	var parsed struct {
		Tag    string `json:"Tag"`
		Fields []struct {
			Tag string `json:"Tag"`
		} `json:"Fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(buildParquetSchema(sinkDefinition())), &parsed))

	assert.Equal(t, "name=parquet_go_root, repetitiontype=REQUIRED", parsed.Tag)
	// record_id and ingested_at always lead, then the schema fields in order.
	require.Len(t, parsed.Fields, 8)
	assert.Contains(t, parsed.Fields[0].Tag, "name=record_id")
	assert.Contains(t, parsed.Fields[1].Tag, "name=ingested_at")
	assert.Contains(t, parsed.Fields[3].Tag, "name=gross_amount, type=DOUBLE")
	assert.Contains(t, parsed.Fields[4].Tag, "name=line_count, type=INT64")
	assert.Contains(t, parsed.Fields[5].Tag, "name=amended, type=BOOLEAN")
	assert.Contains(t, parsed.Fields[6].Tag, "name=period_start, type=BYTE_ARRAY")
}

func TestParquetRow(t *testing.T) {
	gross, _ := decimal.NewFromString("119.01")
	ingested := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	rec := &model.ValidatedRecord{
		Raw: &model.RawRecord{RecordID: "rec-1", IngestedAt: ingested},
		Typed: map[string]any{
			"report_id":    "RPT-000001",
			"gross_amount": gross,
			"line_count":   int64(3),
			"amended":      false,
			"period_start": time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	row := parquetRow(rec, sinkDefinition())

	assert.Equal(t, "rec-1", row["record_id"])
	assert.Equal(t, "2025-04-01T09:00:00Z", row["ingested_at"])
	assert.Equal(t, "RPT-000001", row["report_id"])
	assert.Equal(t, 119.01, row["gross_amount"])
	assert.Equal(t, int64(3), row["line_count"])
	assert.Equal(t, false, row["amended"])
	assert.Equal(t, "2025-03-01T00:00:00Z", row["period_start"])
	assert.Nil(t, row["notes"], "absent fields render as null cells")
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "clean/erp-west/financial_report/dt=2025-04-01/run=batch-1/part-000000.parquet",
		joinPath("clean/", "erp-west", "financial_report", "dt=2025-04-01", "run=batch-1", "part-000000.parquet"))
	assert.Equal(t, "a/b", joinPath("", "/a/", "", "b"))
}

func TestQuarantineDoc(t *testing.T) {
	ingested := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	rec := &model.ValidatedRecord{
		Raw: &model.RawRecord{
			RecordID:   "rec-1",
			BatchID:    "batch-1",
			SourceID:   "erp-west",
			IngestedAt: ingested,
			Fields:     map[string]any{"gross_amount": "not-a-number"},
		},
		Typed:  map[string]any{"report_id": "RPT-000001"},
		Status: model.StatusQuarantined,
		Verdicts: []model.Verdict{{
			Rule:     "gross_amount.type",
			Field:    "gross_amount",
			Code:     model.CodeTypeMismatch,
			Severity: model.SeverityHard,
			Message:  "cannot parse",
		}},
	}
	batch := &model.BatchResult{BatchID: "batch-1", SourceID: "erp-west", Kind: "financial_report", SchemaVersion: 1}

	doc := quarantineDoc(rec, batch)

	assert.Equal(t, "rec-1", doc["record_id"])
	assert.Equal(t, "batch-1", doc["batch_id"])
	assert.Equal(t, "financial_report", doc["kind"])
	assert.Equal(t, 1, doc["schema_version"])
	assert.Equal(t, "2025-04-01T09:00:00Z", doc["ingested_at"])

	verdicts := doc["verdicts"].([]map[string]any)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "TypeMismatch", verdicts[0]["code"])

	raw := doc["raw"].(map[string]any)
	assert.Equal(t, "not-a-number", raw["gross_amount"], "diagnostics keep the offending input verbatim")
}

func TestNewParquetSinkValidation(t *testing.T) {
	_, err := NewParquetSink(ParquetConfig{})
	assert.Error(t, err)

	_, err = NewParquetSink(ParquetConfig{EndpointURL: "http://localhost:9000"})
	assert.Error(t, err, "credentials are required")

	s, err := NewParquetSink(ParquetConfig{
		EndpointURL:     "http://localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Bucket:          "clean",
	})
	require.NoError(t, err)
	assert.Equal(t, "parquet", s.Name())
}
