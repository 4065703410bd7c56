package logging

import "log/slog"

// Common field names for consistent logging across the engine and tools.
const (
	FieldService  = "service"
	FieldBatchID  = "batch_id"
	FieldRecordID = "record_id"
	FieldSource   = "source"
	FieldKind     = "kind"
	FieldVersion  = "schema_version"
	FieldRule     = "rule"
	FieldGroup    = "group_key"
	FieldSink     = "sink"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// BatchID returns a slog attribute for the batch identifier.
func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// RecordID returns a slog attribute for the record identifier.
func RecordID(id string) slog.Attr {
	return slog.String(FieldRecordID, id)
}

// Source returns a slog attribute for the upstream source identifier.
func Source(id string) slog.Attr {
	return slog.String(FieldSource, id)
}

// Kind returns a slog attribute for the record kind.
func Kind(kind string) slog.Attr {
	return slog.String(FieldKind, kind)
}

// SchemaVersion returns a slog attribute for the schema version.
func SchemaVersion(v int) slog.Attr {
	return slog.Int(FieldVersion, v)
}

// Rule returns a slog attribute for a rule name.
func Rule(name string) slog.Attr {
	return slog.String(FieldRule, name)
}

// Sink returns a slog attribute for an output sink name.
func Sink(name string) slog.Attr {
	return slog.String(FieldSink, name)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
