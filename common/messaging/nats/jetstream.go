package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamClient extends Client with durable stream support. The engine's
// output streams are JetStream-backed so the storage collaborator can
// consume them at its own pace without losing records.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// PublishSync publishes a message and waits for the stream acknowledgment.
func (c *JetStreamClient) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	return c.js.Publish(ctx, subject, data)
}

// Predefined stream configurations.
var (
	// CleanRecordsStream captures the analytics-ready clean stream.
	CleanRecordsStream = StreamConfig{
		Name:      "CLEAN_RECORDS",
		Subjects:  []string{"pipeline.clean.>"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  5 * 1024 * 1024 * 1024, // 5GB
		MaxMsgs:   10_000_000,
		Retention: jetstream.InterestPolicy,
		Storage:   jetstream.FileStorage,
	}

	// QuarantineStream captures rejected records with their diagnostics.
	// Quarantine entries are kept longer: they are the audit trail for
	// upstream data-quality follow-up.
	QuarantineStream = StreamConfig{
		Name:      "QUARANTINE",
		Subjects:  []string{"pipeline.quarantine.>"},
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  2 * 1024 * 1024 * 1024, // 2GB
		MaxMsgs:   1_000_000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}

	// BatchResultsStream captures terminal run summaries.
	BatchResultsStream = StreamConfig{
		Name:      "BATCH_RESULTS",
		Subjects:  []string{"pipeline.results.>"},
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024, // 256MB
		MaxMsgs:   1_000_000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
)
