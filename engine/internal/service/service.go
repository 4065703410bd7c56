package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clearline-systems/clearline-engine/common/audit"
	"github.com/clearline-systems/clearline-engine/common/logging"
	"github.com/clearline-systems/clearline-engine/common/messaging"
	"github.com/clearline-systems/clearline-engine/engine/internal/idempotency"
	"github.com/clearline-systems/clearline-engine/engine/internal/metrics"
	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/outcome"
	"github.com/clearline-systems/clearline-engine/engine/internal/pipeline"
	"github.com/clearline-systems/clearline-engine/engine/internal/repository"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
	"github.com/clearline-systems/clearline-engine/engine/internal/sink"
)

var ErrDuplicateBatch = errors.New("batch already processed")

// Publisher delivers stream payloads. Satisfied by the JetStream client.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Service wraps the pipeline with everything a batch run owes the outside
// world: idempotency, signing, stream publication, sink writes, persistence
// and metrics.
type Service struct {
	registry  *schema.Registry
	pipeline  *pipeline.Pipeline
	signer    *audit.ResultSigner
	repo      repository.Repository
	guard     *idempotency.Guard
	publisher Publisher
	sinks     []sink.Sink
	logger    *logging.Logger
}

// Options carries the optional collaborators. Nil fields disable the
// corresponding behavior, which keeps local development light.
type Options struct {
	Repository repository.Repository
	Guard      *idempotency.Guard
	Publisher  Publisher
	Sinks      []sink.Sink
}

func New(registry *schema.Registry, p *pipeline.Pipeline, signer *audit.ResultSigner, logger *logging.Logger, opts Options) *Service {
	return &Service{
		registry:  registry,
		pipeline:  p,
		signer:    signer,
		repo:      opts.Repository,
		guard:     opts.Guard,
		publisher: opts.Publisher,
		sinks:     opts.Sinks,
		logger:    logger,
	}
}

// CleanRecord is the payload published for each record on the clean stream.
type CleanRecord struct {
	RecordID      string         `json:"record_id"`
	BatchID       string         `json:"batch_id"`
	SourceID      string         `json:"source_id"`
	Kind          string         `json:"kind"`
	SchemaVersion int            `json:"schema_version"`
	IngestedAt    time.Time      `json:"ingested_at"`
	Fields        map[string]any `json:"fields"`
}

// QuarantinedRecord is the payload published for each rejected record.
type QuarantinedRecord struct {
	model.Diagnostic
	Kind          string         `json:"kind"`
	SchemaVersion int            `json:"schema_version"`
	IngestedAt    time.Time      `json:"ingested_at"`
	Raw           map[string]any `json:"raw"`
}

// ProcessBatch runs a batch end to end and returns its terminal summary.
// A batch ID seen within the idempotency window returns ErrDuplicateBatch
// without running the pipeline. Any failure after the claim releases it so
// the producer can retry.
func (s *Service) ProcessBatch(ctx context.Context, envelope *model.BatchEnvelope) (*model.BatchResult, error) {
	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, envelope.BatchID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !claimed {
			s.logger.InfoContext(ctx, "duplicate batch suppressed", logging.BatchID(envelope.BatchID))
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBatch, envelope.BatchID)
		}
	}

	res, err := s.pipeline.Run(ctx, envelope)
	if err != nil {
		s.release(ctx, envelope.BatchID)
		metrics.BatchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	batch := res.Batch
	if s.signer != nil {
		batch.Signature = s.signer.Sign(batch.BatchID, batch.StartedAt, batch.Input, batch.Clean, batch.Quarantined)
	}

	s.observe(res)

	def, err := s.registry.Resolve(batch.Kind, batch.SchemaVersion)
	if err != nil {
		s.release(ctx, envelope.BatchID)
		return nil, fmt.Errorf("schema disappeared during run: %w", err)
	}

	if err := s.publish(ctx, batch, res.Streams); err != nil {
		s.release(ctx, envelope.BatchID)
		metrics.BatchesTotal.WithLabelValues("publish_failed").Inc()
		return nil, err
	}

	s.writeSinks(ctx, batch, def, res.Streams)

	if s.repo != nil {
		if err := s.repo.SaveBatchResult(ctx, batch); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist batch result",
				logging.BatchID(batch.BatchID), logging.Error(err))
		}
	}

	metrics.BatchesTotal.WithLabelValues("processed").Inc()
	s.logger.InfoContext(ctx, "batch processed",
		logging.BatchID(batch.BatchID),
		logging.Source(batch.SourceID),
		logging.Kind(batch.Kind),
		logging.SchemaVersion(batch.SchemaVersion),
		"input", batch.Input,
		"clean", batch.Clean,
		"quarantined", batch.Quarantined,
		"deduplicated", batch.Deduplicated,
		logging.Duration(batch.DurationMS),
	)
	return batch, nil
}

// HandleMessage adapts ProcessBatch to the messaging ingress. Errors are
// logged, not returned: a malformed or duplicate message is dropped rather
// than redelivered forever.
func (s *Service) HandleMessage(ctx context.Context, msg *messaging.Message) {
	var envelope model.BatchEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logger.WarnContext(ctx, "dropping malformed batch message", logging.Error(err))
		metrics.BatchesTotal.WithLabelValues("rejected").Inc()
		return
	}
	if _, err := s.ProcessBatch(ctx, &envelope); err != nil {
		if errors.Is(err, ErrDuplicateBatch) {
			return
		}
		s.logger.ErrorContext(ctx, "failed to process batch from stream",
			logging.BatchID(envelope.BatchID), logging.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, batch *model.BatchResult, streams outcome.Streams) error {
	if s.publisher == nil {
		return nil
	}

	for _, rec := range streams.Clean {
		payload := CleanRecord{
			RecordID:      rec.Raw.RecordID,
			BatchID:       batch.BatchID,
			SourceID:      batch.SourceID,
			Kind:          batch.Kind,
			SchemaVersion: batch.SchemaVersion,
			IngestedAt:    rec.Raw.IngestedAt,
			Fields:        rec.Typed,
		}
		if err := s.publishJSON(ctx, messaging.SubjectClean(batch.Kind), payload); err != nil {
			return fmt.Errorf("failed to publish clean record %s: %w", rec.Raw.RecordID, err)
		}
	}

	for _, rec := range streams.Quarantine {
		payload := QuarantinedRecord{
			Diagnostic:    outcome.Diagnostic(rec),
			Kind:          batch.Kind,
			SchemaVersion: batch.SchemaVersion,
			IngestedAt:    rec.Raw.IngestedAt,
			Raw:           rec.Raw.Fields,
		}
		if err := s.publishJSON(ctx, messaging.SubjectQuarantine(batch.Kind), payload); err != nil {
			return fmt.Errorf("failed to publish quarantined record %s: %w", rec.Raw.RecordID, err)
		}
	}

	if err := s.publishJSON(ctx, messaging.SubjectResult(batch.BatchID), batch); err != nil {
		return fmt.Errorf("failed to publish batch result: %w", err)
	}
	return nil
}

func (s *Service) publishJSON(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, subject, data)
}

func (s *Service) writeSinks(ctx context.Context, batch *model.BatchResult, def *schema.Definition, streams outcome.Streams) {
	for _, sk := range s.sinks {
		start := time.Now()
		err := sk.Write(ctx, batch, def, streams)
		metrics.SinkWriteDuration.WithLabelValues(sk.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SinkErrors.WithLabelValues(sk.Name()).Inc()
			s.logger.ErrorContext(ctx, "sink write failed",
				logging.Sink(sk.Name()), logging.BatchID(batch.BatchID), logging.Error(err))
		}
	}
}

func (s *Service) observe(res *pipeline.Result) {
	batch := res.Batch
	metrics.BatchDuration.Observe(float64(batch.DurationMS) / 1000)
	metrics.GroupsPerBatch.Observe(float64(res.Groups))
	metrics.RecordsTotal.WithLabelValues("clean").Add(float64(batch.Clean))
	metrics.RecordsTotal.WithLabelValues("quarantined").Add(float64(batch.Quarantined))
	metrics.DeduplicatedTotal.Add(float64(batch.Deduplicated))

	for _, rec := range res.Streams.Clean {
		observeVerdicts(rec.Verdicts)
	}
	for _, rec := range res.Streams.Quarantine {
		observeVerdicts(rec.Verdicts)
	}
}

func observeVerdicts(verdicts []model.Verdict) {
	for _, v := range verdicts {
		metrics.RuleFailuresTotal.WithLabelValues(v.Rule, string(v.Severity)).Inc()
	}
}

func (s *Service) release(ctx context.Context, batchID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, batchID); err != nil {
		s.logger.WarnContext(ctx, "failed to release batch claim",
			logging.BatchID(batchID), logging.Error(err))
	}
}
