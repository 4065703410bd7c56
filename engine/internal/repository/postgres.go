package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

var (
	ErrResultNotFound        = errors.New("batch result not found")
	ErrSchemaVersionExists   = errors.New("schema version already recorded")
	ErrSchemaVersionNotFound = errors.New("schema version not found")
)

// Repository persists batch audit records: run summaries and the published
// schema versions they were validated against.
type Repository interface {
	SaveBatchResult(ctx context.Context, result *model.BatchResult) error
	GetBatchResult(ctx context.Context, batchID string) (*model.BatchResult, error)
	ListBatchResults(ctx context.Context, limit int) ([]*model.BatchResult, error)
	RecordSchemaVersion(ctx context.Context, def *schema.Definition) error
	Close()
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// SaveBatchResult upserts the terminal summary of a batch run. Re-running a
// batch overwrites the previous summary; the pipeline is deterministic, so
// the counts are identical and only timing fields move.
func (r *PostgresRepository) SaveBatchResult(ctx context.Context, result *model.BatchResult) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	failures, err := json.Marshal(result.RuleFailures)
	if err != nil {
		return fmt.Errorf("failed to marshal rule failures: %w", err)
	}

	query := `
		INSERT INTO batch_results
		(batch_id, source_id, kind, schema_version, input, clean, quarantined,
		 deduplicated, rule_failures, started_at, duration_ms, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (batch_id) DO UPDATE SET
			input = EXCLUDED.input,
			clean = EXCLUDED.clean,
			quarantined = EXCLUDED.quarantined,
			deduplicated = EXCLUDED.deduplicated,
			rule_failures = EXCLUDED.rule_failures,
			started_at = EXCLUDED.started_at,
			duration_ms = EXCLUDED.duration_ms,
			signature = EXCLUDED.signature
	`
	_, err = r.pool.Exec(ctx, query,
		result.BatchID, result.SourceID, result.Kind, result.SchemaVersion,
		result.Input, result.Clean, result.Quarantined, result.Deduplicated,
		failures, result.StartedAt, result.DurationMS, result.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to save batch result: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetBatchResult(ctx context.Context, batchID string) (*model.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT batch_id, source_id, kind, schema_version, input, clean,
		       quarantined, deduplicated, rule_failures, started_at,
		       duration_ms, signature
		FROM batch_results
		WHERE batch_id = $1
	`
	row := r.pool.QueryRow(ctx, query, batchID)
	result, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch result: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListBatchResults(ctx context.Context, limit int) ([]*model.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT batch_id, source_id, kind, schema_version, input, clean,
		       quarantined, deduplicated, rule_failures, started_at,
		       duration_ms, signature
		FROM batch_results
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch results: %w", err)
	}
	defer rows.Close()

	var results []*model.BatchResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// RecordSchemaVersion appends a published definition to the audit trail.
// Versions are immutable: recording an existing (kind, version) fails.
func (r *PostgresRepository) RecordSchemaVersion(ctx context.Context, def *schema.Definition) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	definition, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	versionUUID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate version id: %w", err)
	}

	query := `
		INSERT INTO schema_versions (version_id, kind, version, definition, published_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (kind, version) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, versionUUID.String(), def.Kind, def.Version, definition)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s v%d", ErrSchemaVersionExists, def.Kind, def.Version)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*model.BatchResult, error) {
	var result model.BatchResult
	var failures []byte
	err := row.Scan(
		&result.BatchID, &result.SourceID, &result.Kind, &result.SchemaVersion,
		&result.Input, &result.Clean, &result.Quarantined, &result.Deduplicated,
		&failures, &result.StartedAt, &result.DurationMS, &result.Signature,
	)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &result.RuleFailures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule failures: %w", err)
		}
	}
	return &result, nil
}
