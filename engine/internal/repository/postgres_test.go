package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations
func setupTestDatabase(t *testing.T) (*PostgresRepository, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("clearline_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create repository: %v", err)
	}

	cleanup := func() {
		repo.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return repo, cleanup
}

// runMigrations runs SQL migrations from the migrations directory
func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "000001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func sampleResult(batchID string, startedAt time.Time) *model.BatchResult {
	return &model.BatchResult{
		BatchID:       batchID,
		SourceID:      "erp-west",
		Kind:          "financial_report",
		SchemaVersion: 1,
		Input:         100,
		Clean:         92,
		Quarantined:   8,
		Deduplicated:  3,
		RuleFailures:  map[string]int{"amounts_reconcile": 5, "period_ordered": 3},
		StartedAt:     startedAt,
		DurationMS:    412,
		Signature:     "deadbeef",
	}
}

func TestSaveAndGetBatchResult(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	want := sampleResult("batch-1", time.Now().UTC().Truncate(time.Microsecond))
	if err := repo.SaveBatchResult(ctx, want); err != nil {
		t.Fatalf("Failed to save batch result: %v", err)
	}

	got, err := repo.GetBatchResult(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Failed to get batch result: %v", err)
	}

	if got.BatchID != want.BatchID || got.SourceID != want.SourceID {
		t.Errorf("Expected %s/%s, got %s/%s", want.BatchID, want.SourceID, got.BatchID, got.SourceID)
	}
	if got.Input != want.Input || got.Clean != want.Clean || got.Quarantined != want.Quarantined {
		t.Errorf("Counts differ: got input=%d clean=%d quarantined=%d", got.Input, got.Clean, got.Quarantined)
	}
	if got.RuleFailures["amounts_reconcile"] != 5 {
		t.Errorf("Expected 5 amounts_reconcile failures, got %d", got.RuleFailures["amounts_reconcile"])
	}
	if got.Signature != "deadbeef" {
		t.Errorf("Expected signature deadbeef, got %s", got.Signature)
	}
}

func TestGetBatchResultNotFound(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := repo.GetBatchResult(context.Background(), "ghost")
	if !errors.Is(err, ErrResultNotFound) {
		t.Errorf("Expected ErrResultNotFound, got %v", err)
	}
}

func TestSaveBatchResultUpsert(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	first := sampleResult("batch-1", time.Now().UTC())
	if err := repo.SaveBatchResult(ctx, first); err != nil {
		t.Fatalf("Failed to save batch result: %v", err)
	}

	// A rerun overwrites the summary rather than failing on the key.
	second := sampleResult("batch-1", time.Now().UTC())
	second.DurationMS = 97
	if err := repo.SaveBatchResult(ctx, second); err != nil {
		t.Fatalf("Failed to upsert batch result: %v", err)
	}

	got, err := repo.GetBatchResult(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Failed to get batch result: %v", err)
	}
	if got.DurationMS != 97 {
		t.Errorf("Expected updated duration 97, got %d", got.DurationMS)
	}
}

func TestListBatchResults(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		r := sampleResult(fmt.Sprintf("batch-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveBatchResult(ctx, r); err != nil {
			t.Fatalf("Failed to save batch result: %v", err)
		}
	}

	results, err := repo.ListBatchResults(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list batch results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	// Most recent run first.
	if results[0].BatchID != "batch-2" || results[1].BatchID != "batch-1" {
		t.Errorf("Expected [batch-2 batch-1], got [%s %s]", results[0].BatchID, results[1].BatchID)
	}
}

func TestRecordSchemaVersion(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	def := &schema.Definition{
		Kind:    "financial_report",
		Version: 1,
		Fields:  []schema.FieldSpec{{Name: "report_id", Type: schema.TypeString}},
	}

	if err := repo.RecordSchemaVersion(ctx, def); err != nil {
		t.Fatalf("Failed to record schema version: %v", err)
	}

	// Each row gets a real UUIDv7 primary key.
	var versionID string
	err := repo.pool.QueryRow(ctx,
		`SELECT version_id FROM schema_versions WHERE kind = $1 AND version = $2`,
		def.Kind, def.Version).Scan(&versionID)
	if err != nil {
		t.Fatalf("Failed to read version id: %v", err)
	}
	parsed, err := uuid.Parse(versionID)
	if err != nil {
		t.Fatalf("version_id is not a UUID: %v", err)
	}
	if parsed == uuid.Nil {
		t.Error("version_id is the zero UUID")
	}

	// Published versions are immutable.
	err = repo.RecordSchemaVersion(ctx, def)
	if !errors.Is(err, ErrSchemaVersionExists) {
		t.Errorf("Expected ErrSchemaVersionExists, got %v", err)
	}

	def.Version = 2
	if err := repo.RecordSchemaVersion(ctx, def); err != nil {
		t.Fatalf("Failed to record new version: %v", err)
	}
}
