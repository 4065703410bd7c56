// Package pipeline drives batches through schema resolution, validation,
// reconciliation, transformation and routing.
//
// Processing is two-phase: grouping needs full-batch visibility and runs
// serially; once groups exist they are independent and are evaluated by a
// bounded worker pool. Workers never share mutable state: each group's
// output lands in its own slot and partial aggregates are merged in group
// order at the end, so results are deterministic regardless of scheduling.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/outcome"
	"github.com/clearline-systems/clearline-engine/engine/internal/reconcile"
	"github.com/clearline-systems/clearline-engine/engine/internal/rules"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
	"github.com/clearline-systems/clearline-engine/engine/internal/transform"
)

// Result is the outcome of one batch run: the terminal summary plus the two
// output streams.
type Result struct {
	Batch   *model.BatchResult
	Streams outcome.Streams
	Groups  int
}

// Pipeline orchestrates batch processing. Safe for concurrent use; each Run
// owns all of its intermediate state.
type Pipeline struct {
	registry    *schema.Registry
	engine      *rules.Engine
	reconciler  *reconcile.Reconciler
	transformer *transform.Transformer
	router      *outcome.Router
	workers     int
}

// New creates a pipeline with the given worker-pool size. A non-positive
// size falls back to GOMAXPROCS.
func New(registry *schema.Registry, workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{
		registry:    registry,
		engine:      rules.NewEngine(),
		reconciler:  reconcile.New(),
		transformer: transform.New(),
		router:      outcome.New(),
		workers:     workers,
	}
}

// groupOutput is one worker's output for one entity group.
type groupOutput struct {
	streams outcome.Streams
	partial model.BatchResult
}

// Run processes a batch. Record-level failures never surface as errors;
// only envelope-level problems (malformed envelope, unresolvable schema)
// abort the batch. Cancellation discards partial results.
func (p *Pipeline) Run(ctx context.Context, envelope *model.BatchEnvelope) (*Result, error) {
	if err := envelope.Validate(); err != nil {
		return nil, err
	}

	def, err := p.registry.Resolve(envelope.Schema.Kind, envelope.Schema.Version)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", envelope.Schema, err)
	}

	started := time.Now().UTC()
	raw := envelope.RawRecords(started)

	// Phase 1: per-record validation, then full-batch grouping.
	validated := make([]*model.ValidatedRecord, 0, len(raw))
	for _, rec := range raw {
		validated = append(validated, p.engine.Validate(rec, def))
	}
	groups := p.reconciler.GroupBy(validated, def.ReconcileKey)

	// Phase 2: groups fan out to the worker pool.
	outputs := make([]*groupOutput, len(groups))
	if err := p.runGroups(ctx, groups, def, outputs); err != nil {
		return nil, err
	}

	// Merge partials in group order.
	result := &Result{
		Batch: &model.BatchResult{
			BatchID:       envelope.BatchID,
			SourceID:      envelope.SourceID,
			Kind:          def.Kind,
			SchemaVersion: def.Version,
			StartedAt:     started,
		},
		Groups: len(groups),
	}
	for _, out := range outputs {
		result.Streams.Merge(&out.streams)
		result.Batch.Merge(&out.partial)
	}
	result.Batch.Clean = len(result.Streams.Clean)
	result.Batch.Quarantined = len(result.Streams.Quarantine)
	result.Batch.DurationMS = time.Since(started).Milliseconds()

	return result, nil
}

func (p *Pipeline) runGroups(ctx context.Context, groups []*reconcile.EntityGroup, def *schema.Definition, outputs []*groupOutput) error {
	indexes := make(chan int)
	var wg sync.WaitGroup

	workers := p.workers
	if workers > len(groups) {
		workers = len(groups)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outputs[i] = p.processGroup(groups[i], def)
			}
		}()
	}

	var cancelled error
feed:
	for i := range groups {
		select {
		case indexes <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if cancelled != nil {
		return cancelled
	}
	return nil
}

// processGroup runs reconciliation, normalization, deduplication and routing
// for one independent entity group.
func (p *Pipeline) processGroup(group *reconcile.EntityGroup, def *schema.Definition) *groupOutput {
	out := &groupOutput{}

	p.reconciler.Check(group, def)
	out.partial.Deduplicated = p.transformer.Deduplicate(group.Members, def)

	for _, member := range group.Members {
		p.transformer.Normalize(member, def)
		p.router.Route(member, &out.streams)
		out.partial.Input++
		out.partial.CountVerdicts(member.Verdicts)
	}
	return out
}
