package sink

import (
	"context"

	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/outcome"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
)

// Sink receives the materialized output of a batch run after routing.
// Sinks are best-effort: a sink failure is logged and counted but does not
// fail the batch, since the streams have already been published.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch *model.BatchResult, def *schema.Definition, streams outcome.Streams) error
}
