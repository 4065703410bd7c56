package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownSchema is returned when no definition exists for a
	// (kind, version) lookup. Fatal to the batch that requested it.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrDuplicateVersion is returned when registering a (kind, version)
	// that was already published. Published versions are never replaced.
	ErrDuplicateVersion = errors.New("schema version already registered")
)

// Registry is the process-wide, append-only store of published definitions.
// Registration is a rare administrative operation; lookups are concurrent and
// cheap. A published *Definition is immutable and shared across workers.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]map[int]*Definition
	latest map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[string]map[int]*Definition),
		latest: make(map[string]int),
	}
}

// Register compiles and publishes a definition. The definition's own Kind and
// Version identify it; once published it cannot be mutated or replaced.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("nil definition")
	}
	if err := def.compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.byKind[def.Kind]
	if !ok {
		versions = make(map[int]*Definition)
		r.byKind[def.Kind] = versions
	}
	if _, exists := versions[def.Version]; exists {
		return fmt.Errorf("%w: %s v%d", ErrDuplicateVersion, def.Kind, def.Version)
	}

	versions[def.Version] = def
	if def.Version > r.latest[def.Kind] {
		r.latest[def.Kind] = def.Version
	}
	return nil
}

// Resolve looks up a published definition. Version 0 means latest.
func (r *Registry) Resolve(kind string, version int) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownSchema, kind)
	}
	if version == 0 {
		version = r.latest[kind]
	}
	def, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrUnknownSchema, kind, version)
	}
	return def, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Versions returns the published versions of a kind in ascending order.
func (r *Registry) Versions(kind string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var versions []int
	for v := range r.byKind[kind] {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
