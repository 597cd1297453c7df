package indexer

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// Registry maps source types to their indexers. Registration happens
// at wiring time; lookups after that are read-only, so no locking.
type Registry struct {
	indexers map[chunking.SourceType]SourceIndexer
}

func NewRegistry() *Registry {
	return &Registry{indexers: make(map[chunking.SourceType]SourceIndexer)}
}

// Register adds an indexer, replacing any previous one for the same
// source type.
func (r *Registry) Register(indexer SourceIndexer) {
	r.indexers[indexer.SourceType()] = indexer
}

// Lookup returns the indexer for a source type.
func (r *Registry) Lookup(sourceType chunking.SourceType) (SourceIndexer, error) {
	idx, ok := r.indexers[sourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, sourceType)
	}
	return idx, nil
}

// Has reports whether a source type has a registered indexer.
func (r *Registry) Has(sourceType chunking.SourceType) bool {
	_, ok := r.indexers[sourceType]
	return ok
}

// SourceTypes returns the registered source types in stable order.
func (r *Registry) SourceTypes() []chunking.SourceType {
	types := make([]chunking.SourceType, 0, len(r.indexers))
	for st := range r.indexers {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
