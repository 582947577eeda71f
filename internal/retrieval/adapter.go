// Package retrieval defines the uniform adapter contract the tier cascade
// runs against, plus the concrete backend adapters: weaviate hybrid search
// for tiers 1-2, neo4j graph traversal for tier 3, and postgres full-text
// for tier 4.
package retrieval

import (
	"context"
	"sort"
	"sync"

	"github.com/jurisearch/statuteqa/internal/model"
)

// SearchRequest carries the analyzed question into a backend adapter.
type SearchRequest struct {
	// Query is the text handed to the backend's relevance engine.
	Query string

	// Keywords and Entities refine backend-specific query construction.
	Keywords []string
	Entities []model.Entity

	// Filters constrain by jurisdiction, document type, and effective dates.
	Filters model.Filters

	// Limit caps the number of hits returned.
	Limit int

	// Broaden relaxes filters and widens recall for escalated passes.
	Broaden bool
}

// Adapter is the uniform contract every retrieval backend implements. Search
// must honor ctx cancellation and return raw backend-scored hits; score
// normalization happens downstream in fusion.
type Adapter interface {
	// Tier returns the cascade tier this adapter serves.
	Tier() model.Tier
	// Name identifies the backend in logs and tier stats.
	Name() string
	// Search runs one retrieval pass.
	Search(ctx context.Context, req SearchRequest) ([]model.RetrievalHit, error)
}

// Registry holds the adapter assigned to each tier.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.Tier]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[model.Tier]Adapter),
	}
}

// Register assigns an adapter to its tier, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Tier()] = a
}

// ForTier returns the adapter for a tier, or nil if none is registered.
func (r *Registry) ForTier(t model.Tier) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[t]
}

// Tiers returns the registered tiers in ascending order.
func (r *Registry) Tiers() []model.Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tiers := make([]model.Tier, 0, len(r.adapters))
	for t := range r.adapters {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}
