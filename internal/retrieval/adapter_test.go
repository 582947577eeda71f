package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jurisearch/statuteqa/internal/model"
)

type stubAdapter struct {
	tier model.Tier
	name string
}

func (s stubAdapter) Tier() model.Tier { return s.tier }
func (s stubAdapter) Name() string     { return s.name }
func (s stubAdapter) Search(context.Context, SearchRequest) ([]model.RetrievalHit, error) {
	return nil, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{tier: model.Tier3Graph, name: "graph"})
	r.Register(stubAdapter{tier: model.Tier1Narrow, name: "hybrid"})

	a := r.ForTier(model.Tier1Narrow)
	assert.NotNil(t, a)
	assert.Equal(t, "hybrid", a.Name())

	assert.Nil(t, r.ForTier(model.Tier4Fulltext))
}

func TestRegistry_ReplacesSameTier(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{tier: model.Tier1Narrow, name: "first"})
	r.Register(stubAdapter{tier: model.Tier1Narrow, name: "second"})

	assert.Equal(t, "second", r.ForTier(model.Tier1Narrow).Name())
}

func TestRegistry_TiersSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{tier: model.Tier4Fulltext})
	r.Register(stubAdapter{tier: model.Tier1Narrow})
	r.Register(stubAdapter{tier: model.Tier3Graph})

	assert.Equal(t, []model.Tier{model.Tier1Narrow, model.Tier3Graph, model.Tier4Fulltext}, r.Tiers())
}

func TestRegistry_EmptyTiers(t *testing.T) {
	assert.Empty(t, NewRegistry().Tiers())
}
