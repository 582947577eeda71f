package fusion

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
)

// DefaultBudgetChars bounds the assembled context when no budget is
// configured.
const DefaultBudgetChars = 24000

// Fuse normalizes, deduplicates, orders, and budgets the cascade's hits,
// then assigns stable source references. Hits for the same provision found
// by several tiers collapse into the lowest-tier hit, with the other tiers
// recorded as corroboration. Returns qaerr.ErrEmptyEvidence when nothing
// survives.
func Fuse(hits []model.RetrievalHit, budget int) (*model.FusedContext, error) {
	if budget <= 0 {
		budget = DefaultBudgetChars
	}
	if len(hits) == 0 {
		return nil, qaerr.ErrEmptyEvidence
	}

	Normalize(hits)
	merged := dedupe(hits)
	sortHits(merged)
	kept, total := fitBudget(merged, budget)
	if len(kept) == 0 {
		return nil, qaerr.ErrEmptyEvidence
	}

	for i := range kept {
		kept[i].Ref = fmt.Sprintf("S%d", i+1)
	}

	zap.L().Debug("fusion complete",
		zap.Int("input_hits", len(hits)),
		zap.Int("deduped", len(merged)),
		zap.Int("kept", len(kept)),
		zap.Int("total_chars", total),
	)

	return &model.FusedContext{Hits: kept, TotalChars: total, Budget: budget}, nil
}

// dedupe collapses hits sharing a provision key. The survivor is the hit
// from the lowest (most precise) tier; every other tier that found the same
// provision is recorded in CorroboratedBy. Relations are unioned so conflict
// detection sees edges from every backend.
func dedupe(hits []model.RetrievalHit) []model.RetrievalHit {
	index := make(map[string]int, len(hits))
	var out []model.RetrievalHit

	for _, h := range hits {
		key := h.ProvisionKey()
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, h)
			continue
		}

		kept := &out[at]
		if h.Tier < kept.Tier {
			h.CorroboratedBy = appendTier(h.CorroboratedBy, kept.CorroboratedBy...)
			h.CorroboratedBy = appendTier(h.CorroboratedBy, kept.Tier)
			h.Relations = unionRelations(h.Relations, kept.Relations)
			if kept.Score > h.Score {
				h.Score = kept.Score
			}
			*kept = h
		} else {
			if h.Tier != kept.Tier {
				kept.CorroboratedBy = appendTier(kept.CorroboratedBy, h.Tier)
			}
			kept.Relations = unionRelations(kept.Relations, h.Relations)
			if h.Score > kept.Score {
				// Corroboration never weakens the survivor, but a stronger
				// signal lifts it.
				kept.Score = h.Score
			}
		}
	}
	return out
}

func appendTier(tiers []model.Tier, add ...model.Tier) []model.Tier {
	for _, t := range add {
		dup := false
		for _, have := range tiers {
			if have == t {
				dup = true
				break
			}
		}
		if !dup {
			tiers = append(tiers, t)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}

func unionRelations(a, b []model.Relation) []model.Relation {
	seen := make(map[model.Relation]bool, len(a))
	for _, r := range a {
		seen[r] = true
	}
	for _, r := range b {
		if !seen[r] {
			seen[r] = true
			a = append(a, r)
		}
	}
	return a
}

// sortHits orders by normalized score descending, then tier ascending, then
// effective-date recency descending, then id ascending so the order is fully
// deterministic.
func sortHits(hits []model.RetrievalHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		ar, br := recency(a), recency(b)
		if !ar.Equal(br) {
			return ar.After(br)
		}
		return a.ID < b.ID
	})
}

// recency is the effective-from date used for tie-breaking; hits without
// one sort last among equals.
func recency(h model.RetrievalHit) time.Time {
	if h.Effective.From != nil {
		return *h.Effective.From
	}
	return time.Time{}
}

// fitBudget greedily keeps whole hits, in order, while the running snippet
// total fits the budget. A hit that does not fit is skipped, never split,
// and later smaller hits may still fit.
func fitBudget(hits []model.RetrievalHit, budget int) ([]model.RetrievalHit, int) {
	var kept []model.RetrievalHit
	total := 0
	for _, h := range hits {
		n := len(h.Snippet)
		if total+n > budget {
			continue
		}
		kept = append(kept, h)
		total += n
	}
	return kept, total
}
