// Package fusion merges raw hits from the tier cascade into a single
// deduplicated, budgeted context block with stable source references.
package fusion

import "github.com/jurisearch/statuteqa/internal/model"

// Normalizer maps a backend's raw relevance score onto [0,1]. Calibrators
// must be monotonic in the raw score and deterministic so that comparing
// scores across tiers, and against the acceptance threshold, is meaningful.
type Normalizer func(raw float64, rank, total int) float64

// graphSaturation controls how fast unbounded Lucene scores approach 1.
const graphSaturation = 2.0

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// hybridNormalizer passes weaviate hybrid fusion scores through; they are
// already distributed on [0,1].
func hybridNormalizer(raw float64, _, _ int) float64 {
	return clamp01(raw)
}

// graphNormalizer saturates unbounded Lucene scores: raw/(raw+k) rises
// monotonically and never reaches 1.
func graphNormalizer(raw float64, _, _ int) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + graphSaturation)
}

// fulltextNormalizer blends the clamped ts_rank_cd value with a reciprocal
// of the hit's rank within its tier. ts_rank_cd alone clusters near zero on
// short queries, so rank position carries half the weight.
func fulltextNormalizer(raw float64, rank, _ int) float64 {
	return 0.5*clamp01(raw) + 0.5/float64(1+rank)
}

// ForTier returns the calibrator for a tier. Tiers 1 and 2 share the hybrid
// backend and its calibration.
func ForTier(t model.Tier) Normalizer {
	switch t {
	case model.Tier1Narrow, model.Tier2Broad:
		return hybridNormalizer
	case model.Tier3Graph:
		return graphNormalizer
	case model.Tier4Fulltext:
		return fulltextNormalizer
	default:
		return hybridNormalizer
	}
}

// Normalize fills each hit's Score from its RawScore using the tier's
// calibrator. The rank passed to the calibrator is the hit's position among
// hits of the same tier, in slice order (backends return hits ranked).
func Normalize(hits []model.RetrievalHit) {
	totals := make(map[model.Tier]int, 4)
	for _, h := range hits {
		totals[h.Tier]++
	}
	ranks := make(map[model.Tier]int, 4)
	for i := range hits {
		t := hits[i].Tier
		hits[i].Score = ForTier(t)(hits[i].RawScore, ranks[t], totals[t])
		ranks[t]++
	}
}

// MaxNormalized returns the highest normalized score a tier's raw hits
// would receive. Used by the cascade to judge tier quality before fusion.
func MaxNormalized(tier model.Tier, hits []model.RetrievalHit) float64 {
	n := ForTier(tier)
	max := 0.0
	for i, h := range hits {
		if s := n(h.RawScore, i, len(hits)); s > max {
			max = s
		}
	}
	return max
}
