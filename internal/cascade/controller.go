// Package cascade escalates a question through the retrieval tiers until the
// accumulated evidence satisfies the policy, and records what every tier did.
package cascade

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jurisearch/statuteqa/internal/fusion"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/resilience"
	"github.com/jurisearch/statuteqa/internal/retrieval"
)

// Result quality weights: evidence strength dominates, volume rounds it out.
const (
	scoreWeight = 0.7
	countWeight = 0.3
)

// Below this intent confidence the analyzer was guessing, so every tier
// searches wider.
const lowIntentConfidence = 0.6

// tierOrder is the escalation sequence.
var tierOrder = []model.Tier{
	model.Tier1Narrow,
	model.Tier2Broad,
	model.Tier3Graph,
	model.Tier4Fulltext,
}

// Outcome is the accumulated result of one cascade run. Hits are raw
// (pre-fusion) and additive across every invoked tier. TierStats always
// carries one entry per tier in cascade order, invoked or not, so callers
// can report skipped tiers too.
type Outcome struct {
	Hits        []model.RetrievalHit
	TierStats   []model.TierStats
	TiersUsed   []model.Tier
	LowEvidence bool
}

// Controller runs the tier escalation state machine over the registered
// backend adapters.
type Controller struct {
	registry *retrieval.Registry
	policy   Policy
	breakers *resilience.ServiceBreakers
}

// New creates a cascade controller.
func New(registry *retrieval.Registry, policy Policy) *Controller {
	return &Controller{registry: registry, policy: policy.withDefaults()}
}

// WithBreakers installs per-backend circuit breakers around tier searches.
func (c *Controller) WithBreakers(sb *resilience.ServiceBreakers) *Controller {
	c.breakers = sb
	return c
}

// Run escalates through tiers 1..4 until the accumulated evidence satisfies
// the policy or every tier has been tried. A tier that fails or times out
// contributes zero hits and never aborts the run; exhausting all tiers below
// the acceptance threshold is reported as LowEvidence, not an error. Only
// caller cancellation aborts.
func (c *Controller) Run(ctx context.Context, q *model.Question) (*Outcome, error) {
	if q == nil {
		return nil, eris.New("cascade: nil question")
	}

	out := &Outcome{}
	bestScore := 0.0

	record := func(st model.TierStats, hits []model.RetrievalHit) {
		out.TierStats = append(out.TierStats, st)
		if st.Invoked {
			out.TiersUsed = append(out.TiersUsed, st.Tier)
		}
		out.Hits = append(out.Hits, hits...)
		if st.MaxScore > bestScore {
			bestScore = st.MaxScore
		}
	}

	next := 0
	for next < len(tierOrder) && !c.sufficient(bestScore, len(out.Hits)) {
		tier := tierOrder[next]

		if c.policy.ParallelFallback && tier == model.Tier3Graph {
			// Graph and full-text run together; both contribute. Stats are
			// recorded in tier order regardless of completion order.
			var st3, st4 model.TierStats
			var h3, h4 []model.RetrievalHit
			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				st3, h3 = c.runTier(gCtx, model.Tier3Graph, q)
				return nil
			})
			g.Go(func() error {
				st4, h4 = c.runTier(gCtx, model.Tier4Fulltext, q)
				return nil
			})
			_ = g.Wait()
			record(st3, h3)
			record(st4, h4)
			next += 2
		} else {
			st, hits := c.runTier(ctx, tier, q)
			record(st, hits)
			next++
		}

		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "cascade: canceled")
		}
	}

	// Tiers never reached still appear in the stats.
	for ; next < len(tierOrder); next++ {
		out.TierStats = append(out.TierStats, model.TierStats{Tier: tierOrder[next]})
	}

	out.LowEvidence = !c.sufficient(bestScore, len(out.Hits))

	tiers := make([]string, len(out.TiersUsed))
	for i, t := range out.TiersUsed {
		tiers[i] = t.String()
	}
	zap.L().Info("cascade complete",
		zap.String("question_id", q.ID),
		zap.Strings("tiers_used", tiers),
		zap.Int("hits", len(out.Hits)),
		zap.Float64("best_score", bestScore),
		zap.Bool("low_evidence", out.LowEvidence),
	)

	return out, nil
}

// sufficient applies the stop rule: enough hits outright, or blended result
// quality over the acceptance threshold.
func (c *Controller) sufficient(bestScore float64, hitCount int) bool {
	if hitCount >= c.policy.MinSufficientHits {
		return true
	}
	volume := math.Min(1, float64(hitCount)/float64(c.policy.MinSufficientHits))
	quality := bestScore*scoreWeight + volume*countWeight
	return quality >= c.policy.AcceptScore
}

// runTier searches one tier under the per-tier timeout. Failures are folded
// into the returned stats; the cascade treats them as zero hits.
func (c *Controller) runTier(ctx context.Context, tier model.Tier, q *model.Question) (model.TierStats, []model.RetrievalHit) {
	st := model.TierStats{Tier: tier}

	ad := c.registry.ForTier(tier)
	if ad == nil {
		st.Err = "no adapter registered"
		zap.L().Warn("cascade: tier has no adapter", zap.String("tier", tier.String()))
		return st, nil
	}
	st.Invoked = true

	req := c.buildRequest(tier, q)

	tctx, cancel := context.WithTimeout(ctx, c.policy.PerTierTimeout)
	defer cancel()

	start := time.Now()
	var hits []model.RetrievalHit
	var err error
	if c.breakers != nil {
		hits, err = resilience.ExecuteVal(tctx, c.breakers.Get(ad.Name()), func(ctx context.Context) ([]model.RetrievalHit, error) {
			return ad.Search(ctx, req)
		})
	} else {
		hits, err = ad.Search(tctx, req)
	}
	st.Duration = time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			st.Err = "timeout"
		} else {
			st.Err = err.Error()
		}
		zap.L().Warn("cascade: tier search failed",
			zap.String("tier", tier.String()),
			zap.String("question_id", q.ID),
			zap.Int64("duration_ms", st.Duration),
			zap.Error(err),
		)
		return st, nil
	}

	// Adapters may return more than asked.
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	st.HitCount = len(hits)
	st.MaxScore = fusion.MaxNormalized(tier, hits)

	zap.L().Debug("cascade: tier complete",
		zap.String("tier", tier.String()),
		zap.String("question_id", q.ID),
		zap.Int("hits", st.HitCount),
		zap.Float64("max_score", st.MaxScore),
		zap.Int64("duration_ms", st.Duration),
	)

	return st, hits
}

// buildRequest shapes the tier's search from the analyzed question. Tier 2
// always broadens; a low-confidence intent widens every tier's limit.
func (c *Controller) buildRequest(tier model.Tier, q *model.Question) retrieval.SearchRequest {
	limit := c.policy.MaxHitsPerTier
	if q.IntentConfidence < lowIntentConfidence && c.policy.BreadthBoost > 1 {
		limit = int(math.Ceil(float64(limit) * c.policy.BreadthBoost))
	}
	return retrieval.SearchRequest{
		Query:    q.KeywordQuery(),
		Keywords: q.Keywords,
		Entities: q.Entities,
		Filters:  q.Filters,
		Limit:    limit,
		Broaden:  tier == model.Tier2Broad,
	}
}
