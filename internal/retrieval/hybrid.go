package retrieval

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/internal/resilience"
)

// HybridOptions tunes the weaviate hybrid adapter.
type HybridOptions struct {
	// Class is the weaviate collection holding provisions.
	Class string

	// Alpha balances keyword vs vector relevance (0 = pure BM25, 1 = pure
	// vector). BroadenAlpha is used for the broadened tier-2 pass.
	Alpha        float64
	BroadenAlpha float64

	// Retry governs transient-fault retries around the GraphQL call.
	Retry resilience.RetryConfig
}

// HybridAdapter serves tiers 1 and 2 against a weaviate hybrid index. The
// same backend is registered twice: the tier-1 instance applies the question
// filters, the tier-2 instance drops them and leans toward vector recall.
type HybridAdapter struct {
	client *weaviate.Client
	tier   model.Tier
	opts   HybridOptions
}

// NewHybrid creates a hybrid adapter for tier 1 or tier 2.
func NewHybrid(client *weaviate.Client, tier model.Tier, opts HybridOptions) *HybridAdapter {
	if opts.Class == "" {
		opts.Class = "Provision"
	}
	if opts.Alpha <= 0 {
		opts.Alpha = 0.5
	}
	if opts.BroadenAlpha <= 0 {
		opts.BroadenAlpha = 0.75
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = retryableWeaviateFault
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("weaviate_hybrid", "search")
	}
	return &HybridAdapter{client: client, tier: tier, opts: opts}
}

// retryableWeaviateFault retries client errors that carry a transient HTTP
// status (429, 5xx) and defers to the generic transient check otherwise.
func retryableWeaviateFault(err error) bool {
	var wce *fault.WeaviateClientError
	if errors.As(err, &wce) && wce.StatusCode > 0 {
		return resilience.IsTransientHTTPStatus(wce.StatusCode)
	}
	return resilience.IsTransient(err)
}

func (h *HybridAdapter) Tier() model.Tier { return h.tier }

func (h *HybridAdapter) Name() string { return "weaviate_hybrid" }

// hitFields lists the provision properties fetched per hit. Cross-reference
// properties resolve only the target docId; that is all conflict detection
// needs.
func (h *HybridAdapter) hitFields() []graphql.Field {
	refFields := []graphql.Field{
		{Name: "... on " + h.opts.Class, Fields: []graphql.Field{{Name: "docId"}}},
	}
	return []graphql.Field{
		{Name: "docId"},
		{Name: "sectionId"},
		{Name: "sectionLabel"},
		{Name: "docType"},
		{Name: "title"},
		{Name: "text"},
		{Name: "jurisdiction"},
		{Name: "effectiveFrom"},
		{Name: "effectiveTo"},
		{Name: "supersedes", Fields: refFields},
		{Name: "amends", Fields: refFields},
		{Name: "references", Fields: refFields},
		{Name: "_additional { id score }"},
	}
}

// Search runs one hybrid pass. Broadened passes (tier 2, or req.Broaden set
// by the controller) drop the where filter and widen alpha toward vector.
func (h *HybridAdapter) Search(ctx context.Context, req SearchRequest) ([]model.RetrievalHit, error) {
	broaden := req.Broaden || h.tier == model.Tier2Broad

	alpha := h.opts.Alpha
	if broaden {
		alpha = h.opts.BroadenAlpha
	}

	hybrid := h.client.GraphQL().HybridArgumentBuilder().
		WithQuery(req.Query).
		WithAlpha(float32(alpha))

	query := h.client.GraphQL().Get().
		WithClassName(h.opts.Class).
		WithFields(h.hitFields()...).
		WithHybrid(hybrid)

	if req.Limit > 0 {
		query = query.WithLimit(req.Limit)
	}
	if where := buildWhere(req.Filters); where != nil && !broaden {
		query = query.WithWhere(where)
	}

	resp, err := resilience.DoVal(ctx, h.opts.Retry, func(ctx context.Context) (*models.GraphQLResponse, error) {
		return query.Do(ctx)
	})
	if err != nil {
		return nil, qaerr.NewBackendUnavailable(h.tier, eris.Wrap(err, "hybrid: search"))
	}
	if len(resp.Errors) > 0 {
		return nil, qaerr.NewBackendUnavailable(h.tier, eris.Errorf("hybrid: graphql: %s", resp.Errors[0].Message))
	}

	hits := h.parseHits(resp)
	zap.L().Debug("hybrid search complete",
		zap.String("tier", h.tier.String()),
		zap.Bool("broaden", broaden),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// buildWhere converts question filters into a weaviate where filter. Date
// bounds tolerate provisions without effective-date metadata: a missing date
// passes the filter rather than excluding the provision.
func buildWhere(f model.Filters) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if f.Jurisdiction != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"jurisdiction"}).
			WithOperator(filters.Equal).
			WithValueString(f.Jurisdiction))
	}
	if f.DocType != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"docType"}).
			WithOperator(filters.Equal).
			WithValueString(f.DocType))
	}
	if f.EffectiveFrom != nil {
		// In force at or after the lower bound, or no expiry recorded.
		operands = append(operands, filters.Where().
			WithOperator(filters.Or).
			WithOperands([]*filters.WhereBuilder{
				filters.Where().
					WithPath([]string{"effectiveTo"}).
					WithOperator(filters.GreaterThanEqual).
					WithValueDate(*f.EffectiveFrom),
				filters.Where().
					WithPath([]string{"effectiveTo"}).
					WithOperator(filters.IsNull).
					WithValueBoolean(true),
			}))
	}
	if f.EffectiveTo != nil {
		operands = append(operands, filters.Where().
			WithOperator(filters.Or).
			WithOperands([]*filters.WhereBuilder{
				filters.Where().
					WithPath([]string{"effectiveFrom"}).
					WithOperator(filters.LessThanEqual).
					WithValueDate(*f.EffectiveTo),
				filters.Where().
					WithPath([]string{"effectiveFrom"}).
					WithOperator(filters.IsNull).
					WithValueBoolean(true),
			}))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

// parseHits walks the GraphQL response into retrieval hits.
func (h *HybridAdapter) parseHits(resp *models.GraphQLResponse) []model.RetrievalHit {
	data, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[h.opts.Class].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]model.RetrievalHit, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		hit := model.RetrievalHit{
			Tier:      h.tier,
			DocID:     strVal(m, "docId"),
			SectionID: strVal(m, "sectionId"),
			DocType:   strVal(m, "docType"),
			Title:     strVal(m, "title"),
			Snippet:   strVal(m, "text"),
		}

		hit.Citation = model.Citation{
			DocumentTitle: hit.Title,
			Section:       strVal(m, "sectionLabel"),
		}
		if hit.Citation.Section == "" {
			hit.Citation.Section = hit.SectionID
		}

		hit.Effective = model.EffectiveRange{
			From: dateVal(m, "effectiveFrom"),
			To:   dateVal(m, "effectiveTo"),
		}

		hit.Relations = append(hit.Relations, refRelations(m, "supersedes", model.RelationSupersedes)...)
		hit.Relations = append(hit.Relations, refRelations(m, "amends", model.RelationAmends)...)
		hit.Relations = append(hit.Relations, refRelations(m, "references", model.RelationReferences)...)

		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			hit.ID = strVal(additional, "id")
			hit.RawScore = scoreVal(additional)
		}
		if hit.ID == "" {
			hit.ID = hit.ProvisionKey()
		}

		hits = append(hits, hit)
	}
	return hits
}

// refRelations maps a resolved cross-reference property into relations.
func refRelations(m map[string]interface{}, prop string, kind model.RelationKind) []model.Relation {
	targets, ok := m[prop].([]interface{})
	if !ok {
		return nil
	}
	var rels []model.Relation
	for _, t := range targets {
		tm, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		if docID := strVal(tm, "docId"); docID != "" {
			rels = append(rels, model.Relation{Kind: kind, TargetID: docID})
		}
	}
	return rels
}

func strVal(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func dateVal(m map[string]interface{}, key string) *time.Time {
	s, _ := m[key].(string)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// scoreVal reads the hybrid score from _additional. Weaviate serializes it
// as a string; tolerate a plain number as well.
func scoreVal(additional map[string]interface{}) float64 {
	switch v := additional["score"].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
