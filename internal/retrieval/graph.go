package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/internal/resilience"
)

// GraphOptions tunes the neo4j graph adapter.
type GraphOptions struct {
	// Database is the neo4j database name; empty uses the server default.
	Database string

	// FulltextIndex is the full-text index over provision titles and text.
	FulltextIndex string

	// MaxDepth bounds relationship traversal from seed documents (1-3).
	MaxDepth int

	// Retry governs transient-fault retries around each read transaction.
	Retry resilience.RetryConfig
}

// GraphAdapter serves tier 3 against a neo4j statute graph: a full-text
// seed search plus bounded HAS_SECTION/REFERENCES traversal from documents
// named in the question. Graph hits carry relationship edges so conflict
// detection can run on tier-3 evidence.
type GraphAdapter struct {
	driver neo4j.DriverWithContext
	opts   GraphOptions
}

// NewGraph creates the tier-3 graph adapter.
func NewGraph(driver neo4j.DriverWithContext, opts GraphOptions) *GraphAdapter {
	if opts.FulltextIndex == "" {
		opts.FulltextIndex = "provision_text"
	}
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 2
	}
	if opts.MaxDepth > 3 {
		opts.MaxDepth = 3
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = neo4j.IsRetryable
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("neo4j_graph", "search")
	}
	return &GraphAdapter{driver: driver, opts: opts}
}

func (g *GraphAdapter) Tier() model.Tier { return model.Tier3Graph }

func (g *GraphAdapter) Name() string { return "neo4j_graph" }

// provisionReturn is the shared RETURN clause mapping a provision node and
// its outgoing relationship edges into one record per hit.
const provisionReturn = `
RETURN elementId(p) AS id,
       p.docId AS docId,
       p.sectionId AS sectionId,
       p.sectionLabel AS sectionLabel,
       p.docType AS docType,
       p.title AS title,
       p.text AS text,
       p.effectiveFrom AS effectiveFrom,
       p.effectiveTo AS effectiveTo,
       score,
       [(p)-[:SUPERSEDES]->(t) | t.docId] AS supersedes,
       [(p)-[:AMENDS]->(t) | t.docId] AS amends,
       [(p)-[:REFERENCES]->(t) | t.docId] AS` + " `references`"

const fulltextQuery = `
CALL db.index.fulltext.queryNodes($index, $q) YIELD node AS p, score
WHERE ($jurisdiction = '' OR p.jurisdiction = $jurisdiction)
  AND ($docType = '' OR p.docType = $docType)` +
	provisionReturn + `
ORDER BY score DESC
LIMIT $limit`

// traversalQuery expands from documents whose title matches a seed entity.
// Traversal hits have no Lucene score; they enter with a constant raw score
// and rank below strong full-text matches after normalization. The depth
// bound is interpolated because Cypher does not parameterize path lengths.
const traversalQuery = `
MATCH (d:Document)
WHERE any(seed IN $seeds WHERE toLower(d.title) CONTAINS seed)
MATCH (d)-[:HAS_SECTION|REFERENCES*1..%d]->(p:Provision)
WITH DISTINCT p, 1.0 AS score` +
	provisionReturn + `
LIMIT $limit`

// Search runs the full-text pass, then the seed traversal when the question
// names documents, merging by node identity.
func (g *GraphAdapter) Search(ctx context.Context, req SearchRequest) ([]model.RetrievalHit, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.opts.Database,
	})
	defer session.Close(ctx)

	jurisdiction, docType := req.Filters.Jurisdiction, req.Filters.DocType
	if req.Broaden {
		jurisdiction, docType = "", ""
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	hits, err := g.runQuery(ctx, session, fulltextQuery, map[string]any{
		"index":        g.opts.FulltextIndex,
		"q":            luceneEscape(req.Query),
		"jurisdiction": jurisdiction,
		"docType":      docType,
		"limit":        limit,
	})
	if err != nil {
		return nil, qaerr.NewBackendUnavailable(model.Tier3Graph, eris.Wrap(err, "graph: fulltext"))
	}

	seeds := seedTitles(req.Entities)
	if len(seeds) > 0 {
		query := fmt.Sprintf(traversalQuery, g.opts.MaxDepth)
		traversed, err := g.runQuery(ctx, session, query, map[string]any{
			"seeds": seeds,
			"limit": limit,
		})
		if err != nil {
			return nil, qaerr.NewBackendUnavailable(model.Tier3Graph, eris.Wrap(err, "graph: traversal"))
		}
		hits = mergeByID(hits, traversed)
	}

	zap.L().Debug("graph search complete",
		zap.Int("hits", len(hits)),
		zap.Int("seeds", len(seeds)),
	)
	return hits, nil
}

func (g *GraphAdapter) runQuery(ctx context.Context, session neo4j.SessionWithContext, query string, params map[string]any) ([]model.RetrievalHit, error) {
	return resilience.DoVal(ctx, g.opts.Retry, func(ctx context.Context) ([]model.RetrievalHit, error) {
		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return res.Collect(ctx)
		})
		if err != nil {
			return nil, err
		}
		records, _ := result.([]*neo4j.Record)
		return recordsToHits(records), nil
	})
}

// recordsToHits maps neo4j records into retrieval hits.
func recordsToHits(records []*neo4j.Record) []model.RetrievalHit {
	hits := make([]model.RetrievalHit, 0, len(records))
	for _, rec := range records {
		hit := model.RetrievalHit{
			Tier:      model.Tier3Graph,
			ID:        recordString(rec, "id"),
			DocID:     recordString(rec, "docId"),
			SectionID: recordString(rec, "sectionId"),
			DocType:   recordString(rec, "docType"),
			Title:     recordString(rec, "title"),
			Snippet:   recordString(rec, "text"),
		}

		hit.Citation = model.Citation{
			DocumentTitle: hit.Title,
			Section:       recordString(rec, "sectionLabel"),
		}
		if hit.Citation.Section == "" {
			hit.Citation.Section = hit.SectionID
		}

		if v, ok := rec.Get("score"); ok {
			if f, ok := v.(float64); ok {
				hit.RawScore = f
			}
		}

		hit.Effective = model.EffectiveRange{
			From: recordDate(rec, "effectiveFrom"),
			To:   recordDate(rec, "effectiveTo"),
		}

		hit.Relations = append(hit.Relations, recordRelations(rec, "supersedes", model.RelationSupersedes)...)
		hit.Relations = append(hit.Relations, recordRelations(rec, "amends", model.RelationAmends)...)
		hit.Relations = append(hit.Relations, recordRelations(rec, "references", model.RelationReferences)...)

		hits = append(hits, hit)
	}
	return hits
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// recordDate accepts RFC3339 or plain date strings; graph dates are stored
// as ISO strings.
func recordDate(rec *neo4j.Record, key string) *time.Time {
	s := recordString(rec, key)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func recordRelations(rec *neo4j.Record, key string, kind model.RelationKind) []model.Relation {
	v, ok := rec.Get(key)
	if !ok {
		return nil
	}
	targets, ok := v.([]any)
	if !ok {
		return nil
	}
	var rels []model.Relation
	for _, t := range targets {
		if docID, ok := t.(string); ok && docID != "" {
			rels = append(rels, model.Relation{Kind: kind, TargetID: docID})
		}
	}
	return rels
}

// seedTitles collects normalized statute and regulation names usable as
// traversal seeds.
func seedTitles(entities []model.Entity) []string {
	var seeds []string
	for _, e := range entities {
		if e.Type == model.EntityStatute || e.Type == model.EntityRegulation {
			if e.Normalized != "" {
				seeds = append(seeds, e.Normalized)
			}
		}
	}
	return seeds
}

// mergeByID appends extra hits whose node identity is not already present.
func mergeByID(base, extra []model.RetrievalHit) []model.RetrievalHit {
	seen := make(map[string]bool, len(base))
	for _, h := range base {
		seen[h.ID] = true
	}
	for _, h := range extra {
		if !seen[h.ID] {
			seen[h.ID] = true
			base = append(base, h)
		}
	}
	return base
}

// luceneEscape neutralizes Lucene query syntax in user text before it
// reaches the full-text index.
func luceneEscape(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
