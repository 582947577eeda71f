package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/db"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/internal/resilience"
)

// FulltextOptions tunes the postgres full-text adapter.
type FulltextOptions struct {
	// SearchLang is the text-search configuration ("english" or "french").
	SearchLang string

	// Retry governs transient-fault retries around the query.
	Retry resilience.RetryConfig
}

// FulltextAdapter serves tier 4, the relational catch-all: postgres
// websearch_to_tsquery over the provisions table, ranked by ts_rank_cd.
// Relationship edges come from the provision_relations table so tier-4
// evidence still feeds conflict detection.
type FulltextAdapter struct {
	pool db.Pool
	opts FulltextOptions
}

// NewFulltext creates the tier-4 full-text adapter.
func NewFulltext(pool db.Pool, opts FulltextOptions) *FulltextAdapter {
	if opts.SearchLang == "" {
		opts.SearchLang = "english"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("postgres_fulltext", "search")
	}
	return &FulltextAdapter{pool: pool, opts: opts}
}

func (f *FulltextAdapter) Tier() model.Tier { return model.Tier4Fulltext }

func (f *FulltextAdapter) Name() string { return "postgres_fulltext" }

// fulltextSQL filters by tsquery match, applies optional jurisdiction,
// doc-type, and effective-date bounds (provisions without date metadata
// pass date bounds), and attaches relation target arrays per hit.
const fulltextSQL = `
SELECT p.id,
       p.doc_id,
       p.section_id,
       COALESCE(p.section_label, ''),
       COALESCE(p.doc_type, ''),
       COALESCE(p.title, ''),
       COALESCE(p.body, ''),
       p.effective_from,
       p.effective_to,
       ts_rank_cd(p.tsv, q) AS rank,
       (SELECT COALESCE(array_agg(r.target_doc_id ORDER BY r.target_doc_id), '{}')
          FROM provision_relations r
         WHERE r.source_doc_id = p.doc_id AND r.kind = 'supersedes') AS supersedes_targets,
       (SELECT COALESCE(array_agg(r.target_doc_id ORDER BY r.target_doc_id), '{}')
          FROM provision_relations r
         WHERE r.source_doc_id = p.doc_id AND r.kind = 'amends') AS amends_targets,
       (SELECT COALESCE(array_agg(r.target_doc_id ORDER BY r.target_doc_id), '{}')
          FROM provision_relations r
         WHERE r.source_doc_id = p.doc_id AND r.kind = 'references') AS reference_targets
  FROM provisions p,
       websearch_to_tsquery($1::regconfig, $2) AS q
 WHERE p.tsv @@ q
   AND ($3 = '' OR p.jurisdiction = $3)
   AND ($4 = '' OR p.doc_type = $4)
   AND ($5::timestamptz IS NULL OR p.effective_to IS NULL OR p.effective_to >= $5)
   AND ($6::timestamptz IS NULL OR p.effective_from IS NULL OR p.effective_from <= $6)
 ORDER BY rank DESC
 LIMIT $7`

// Search runs one full-text pass. Broadened requests drop all filters and
// fall back to an OR-of-keywords query for maximum recall.
func (f *FulltextAdapter) Search(ctx context.Context, req SearchRequest) ([]model.RetrievalHit, error) {
	query := req.Query
	jurisdiction, docType := req.Filters.Jurisdiction, req.Filters.DocType
	effectiveFrom, effectiveTo := req.Filters.EffectiveFrom, req.Filters.EffectiveTo

	if req.Broaden {
		jurisdiction, docType = "", ""
		effectiveFrom, effectiveTo = nil, nil
		if len(req.Keywords) > 0 {
			query = strings.Join(req.Keywords, " or ")
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	// Quebec statutes are indexed under the french text-search config.
	lang := f.opts.SearchLang
	if jurisdiction == "quebec" {
		lang = "french"
	}

	hits, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) ([]model.RetrievalHit, error) {
		rows, err := f.pool.Query(ctx, fulltextSQL,
			lang, query, jurisdiction, docType, effectiveFrom, effectiveTo, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var hits []model.RetrievalHit
		for rows.Next() {
			var (
				hit        model.RetrievalHit
				from, to   *time.Time
				rank       float32
				supersedes []string
				amends     []string
				references []string
			)
			if err := rows.Scan(&hit.ID, &hit.DocID, &hit.SectionID, &hit.Citation.Section,
				&hit.DocType, &hit.Title, &hit.Snippet, &from, &to, &rank,
				&supersedes, &amends, &references); err != nil {
				return nil, err
			}

			hit.Tier = model.Tier4Fulltext
			hit.RawScore = float64(rank)
			hit.Citation.DocumentTitle = hit.Title
			if hit.Citation.Section == "" {
				hit.Citation.Section = hit.SectionID
			}
			hit.Effective = model.EffectiveRange{From: from, To: to}
			hit.Relations = append(hit.Relations, targetRelations(supersedes, model.RelationSupersedes)...)
			hit.Relations = append(hit.Relations, targetRelations(amends, model.RelationAmends)...)
			hit.Relations = append(hit.Relations, targetRelations(references, model.RelationReferences)...)

			hits = append(hits, hit)
		}
		return hits, rows.Err()
	})
	if err != nil {
		return nil, qaerr.NewBackendUnavailable(model.Tier4Fulltext, eris.Wrap(err, "fulltext: query"))
	}

	zap.L().Debug("fulltext search complete",
		zap.Bool("broaden", req.Broaden),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

func targetRelations(targets []string, kind model.RelationKind) []model.Relation {
	var rels []model.Relation
	for _, t := range targets {
		if t != "" {
			rels = append(rels, model.Relation{Kind: kind, TargetID: t})
		}
	}
	return rels
}
