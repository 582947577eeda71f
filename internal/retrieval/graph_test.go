package retrieval

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisearch/statuteqa/internal/model"
)

var graphRecordKeys = []string{
	"id", "docId", "sectionId", "sectionLabel", "docType", "title", "text",
	"effectiveFrom", "effectiveTo", "score", "supersedes", "amends", "references",
}

func graphRecord(values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: graphRecordKeys, Values: values}
}

func TestNewGraph_BoundsDepth(t *testing.T) {
	g := NewGraph(nil, GraphOptions{MaxDepth: 9})
	assert.Equal(t, 3, g.opts.MaxDepth)

	g = NewGraph(nil, GraphOptions{})
	assert.Equal(t, 2, g.opts.MaxDepth)
	assert.Equal(t, "provision_text", g.opts.FulltextIndex)
	assert.Equal(t, model.Tier3Graph, g.Tier())
	assert.Equal(t, "neo4j_graph", g.Name())
}

func TestRecordsToHits(t *testing.T) {
	records := []*neo4j.Record{
		graphRecord(
			"4:abc:7", "fisheries-act", "35", "35(1)", "act", "Fisheries Act",
			"No person shall...", "2019-08-28", nil, 3.4,
			[]any{"fisheries-act-1985"}, []any{}, []any{"nav-waters-act"},
		),
	}

	hits := recordsToHits(records)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Equal(t, model.Tier3Graph, hit.Tier)
	assert.Equal(t, "4:abc:7", hit.ID)
	assert.Equal(t, "fisheries-act", hit.DocID)
	assert.Equal(t, "35", hit.SectionID)
	assert.InDelta(t, 3.4, hit.RawScore, 0.001)
	assert.Equal(t, "35(1)", hit.Citation.Section)
	require.NotNil(t, hit.Effective.From)
	assert.Equal(t, 2019, hit.Effective.From.Year())
	assert.Nil(t, hit.Effective.To)

	require.Len(t, hit.Relations, 2)
	assert.Equal(t, model.RelationSupersedes, hit.Relations[0].Kind)
	assert.Equal(t, "fisheries-act-1985", hit.Relations[0].TargetID)
	assert.Equal(t, model.RelationReferences, hit.Relations[1].Kind)
}

func TestRecordsToHits_SectionFallback(t *testing.T) {
	records := []*neo4j.Record{
		graphRecord("4:abc:8", "doc", "12", "", "act", "Some Act", "text",
			nil, nil, 1.0, []any{}, []any{}, []any{}),
	}

	hits := recordsToHits(records)
	require.Len(t, hits, 1)
	assert.Equal(t, "12", hits[0].Citation.Section)
}

func TestSeedTitles(t *testing.T) {
	entities := []model.Entity{
		{Type: model.EntityStatute, Normalized: "employment insurance act"},
		{Type: model.EntitySection, Normalized: "5(2)"},
		{Type: model.EntityRegulation, Normalized: "sor/96-332"},
		{Type: model.EntityTopic, Normalized: "insurable employment"},
	}

	seeds := seedTitles(entities)
	assert.Equal(t, []string{"employment insurance act", "sor/96-332"}, seeds)
}

func TestMergeByID(t *testing.T) {
	base := []model.RetrievalHit{{ID: "a"}, {ID: "b"}}
	extra := []model.RetrievalHit{{ID: "b"}, {ID: "c"}}

	merged := mergeByID(base, extra)
	require.Len(t, merged, 3)
	assert.Equal(t, "c", merged[2].ID)
}

func TestLuceneEscape(t *testing.T) {
	assert.Equal(t, `overtime pay`, luceneEscape("overtime pay"))
	assert.Equal(t, `what is \"insurable\" \(employment\)\?`, luceneEscape(`what is "insurable" (employment)?`))
	assert.Equal(t, `s. 5\(2\)`, luceneEscape("s. 5(2)"))
}
