package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/internal/resilience"
)

var fulltextColumns = []string{
	"id", "doc_id", "section_id", "section_label", "doc_type", "title", "body",
	"effective_from", "effective_to", "rank",
	"supersedes_targets", "amends_targets", "reference_targets",
}

func newMockFulltext(t *testing.T) (*FulltextAdapter, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	f := NewFulltext(mock, FulltextOptions{
		Retry: resilience.RetryConfig{MaxAttempts: 1},
	})
	return f, mock
}

func TestFulltextSearch(t *testing.T) {
	f, mock := newMockFulltext(t)

	from := time.Date(2005, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(fulltextColumns).AddRow(
		"p-1", "ei-act", "7", "7(2)", "act", "Employment Insurance Act",
		"A person qualifies if...", &from, (*time.Time)(nil), float32(0.61),
		[]string{"ui-act"}, []string{}, []string{"ei-regs"},
	)

	mock.ExpectQuery(`SELECT p\.id`).
		WithArgs("english", "qualifying weeks", "federal", "", (*time.Time)(nil), (*time.Time)(nil), 10).
		WillReturnRows(rows)

	hits, err := f.Search(context.Background(), SearchRequest{
		Query:   "qualifying weeks",
		Filters: model.Filters{Jurisdiction: "federal"},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Equal(t, model.Tier4Fulltext, hit.Tier)
	assert.Equal(t, "p-1", hit.ID)
	assert.Equal(t, "ei-act", hit.DocID)
	assert.InDelta(t, 0.61, hit.RawScore, 0.001)
	assert.Equal(t, "7(2)", hit.Citation.Section)
	require.NotNil(t, hit.Effective.From)
	assert.Equal(t, 2005, hit.Effective.From.Year())

	require.Len(t, hit.Relations, 2)
	assert.Equal(t, model.RelationSupersedes, hit.Relations[0].Kind)
	assert.Equal(t, "ui-act", hit.Relations[0].TargetID)
	assert.Equal(t, model.RelationReferences, hit.Relations[1].Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulltextSearch_BroadenDropsFiltersAndJoinsKeywords(t *testing.T) {
	f, mock := newMockFulltext(t)

	from := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT p\.id`).
		WithArgs("english", "overtime or averaging", "", "", (*time.Time)(nil), (*time.Time)(nil), 10).
		WillReturnRows(pgxmock.NewRows(fulltextColumns))

	hits, err := f.Search(context.Background(), SearchRequest{
		Query:    "what are the overtime averaging rules",
		Keywords: []string{"overtime", "averaging"},
		Filters:  model.Filters{Jurisdiction: "federal", EffectiveFrom: &from},
		Limit:    10,
		Broaden:  true,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulltextSearch_QuebecUsesFrenchConfig(t *testing.T) {
	f, mock := newMockFulltext(t)

	mock.ExpectQuery(`SELECT p\.id`).
		WithArgs("french", "préavis de licenciement", "quebec", "", (*time.Time)(nil), (*time.Time)(nil), 10).
		WillReturnRows(pgxmock.NewRows(fulltextColumns))

	_, err := f.Search(context.Background(), SearchRequest{
		Query:   "préavis de licenciement",
		Filters: model.Filters{Jurisdiction: "quebec"},
		Limit:   10,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulltextSearch_BackendError(t *testing.T) {
	f, mock := newMockFulltext(t)

	mock.ExpectQuery(`SELECT p\.id`).
		WillReturnError(assert.AnError)

	_, err := f.Search(context.Background(), SearchRequest{Query: "anything", Limit: 5})
	require.Error(t, err)
	assert.True(t, qaerr.IsBackendUnavailable(err))
	assert.Contains(t, err.Error(), model.Tier4Fulltext.String())
}

func TestFulltextSearch_DefaultLimit(t *testing.T) {
	f, mock := newMockFulltext(t)

	mock.ExpectQuery(`SELECT p\.id`).
		WithArgs("english", "severance", "", "", (*time.Time)(nil), (*time.Time)(nil), 10).
		WillReturnRows(pgxmock.NewRows(fulltextColumns))

	_, err := f.Search(context.Background(), SearchRequest{Query: "severance"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
