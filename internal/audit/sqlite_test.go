package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisearch/statuteqa/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleEntry(question string, created time.Time) *Entry {
	return &Entry{
		Question:   question,
		Intent:     "eligibility",
		TiersUsed:  []model.Tier{model.Tier1Narrow, model.Tier3Graph},
		HitCount:   4,
		Confidence: model.ConfidenceMedium,
		FailClosed: false,
		ElapsedMS:  812,
		CreatedAt:  created,
	}
}

func TestSQLite_RecordAndRecent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.Record(ctx, sampleEntry("first question", now.Add(-2*time.Minute))))
	require.NoError(t, st.Record(ctx, sampleEntry("second question", now)))

	entries, err := st.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "second question", entries[0].Question)
	assert.Equal(t, "first question", entries[1].Question)
	assert.Equal(t, []model.Tier{model.Tier1Narrow, model.Tier3Graph}, entries[0].TiersUsed)
	assert.Equal(t, model.ConfidenceMedium, entries[0].Confidence)
	assert.Equal(t, 4, entries[0].HitCount)
	assert.Equal(t, int64(812), entries[0].ElapsedMS)
	assert.NotEmpty(t, entries[0].ID)
}

func TestSQLite_RecentHonorsLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Record(ctx, sampleEntry("q", base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := st.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSQLite_RecentEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)

	entries, err := st.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLite_RecordFillsIDAndTimestamp(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e := sampleEntry("bare entry", time.Time{})
	e.ID = ""
	require.NoError(t, st.Record(ctx, e))

	entries, err := st.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestSQLite_RecordFailClosed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e := sampleEntry("no evidence question", time.Now().UTC())
	e.FailClosed = true
	e.Confidence = model.ConfidenceLow
	e.TiersUsed = []model.Tier{model.Tier1Narrow, model.Tier2Broad, model.Tier3Graph, model.Tier4Fulltext}
	e.HitCount = 0
	require.NoError(t, st.Record(ctx, e))

	entries, err := st.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].FailClosed)
	assert.Equal(t, model.ConfidenceLow, entries[0].Confidence)
	assert.Len(t, entries[0].TiersUsed, 4)
}

// --- Encoding helpers ---

func TestJoinSplitTiers(t *testing.T) {
	tiers := []model.Tier{model.Tier2Broad, model.Tier4Fulltext}
	assert.Equal(t, "2,4", joinTiers(tiers))
	assert.Equal(t, tiers, splitTiers("2,4"))
	assert.Nil(t, splitTiers(""))
	assert.Equal(t, []model.Tier{model.Tier1Narrow}, splitTiers("1,junk"))
}

func TestConfidenceFrom(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, confidenceFrom("high"))
	assert.Equal(t, model.ConfidenceHigh, confidenceFrom("High"))
	assert.Equal(t, model.ConfidenceMedium, confidenceFrom("medium"))
	assert.Equal(t, model.ConfidenceLow, confidenceFrom("low"))
	assert.Equal(t, model.ConfidenceLow, confidenceFrom("garbage"))
}

func TestFromResponse(t *testing.T) {
	resp := &model.FinalResponse{
		RequestID: "req-1",
		Question: model.Question{
			Raw:    "Is severance owed after a layoff?",
			Intent: model.IntentEligibility,
		},
		Confidence:  model.ConfidenceHigh,
		Sources:     []model.RetrievalHit{{ID: "a"}, {ID: "b"}},
		TiersUsed:   []model.Tier{model.Tier1Narrow},
		FailClosed:  false,
		Duration:    950,
		GeneratedAt: time.Now().UTC(),
	}

	e := FromResponse(resp)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Is severance owed after a layoff?", e.Question)
	assert.Equal(t, "eligibility", e.Intent)
	assert.Equal(t, 2, e.HitCount)
	assert.Equal(t, []model.Tier{model.Tier1Narrow}, e.TiersUsed)
	assert.Equal(t, model.ConfidenceHigh, e.Confidence)
	assert.Equal(t, int64(950), e.ElapsedMS)
}
