// Package audit persists a per-question record of how each answer was
// produced: tiers invoked, evidence counts, final grade, and timing. The log
// is append-only and owns its single table; retrieval-backend schemas are
// never touched from here.
package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jurisearch/statuteqa/internal/model"
)

// Entry is one audited answer.
type Entry struct {
	ID         string                `json:"id"`
	Question   string                `json:"question"`
	Intent     string                `json:"intent"`
	TiersUsed  []model.Tier          `json:"tiers_used"`
	HitCount   int                   `json:"hit_count"`
	Confidence model.ConfidenceLevel `json:"confidence"`
	FailClosed bool                  `json:"fail_closed"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Store is the audit log persistence interface.
type Store interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Migrate(ctx context.Context) error
	Close() error
}

// FromResponse builds the audit entry for a completed answer.
func FromResponse(resp *model.FinalResponse) *Entry {
	return &Entry{
		ID:         newEntryID(),
		Question:   resp.Question.Raw,
		Intent:     string(resp.Question.Intent),
		TiersUsed:  resp.TiersUsed,
		HitCount:   len(resp.Sources),
		Confidence: resp.Confidence,
		FailClosed: resp.FailClosed,
		ElapsedMS:  resp.Duration,
		CreatedAt:  resp.GeneratedAt,
	}
}

func newEntryID() string {
	return uuid.New().String()
}

// confidenceFrom maps a stored grade back onto the enum. Unrecognized
// values read as low.
func confidenceFrom(s string) model.ConfidenceLevel {
	switch model.ConfidenceLevel(strings.ToLower(s)) {
	case model.ConfidenceHigh:
		return model.ConfidenceHigh
	case model.ConfidenceMedium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// joinTiers encodes a tier list as comma-separated ordinals for storage.
func joinTiers(tiers []model.Tier) string {
	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = strconv.Itoa(int(t))
	}
	return strings.Join(parts, ",")
}

func splitTiers(s string) []model.Tier {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tiers := make([]model.Tier, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		tiers = append(tiers, model.Tier(n))
	}
	return tiers
}
