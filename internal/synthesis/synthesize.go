// Package synthesis turns a fused evidence context into a structured,
// citation-tagged answer through a single generation call.
package synthesis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/config"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/pkg/anthropic"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Generator is the one generation operation synthesis needs. Satisfied by
// pkg/anthropic.Client.
type Generator interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

// Options tunes the generation call.
type Options struct {
	Model        string
	MaxTokens    int64
	Timeout      time.Duration
	RetryOnParse bool // permit one identical retry when the output fails schema parse
}

// FromConfig maps the anthropic and synthesis config sections onto Options.
func FromConfig(ac config.AnthropicConfig, sc config.SynthesisConfig) Options {
	return Options{
		Model:        ac.Model,
		MaxTokens:    int64(ac.MaxTokens),
		Timeout:      time.Duration(sc.TimeoutSecs) * time.Second,
		RetryOnParse: sc.RetryOnParse,
	}
}

// Synthesizer holds the generator client and call options.
type Synthesizer struct {
	gen  Generator
	opts Options
}

// New creates a synthesizer.
func New(gen Generator, opts Options) *Synthesizer {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &Synthesizer{gen: gen, opts: opts}
}

// Synthesize makes exactly one generation call for the question and parses
// the output into the answer schema. A schema-parse failure permits one
// identical retry when configured, then fails with SynthesisParseError.
// Transport failures are returned as-is; their retries live in the client.
func (s *Synthesizer) Synthesize(ctx context.Context, q *model.Question, fc *model.FusedContext, findings []model.ConflictFinding) (*model.StructuredAnswer, error) {
	if fc == nil || len(fc.Hits) == 0 {
		return nil, qaerr.ErrEmptyEvidence
	}

	// The system prompt never varies, so it carries a cache breakpoint and
	// serving deployments reuse it across questions.
	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:       s.opts.Model,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: &temperature,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt, "5m"),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(q, fc, findings)},
		},
	}

	attempts := 1
	if s.opts.RetryOnParse {
		attempts = 2
	}

	var lastOutput string
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		resp, err := s.gen.CreateMessage(cctx, req)
		cancel()
		if err != nil {
			return nil, eris.Wrap(err, "synthesis: generate")
		}
		resp.Usage.LogCost(s.opts.Model, "synthesis")

		lastOutput = resp.Text()
		ans, err := parseAnswer(lastOutput)
		if err == nil {
			zap.L().Debug("synthesis complete",
				zap.String("question_id", q.ID),
				zap.Int("attempt", attempt),
				zap.Int("claims", len(ans.Claims)),
				zap.Int("requirements", len(ans.Requirements)),
				zap.String("self_assessment", string(ans.SelfAssessment.Level)),
			)
			return ans, nil
		}

		lastErr = err
		zap.L().Warn("synthesis: output failed schema parse",
			zap.String("question_id", q.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return nil, qaerr.NewSynthesisParse(lastOutput, lastErr)
}

// parseAnswer decodes generator output into the answer schema. The output
// is untrusted: fences and stray prose are tolerated, missing required
// fields are not.
func parseAnswer(text string) (*model.StructuredAnswer, error) {
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, eris.New("synthesis: no JSON object in output")
	}

	var ans model.StructuredAnswer
	if err := json.Unmarshal([]byte(cleaned), &ans); err != nil {
		return nil, eris.Wrap(err, "synthesis: decode answer")
	}

	if strings.TrimSpace(ans.Direct) == "" {
		return nil, eris.New("synthesis: answer missing direct text")
	}
	for _, c := range ans.Claims {
		if strings.TrimSpace(c.Text) == "" {
			return nil, eris.New("synthesis: claim missing text")
		}
	}
	for _, r := range ans.Requirements {
		if strings.TrimSpace(r.Text) == "" {
			return nil, eris.New("synthesis: requirement missing text")
		}
	}

	level := model.ConfidenceLevel(strings.ToLower(strings.TrimSpace(string(ans.SelfAssessment.Level))))
	switch level {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
		ans.SelfAssessment.Level = level
	default:
		return nil, eris.Errorf("synthesis: bad self-assessment level %q", ans.SelfAssessment.Level)
	}

	return &ans, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
