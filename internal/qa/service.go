// Package qa runs the full answer pipeline: analyze, cascade, fuse, detect
// conflicts, synthesize, validate. Its one operation is Answer.
package qa

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/analyzer"
	"github.com/jurisearch/statuteqa/internal/audit"
	"github.com/jurisearch/statuteqa/internal/cascade"
	"github.com/jurisearch/statuteqa/internal/conflict"
	"github.com/jurisearch/statuteqa/internal/fusion"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
	"github.com/jurisearch/statuteqa/internal/synthesis"
	"github.com/jurisearch/statuteqa/internal/validate"
)

// Canned limitations for fail-closed responses. Internal error detail stays
// in the logs.
const (
	noEvidenceNote = "No supporting provisions were retrieved from any tier."
	synthesisNote  = "The answer generator did not return a verifiable response."
)

// Service answers questions. Construct with New; all collaborators are
// required except the audit store.
type Service struct {
	analyzer    *analyzer.Analyzer
	cascade     *cascade.Controller
	synthesizer *synthesis.Synthesizer
	validator   *validate.Validator
	budgetChars int
	audit       audit.Store
}

// New creates a Service.
func New(
	an *analyzer.Analyzer,
	ctrl *cascade.Controller,
	syn *synthesis.Synthesizer,
	val *validate.Validator,
	budgetChars int,
) *Service {
	return &Service{
		analyzer:    an,
		cascade:     ctrl,
		synthesizer: syn,
		validator:   val,
		budgetChars: budgetChars,
	}
}

// WithAudit attaches an audit store. Recording failures are logged, never
// fatal to the answer.
func (s *Service) WithAudit(store audit.Store) *Service {
	s.audit = store
	return s
}

// Answer runs the pipeline for one question. The only failure a caller sees
// in normal operation is InvalidInputError from analysis; evidence gaps and
// generator misbehavior come back as fail-closed responses. Cancellation of
// ctx aborts the run and is returned as an error.
func (s *Service) Answer(ctx context.Context, raw string) (*model.FinalResponse, error) {
	started := time.Now()

	q, err := s.analyzer.Analyze(raw)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("request_id", q.ID), zap.String("intent", string(q.Intent)))
	log.Info("qa: answering", zap.Int("keywords", len(q.Keywords)), zap.Int("entities", len(q.Entities)))

	resp := &model.FinalResponse{
		RequestID: uuid.New().String(),
		Question:  *q,
	}

	outcome, err := s.cascade.Run(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "qa: cascade")
	}
	resp.TiersUsed = outcome.TiersUsed
	resp.TierStats = outcome.TierStats
	if outcome.LowEvidence {
		log.Info("qa: cascade exhausted below acceptance", zap.Int("hits", len(outcome.Hits)))
	}

	fc, err := fusion.Fuse(outcome.Hits, s.budgetChars)
	if err != nil {
		if qaerr.IsEmptyEvidence(err) {
			return s.failClosed(ctx, resp, q, started, noEvidenceNote), nil
		}
		return nil, eris.Wrap(err, "qa: fuse")
	}
	resp.Sources = fc.Hits

	findings := conflict.Detect(fc)
	resp.Findings = findings

	ans, err := s.synthesizer.Synthesize(ctx, q, fc, findings)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "qa: canceled")
		}
		log.Warn("qa: synthesis failed, failing closed",
			zap.Bool("parse_failure", qaerr.IsSynthesisParse(err)),
			zap.Error(err),
		)
		return s.failClosed(ctx, resp, q, started, synthesisNote), nil
	}

	res := s.validator.Validate(q, ans, fc, findings)
	resp.Answer = res.Answer
	resp.Confidence = res.Confidence
	resp.FailClosed = res.FailClosed

	s.finish(ctx, resp, started)
	log.Info("qa: answered",
		zap.String("confidence", string(resp.Confidence)),
		zap.Bool("fail_closed", resp.FailClosed),
		zap.Int("sources", len(resp.Sources)),
		zap.Int("removed_statements", res.Removed),
		zap.Int64("duration_ms", resp.Duration),
	)
	return resp, nil
}

// failClosed completes the response with the canonical insufficient-evidence
// answer.
func (s *Service) failClosed(ctx context.Context, resp *model.FinalResponse, q *model.Question, started time.Time, note string) *model.FinalResponse {
	ans := validate.FailClosedAnswer(q.PrimaryTopic())
	if note != "" {
		ans.Limitations = append(ans.Limitations, note)
	}
	resp.Answer = ans
	resp.Confidence = model.ConfidenceLow
	resp.FailClosed = true

	s.finish(ctx, resp, started)
	zap.L().Info("qa: failed closed",
		zap.String("request_id", q.ID),
		zap.String("topic", q.PrimaryTopic()),
		zap.Int64("duration_ms", resp.Duration),
	)
	return resp
}

func (s *Service) finish(ctx context.Context, resp *model.FinalResponse, started time.Time) {
	resp.Duration = time.Since(started).Milliseconds()
	resp.GeneratedAt = time.Now().UTC()

	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.FromResponse(resp)); err != nil {
		zap.L().Warn("qa: audit record failed", zap.Error(err))
	}
}
