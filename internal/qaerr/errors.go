// Package qaerr defines the error taxonomy shared across the answer
// pipeline. Only InvalidInputError ever reaches a caller; every other kind
// is absorbed into fail-closed or degraded responses.
package qaerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jurisearch/statuteqa/internal/model"
)

// InvalidInputError rejects a question before any retrieval happens.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// NewInvalidInput builds an InvalidInputError with the given reason.
func NewInvalidInput(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}

// IsInvalidInput reports whether the chain contains an InvalidInputError.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// BackendUnavailableError marks one retrieval tier as unusable for the
// current request. The cascade records it, skips the tier, and continues.
type BackendUnavailableError struct {
	Tier model.Tier
	Err  error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Tier, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// NewBackendUnavailable wraps a backend failure with the tier it belongs to.
func NewBackendUnavailable(tier model.Tier, err error) *BackendUnavailableError {
	return &BackendUnavailableError{Tier: tier, Err: err}
}

// IsBackendUnavailable reports whether the chain contains a
// BackendUnavailableError.
func IsBackendUnavailable(err error) bool {
	var e *BackendUnavailableError
	return errors.As(err, &e)
}

// ErrEmptyEvidence signals that every tier was consulted and nothing usable
// came back. It is a recognized terminal state, not a failure: the pipeline
// answers fail-closed instead of propagating it.
var ErrEmptyEvidence = errors.New("no usable evidence after exhausting all tiers")

// IsEmptyEvidence reports whether the chain contains ErrEmptyEvidence.
func IsEmptyEvidence(err error) bool {
	return errors.Is(err, ErrEmptyEvidence)
}

// SynthesisParseError means the generator output did not match the answer
// schema after the permitted retry. The raw output is kept for logging only.
type SynthesisParseError struct {
	Output string
	Err    error
}

func (e *SynthesisParseError) Error() string {
	return fmt.Sprintf("synthesis output unparseable: %v", e.Err)
}

func (e *SynthesisParseError) Unwrap() error {
	return e.Err
}

// NewSynthesisParse wraps a schema-parse failure with the offending output.
func NewSynthesisParse(output string, err error) *SynthesisParseError {
	return &SynthesisParseError{Output: output, Err: err}
}

// IsSynthesisParse reports whether the chain contains a SynthesisParseError.
func IsSynthesisParse(err error) bool {
	var e *SynthesisParseError
	return errors.As(err, &e)
}

// CitationMismatchError identifies a single claim whose references do not
// resolve to the fused context. The validator deletes the claim and records
// the mismatch; it never escapes the pipeline.
type CitationMismatchError struct {
	ClaimText string
	Refs      []string
}

func (e *CitationMismatchError) Error() string {
	return fmt.Sprintf("claim cites unknown evidence [%s]: %q", strings.Join(e.Refs, ","), e.ClaimText)
}

// IsCitationMismatch reports whether the chain contains a
// CitationMismatchError.
func IsCitationMismatch(err error) bool {
	var e *CitationMismatchError
	return errors.As(err, &e)
}
