package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("invalid question: missing text"), false},
		{
			"explicit transient wrap",
			NewTransientError(errors.New("weaviate overloaded"), 503),
			true,
		},
		{
			"transient wrap buried in chain",
			fmt.Errorf("tier 1: %w", NewTransientError(errors.New("rate limited"), 429)),
			true,
		},
		{
			"network timeout",
			&net.DNSError{IsTimeout: true, Err: "lookup weaviate.internal: timeout"},
			true,
		},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"connection aborted", fmt.Errorf("read tcp: %w", syscall.ECONNABORTED), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransient_MessageHeuristics(t *testing.T) {
	// Wrapped driver errors often reach the retry loop as bare strings.
	for _, msg := range []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"read tcp 10.0.0.4:5432: i/o timeout",
		"server closed idle connection",
		"temporary failure in name resolution",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}

	if IsTransient(errors.New("relation \"provisions\" does not exist")) {
		t.Error("schema errors must not be retried")
	}
}

func TestIsTransient_SQLStates(t *testing.T) {
	retryable := []string{"08000", "08006", "40001", "40P01", "53300", "57P03"}
	for _, code := range retryable {
		err := fmt.Errorf("fulltext query: %w", &pgconn.PgError{Code: code})
		if !IsTransient(err) {
			t.Errorf("expected SQLSTATE %s to be transient", code)
		}
	}

	// Data and schema faults will fail identically on every attempt.
	permanent := []string{"23505", "42P01", "22P02"}
	for _, code := range permanent {
		err := fmt.Errorf("fulltext query: %w", &pgconn.PgError{Code: code})
		if IsTransient(err) {
			t.Errorf("expected SQLSTATE %s to NOT be transient", code)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 405, 409, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestTransientError_WrapContract(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}
	if te.StatusCode != 500 {
		t.Errorf("expected StatusCode 500, got %d", te.StatusCode)
	}
	if te.Error() != "root cause" {
		t.Errorf("expected the inner message, got %q", te.Error())
	}
}
