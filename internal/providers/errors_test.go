package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":     ErrorQuota,
		"429 rate":               ErrorRate,
		"context too long":       ErrorContext,
		"timeout":                ErrorTransient,
		"connection refused":     ErrorTransient,
		"503 service overloaded": ErrorTransient,
		"bad request":            ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(errors.New("429 rate limited")) {
		t.Fatalf("rate limit should be retryable")
	}
	if !Retryable(errors.New("timeout")) {
		t.Fatalf("timeout should be retryable")
	}
	if Retryable(errors.New("insufficient_quota")) {
		t.Fatalf("quota exhaustion should not be retryable")
	}
	if Retryable(errors.New("bad request")) {
		t.Fatalf("permanent failure should not be retryable")
	}
}
