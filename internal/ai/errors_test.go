package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestEvaluationErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("score resume: %w", &EvaluationError{Provider: "gemini", Phase: PhaseSubfields, Temporary: true, Err: cause})

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !IsTemporary(err) {
		t.Fatalf("expected temporary error")
	}

	want := "score resume: gemini call failed during subfields: connection reset"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestMalformedResponseErrorMessage(t *testing.T) {
	err := &MalformedResponseError{
		Phase:  PhaseWeights,
		Reason: "schema validation failed",
		Fields: []FieldError{{Field: "weights", Message: "weights is required"}, {Field: "(root)", Message: "bad"}},
	}

	want := "malformed weights response: schema validation failed: weights: weights is required; (root): bad"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if IsTemporary(err) {
		t.Fatalf("malformed responses are never temporary")
	}
}

func TestTransientTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: true},
		{name: "plain", err: errors.New("bad request"), want: false},
		{name: "canceled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransientTransport(tt.err); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
