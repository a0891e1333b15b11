package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// EvaluationError reports that the evaluator call itself failed (network, auth, quota).
type EvaluationError struct {
	Provider string
	Phase    Phase
	// Temporary marks failures worth retrying: rate limits, server errors and timeouts.
	Temporary bool
	// RetryAfter is the delay suggested by the provider, zero when unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *EvaluationError) Error() string {
	provider := e.Provider
	if provider == "" {
		provider = "evaluator"
	}
	if e.Phase != "" {
		return fmt.Sprintf("%s call failed during %s: %v", provider, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", provider, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether err wraps a retryable EvaluationError.
func IsTemporary(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr) && evalErr.Temporary
}

// TransientTransport reports network failures and deadlines, which backends
// classify as temporary.
func TransientTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// FieldError is a single schema violation in an evaluator reply.
type FieldError struct {
	Field   string
	Message string
}

// MalformedResponseError reports a reply that is not a JSON object or does not
// match the schema expected for its phase.
type MalformedResponseError struct {
	Phase  Phase
	Reason string
	Fields []FieldError
	// Raw holds the reply as received, for debugging.
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "malformed %s response: %s", e.Phase, e.Reason)
	for i, field := range e.Fields {
		if i == 0 {
			sb.WriteString(":")
		} else {
			sb.WriteString(";")
		}
		fmt.Fprintf(&sb, " %s: %s", field.Field, field.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
