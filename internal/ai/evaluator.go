// Package ai defines the contract between the scoring pipeline and the external
// semantic evaluator, plus helpers for turning its raw replies into typed values.
package ai

import "context"

// Phase names the pipeline step an evaluator call belongs to.
type Phase string

const (
	PhaseJobLevel   Phase = "job_level"
	PhaseExperience Phase = "experience"
	PhaseWeights    Phase = "weights"
	PhaseSubfields  Phase = "subfields"
)

func (p Phase) String() string { return string(p) }

// Request is a single evaluator call. Backends always run with temperature 0 and
// pass Seed through so identical requests yield identical answers.
type Request struct {
	Phase     Phase
	System    string
	Prompt    string
	Seed      int64
	MaxTokens int
}

// Evaluator returns the raw text reply for a request. Replies are expected to hold a
// single JSON object, possibly wrapped in a markdown fence.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (string, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, req Request) (string, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
