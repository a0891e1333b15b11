package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newPipeline(t *testing.T, stub *stubEvaluator, m *metrics.Metrics) *Pipeline {
	t.Helper()

	var observe cache.Observer
	if m != nil {
		observe = m.CacheLookup
	}
	memo := cache.NewMemo(cache.NewMemoryStore(0, 0), nil, observe)

	tick := time.Date(2025, time.September, 3, 12, 0, 0, 0, time.UTC)
	return NewPipeline(stub, Options{
		Memo:    memo,
		Metrics: m,
		Now: func() time.Time {
			tick = tick.Add(250 * time.Millisecond)
			return tick
		},
	})
}

func TestPipelineScore(t *testing.T) {
	stub := newStub(defaultReplies())
	p := newPipeline(t, stub, nil)

	res, err := p.Score(context.Background(), testJobDescription, testResume)
	require.NoError(t, err)

	assert.Equal(t, JobLevelSenior, res.JobLevel)
	assert.Equal(t, 3.0, res.ExperienceEducationRatio)
	assert.Equal(t, 5.0, res.ExperienceRequirement.YearsRequired)
	assert.Equal(t, 0.375, res.SectionWeights.Weights[SectionExperience])
	assert.Equal(t, 0.125, res.SectionWeights.Weights[SectionEducation])
	assert.Equal(t, 2, res.SubfieldScores.Sections[SectionExperience].Subfields[YearsVsExpectation])
	assert.Equal(t, 79.17, res.FinalScore.FinalScore)
	assert.Equal(t, 0.25, res.ProcessingTime)
	assert.InDelta(t, 1.0, res.FinalScore.SectionWeights.Sum(), WeightTolerance)
}

func TestPipelineIsIdempotent(t *testing.T) {
	stub := newStub(defaultReplies())
	p := newPipeline(t, stub, nil)
	ctx := context.Background()

	first, err := p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)
	second, err := p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)

	a, err := json.Marshal(first.FinalScore)
	require.NoError(t, err)
	b, err := json.Marshal(second.FinalScore)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	for _, phase := range []ai.Phase{ai.PhaseJobLevel, ai.PhaseWeights, ai.PhaseExperience, ai.PhaseSubfields} {
		assert.Equal(t, 1, stub.calls(phase), phase)
	}
}

func TestPipelineClearCache(t *testing.T) {
	stub := newStub(defaultReplies())
	p := newPipeline(t, stub, nil)
	ctx := context.Background()

	_, err := p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)
	require.NoError(t, p.ClearCache(ctx))
	_, err = p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls(ai.PhaseWeights))
	assert.Equal(t, 2, stub.calls(ai.PhaseSubfields))
}

func TestPipelineWithoutMemo(t *testing.T) {
	stub := newStub(defaultReplies())
	p := NewPipeline(stub, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.Score(ctx, testJobDescription, testResume)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, stub.calls(ai.PhaseSubfields))
	require.NoError(t, p.ClearCache(ctx))
}

func TestPipelineDegradesJobLevel(t *testing.T) {
	stub := newStub(defaultReplies())
	stub.replies[ai.PhaseJobLevel] = "not json"
	p := newPipeline(t, stub, nil)

	res, err := p.Score(context.Background(), testJobDescription, testResume)
	require.NoError(t, err)

	assert.Equal(t, JobLevelEntry, res.JobLevel)
	assert.Equal(t, 1.0, res.ExperienceEducationRatio)
	assert.Equal(t, 0.25, res.SectionWeights.Weights[SectionExperience])
	assert.Contains(t, stub.last(ai.PhaseWeights).Prompt, "Job Level: ENTRY")
}

func TestPipelinePropagatesMandatoryFailures(t *testing.T) {
	t.Run("weights", func(t *testing.T) {
		stub := newStub(defaultReplies())
		stub.replies[ai.PhaseWeights] = `{"weights": {"skills": 0.5}}`
		m := metrics.NewMetrics()
		p := newPipeline(t, stub, m)

		_, err := p.Score(context.Background(), testJobDescription, testResume)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, err.Error(), "assign section weights")
		assert.Zero(t, stub.calls(ai.PhaseSubfields))

		reg := prometheus.NewRegistry()
		require.NoError(t, m.Register(reg))
		count, err := testutil.GatherAndCount(reg, "fitscore_scoring_runs_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("subfields", func(t *testing.T) {
		stub := newStub(defaultReplies())
		stub.replies[ai.PhaseSubfields] = "```\n[1, 2, 3]\n```"
		p := newPipeline(t, stub, nil)

		_, err := p.Score(context.Background(), testJobDescription, testResume)
		var merr *ai.MalformedResponseError
		require.ErrorAs(t, err, &merr)
		assert.Contains(t, err.Error(), "score subfields")
	})
}

func TestPipelineEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	p := newPipeline(t, newStub(defaultReplies()), nil)
	_, err := p.Score(context.Background(), testJobDescription, testResume)
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"scoring.job_level", "scoring.weights", "scoring.subfields", "scoring.score"}, names)
}

func TestPipelineLogsResult(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPipeline(newStub(defaultReplies()), Options{Logger: zap.New(core)})

	_, err := p.Score(context.Background(), testJobDescription, testResume)
	require.NoError(t, err)

	entries := logs.FilterMessage("resume scored").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 79.17, entries[0].ContextMap()["final_score"])
}

func TestPipelineRecoversAfterDegradedJobLevel(t *testing.T) {
	stub := newStub(defaultReplies())
	stub.errs[ai.PhaseJobLevel] = &ai.EvaluationError{Phase: ai.PhaseJobLevel, Err: errors.New("quota exceeded")}
	p := newPipeline(t, stub, nil)
	ctx := context.Background()

	first, err := p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)
	assert.Equal(t, JobLevelEntry, first.JobLevel)
	assert.True(t, first.ExperienceRequirement.Defaulted)
	assert.Zero(t, first.SubfieldScores.ExperienceMatch.RequiredYears)

	delete(stub.errs, ai.PhaseJobLevel)

	second, err := p.Score(ctx, testJobDescription, testResume)
	require.NoError(t, err)
	assert.Equal(t, JobLevelSenior, second.JobLevel)
	assert.False(t, second.ExperienceRequirement.Defaulted)
	assert.Equal(t, 5.0, second.SubfieldScores.ExperienceMatch.RequiredYears)
}
