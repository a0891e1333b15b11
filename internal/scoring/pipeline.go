package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/evidence"
	"github.com/spigell/fitscore/internal/experience"
	"github.com/spigell/fitscore/internal/metrics"
	"github.com/spigell/fitscore/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options wires the optional collaborators of a Pipeline. Zero values disable
// caching, metrics and logging and use the default calculator and extractor.
type Options struct {
	Memo       *cache.Memo
	Metrics    *metrics.Metrics
	Calculator *experience.Calculator
	Extractor  *evidence.Extractor
	Logger     *zap.Logger
	Now        func() time.Time
}

// Result is the full breakdown of one scoring run.
type Result struct {
	JobLevel                 JobLevel              `json:"job_level"`
	ExperienceRequirement    ExperienceRequirement `json:"experience_requirement"`
	ExperienceEducationRatio float64               `json:"experience_education_ratio"`
	SectionWeights           WeightAssignment      `json:"section_weights"`
	SubfieldScores           SubfieldScores        `json:"subfield_scores"`
	FinalScore               FinalScoreResult      `json:"final_score"`
	// ProcessingTime is in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

// Pipeline runs job level classification, weighting, subfield scoring and
// aggregation in sequence. It is safe for concurrent use; the memo is the only
// shared state.
type Pipeline struct {
	classifier *JobLevelClassifier
	weights    *WeightAssignor
	subfields  *SubfieldScorer
	memo       *cache.Memo
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates a Pipeline backed by evaluator, which must not be nil.
func NewPipeline(evaluator ai.Evaluator, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		classifier: NewJobLevelClassifier(evaluator, opts.Memo, log.Named("job_level")),
		weights:    NewWeightAssignor(evaluator, opts.Memo, log.Named("weights")),
		subfields:  NewSubfieldScorer(evaluator, opts.Calculator, opts.Extractor, opts.Memo, log.Named("subfields")),
		memo:       opts.Memo,
		metrics:    opts.Metrics,
		logger:     log,
		now:        now,
	}
}

// Score rates the resume against the job description. Job level problems
// degrade to entry level; weighting and subfield failures are returned.
func (p *Pipeline) Score(ctx context.Context, jobDescription, resumeText string) (res Result, err error) {
	start := p.now()
	ctx, end := tracing.StartSpan(ctx, "scoring.score")
	defer func() {
		end(err)
		p.metrics.ObserveRun(res.FinalScore.FinalScore, err)
	}()

	req := p.classifier.Classify(ctx, jobDescription)

	weights, err := p.weights.Assign(ctx, jobDescription, req.JobLevel)
	if err != nil {
		return Result{}, fmt.Errorf("assign section weights: %w", err)
	}

	scores, err := p.subfields.Score(ctx, jobDescription, resumeText, req)
	if err != nil {
		return Result{}, fmt.Errorf("score subfields: %w", err)
	}

	final := Aggregate(weights.Weights, scores.Sections)
	tracing.SetAttributes(ctx,
		attribute.String("job_level", string(req.JobLevel)),
		attribute.Float64("final_score", final.FinalScore),
	)

	res = Result{
		JobLevel:                 req.JobLevel,
		ExperienceRequirement:    req,
		ExperienceEducationRatio: req.JobLevel.Ratio(),
		SectionWeights:           weights,
		SubfieldScores:           scores,
		FinalScore:               final,
		ProcessingTime:           p.now().Sub(start).Seconds(),
	}

	p.logger.Info("resume scored",
		zap.String("job_level", string(req.JobLevel)),
		zap.Float64("final_score", final.FinalScore),
		zap.Float64("processing_time", res.ProcessingTime),
	)
	return res, nil
}

// ClearCache drops every memoized phase result.
func (p *Pipeline) ClearCache(ctx context.Context) error {
	if err := p.memo.Purge(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	p.logger.Info("cache cleared")
	return nil
}
