package scoring

import (
	"context"
	"math"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/tracing"
	"github.com/spigell/fitscore/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const jobLevelMaxTokens = 800

// ExperienceRequirement is what the job description asks for.
type ExperienceRequirement struct {
	YearsRequired     float64  `json:"years_required"`
	JobLevel          JobLevel `json:"job_level"`
	ExtractionDetails string   `json:"extraction_details"`
	// Defaulted marks the entry-level stand-in returned when extraction fails.
	Defaulted bool `json:"defaulted,omitempty"`
}

type jobLevelReply struct {
	YearsRequired     float64 `json:"years_required"`
	JobLevel          string  `json:"job_level"`
	ExtractionDetails string  `json:"extraction_details"`
}

// JobLevelClassifier extracts the required years and seniority from a job description.
type JobLevelClassifier struct {
	evaluator ai.Evaluator
	memo      *cache.Memo
	logger    *zap.Logger
}

// NewJobLevelClassifier creates a classifier. memo may be nil to disable caching.
func NewJobLevelClassifier(evaluator ai.Evaluator, memo *cache.Memo, log *zap.Logger) *JobLevelClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobLevelClassifier{evaluator: evaluator, memo: memo, logger: log}
}

// Classify never fails. Any evaluator problem yields zero years at entry level
// with the reason in ExtractionDetails, and that default is not cached.
func (c *JobLevelClassifier) Classify(ctx context.Context, jobDescription string) ExperienceRequirement {
	ctx, end := tracing.StartSpan(ctx, "scoring.job_level")

	req, cached, err := cache.Fetch(ctx, c.memo, ai.PhaseJobLevel.String(), utils.ContentHash(jobDescription),
		func(ctx context.Context) (ExperienceRequirement, error) {
			return c.classify(ctx, jobDescription)
		})
	if err == nil {
		tracing.SetAttributes(ctx, attribute.String("job_level", string(req.JobLevel)), attribute.Bool("cache_hit", cached))
	}
	end(err)

	if err != nil {
		c.logger.Warn("job level extraction failed, assuming entry level", zap.Error(err))
		return ExperienceRequirement{
			YearsRequired:     0,
			JobLevel:          JobLevelEntry,
			ExtractionDetails: "Error in extraction: " + err.Error(),
			Defaulted:         true,
		}
	}

	c.logger.Debug("job level classified",
		zap.String("job_level", string(req.JobLevel)),
		zap.Float64("years_required", req.YearsRequired),
		zap.Bool("cached", cached),
	)
	return req
}

func (c *JobLevelClassifier) classify(ctx context.Context, jobDescription string) (ExperienceRequirement, error) {
	raw, err := c.evaluator.Evaluate(ctx, ai.Request{
		Phase:     ai.PhaseJobLevel,
		Prompt:    jobLevelPrompt(jobDescription),
		Seed:      utils.Seed(jobDescription),
		MaxTokens: jobLevelMaxTokens,
	})
	if err != nil {
		return ExperienceRequirement{}, err
	}

	var reply jobLevelReply
	if err := ai.DecodeJSON(ai.PhaseJobLevel, raw, jobLevelSchema, &reply); err != nil {
		return ExperienceRequirement{}, err
	}

	if math.IsNaN(reply.YearsRequired) || math.IsInf(reply.YearsRequired, 0) || reply.YearsRequired < 0 {
		return ExperienceRequirement{}, &ai.MalformedResponseError{
			Phase:  ai.PhaseJobLevel,
			Reason: "years_required must be a non-negative number",
			Raw:    raw,
		}
	}

	level, known := ParseJobLevel(reply.JobLevel)
	if !known {
		c.logger.Warn("unknown job level in response, using entry", zap.String("job_level", reply.JobLevel))
	}

	return ExperienceRequirement{
		YearsRequired:     reply.YearsRequired,
		JobLevel:          level,
		ExtractionDetails: reply.ExtractionDetails,
	}, nil
}
