package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/tracing"
	"github.com/spigell/fitscore/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const weightsMaxTokens = 2000

// WeightAssignment is the outcome of the weighting phase. Weights are already
// rebalanced for the job level; BaseWeights are what the evaluator returned.
type WeightAssignment struct {
	JobLevel     JobLevel        `json:"job_level"`
	Weights      SectionWeights  `json:"weights"`
	BaseWeights  SectionWeights  `json:"base_weights"`
	RubricScores map[Section]int `json:"rubric_scores,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	Validation   string          `json:"validation,omitempty"`
}

// WeightAssignor asks the evaluator how much each section matters for a job.
type WeightAssignor struct {
	evaluator ai.Evaluator
	memo      *cache.Memo
	logger    *zap.Logger
}

// NewWeightAssignor creates an assignor. memo may be nil to disable caching.
func NewWeightAssignor(evaluator ai.Evaluator, memo *cache.Memo, log *zap.Logger) *WeightAssignor {
	if log == nil {
		log = zap.NewNop()
	}
	return &WeightAssignor{evaluator: evaluator, memo: memo, logger: log}
}

// Assign returns validated, ratio-adjusted section weights for the job.
// Evaluator, malformed response and validation errors are returned as is.
func (a *WeightAssignor) Assign(ctx context.Context, jobDescription string, level JobLevel) (WeightAssignment, error) {
	ctx, end := tracing.StartSpan(ctx, "scoring.weights", attribute.String("job_level", string(level)))

	key := utils.ContentHash(jobDescription, string(level))
	res, cached, err := cache.Fetch(ctx, a.memo, ai.PhaseWeights.String(), key,
		func(ctx context.Context) (WeightAssignment, error) {
			return a.assign(ctx, jobDescription, level)
		})
	if err == nil {
		tracing.SetAttributes(ctx, attribute.Bool("cache_hit", cached))
	}
	end(err)
	if err != nil {
		return WeightAssignment{}, err
	}

	a.logger.Debug("section weights assigned",
		zap.String("job_level", string(level)),
		zap.Any("weights", res.Weights),
		zap.Bool("cached", cached),
	)
	return res, nil
}

func (a *WeightAssignor) assign(ctx context.Context, jobDescription string, level JobLevel) (WeightAssignment, error) {
	raw, err := a.evaluator.Evaluate(ctx, ai.Request{
		Phase:     ai.PhaseWeights,
		System:    weightsSystem,
		Prompt:    weightsPrompt(jobDescription, level),
		Seed:      utils.Seed(jobDescription),
		MaxTokens: weightsMaxTokens,
	})
	if err != nil {
		return WeightAssignment{}, err
	}

	res, err := parseWeights(raw)
	if err != nil {
		return WeightAssignment{}, err
	}

	if err := ValidateWeights(res.BaseWeights); err != nil {
		return WeightAssignment{}, err
	}

	res.JobLevel = level
	res.Weights = AdjustRatio(res.BaseWeights, level)
	return res, nil
}

// parseWeights reads {"weights": {...}} or the nine section keys at top level.
// Missing sections weigh 0.
func parseWeights(raw string) (WeightAssignment, error) {
	doc, err := ai.ParseObject(ai.PhaseWeights, raw, weightsSchema)
	if err != nil {
		return WeightAssignment{}, err
	}

	source := doc
	if nested, ok := doc["weights"].(map[string]any); ok {
		source = nested
	} else if !hasAnySection(doc) {
		return WeightAssignment{}, &ai.MalformedResponseError{Phase: ai.PhaseWeights, Reason: "missing weights", Raw: raw}
	}

	var fields []ai.FieldError
	weights := make(SectionWeights, len(Sections))
	for _, s := range Sections {
		v, ok := source[string(s)]
		if !ok || v == nil {
			weights[s] = 0
			continue
		}
		f := ai.CoerceFloat(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			fields = append(fields, ai.FieldError{Field: "weights." + string(s), Message: "must be a number"})
			continue
		}
		weights[s] = f
	}
	if len(fields) > 0 {
		return WeightAssignment{}, &ai.MalformedResponseError{Phase: ai.PhaseWeights, Reason: "invalid weights", Fields: fields, Raw: raw}
	}

	res := WeightAssignment{
		BaseWeights: weights,
		Reasoning:   textOf(doc["reasoning"]),
		Validation:  textOf(doc["validation"]),
	}

	if rubric, ok := doc["rubric_scores"].(map[string]any); ok {
		res.RubricScores = make(map[Section]int, len(Sections))
		for _, s := range Sections {
			if f := ai.CoerceFloat(rubric[string(s)]); !math.IsNaN(f) {
				res.RubricScores[s] = int(math.Round(f))
			}
		}
	}

	return res, nil
}

func hasAnySection(doc map[string]any) bool {
	for _, s := range Sections {
		if _, ok := doc[string(s)]; ok {
			return true
		}
	}
	return false
}

// textOf keeps free-form explanation fields, re-encoding structured ones.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// AdjustRatio splits the combined experience and education weight by the job
// level ratio r: experience gets r/(r+1) of it, education 1/(r+1), both rounded
// to 3 decimals. Other sections are untouched.
func AdjustRatio(w SectionWeights, level JobLevel) SectionWeights {
	out := w.clone()

	total := w[SectionExperience] + w[SectionEducation]
	if total <= 0 {
		return out
	}

	r := level.Ratio()
	out[SectionExperience] = round(r/(r+1)*total, 3)
	out[SectionEducation] = round(1/(r+1)*total, 3)
	return out
}
