// Package experience computes a candidate's total professional experience,
// asking the semantic evaluator first and falling back to a deterministic
// date range parser.
package experience

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/utils"
	"go.uber.org/zap"
)

const (
	SourceEvaluator = "evaluator"
	SourceFallback  = "fallback"

	// maxRoleMonths is the longest duration accepted for a single role.
	maxRoleMonths    = 120
	defaultMaxTokens = 1000

	systemPrompt = "You are an expert at calculating total years of professional experience from resume text. Provide only valid JSON output."
)

// DefaultReferenceDate resolves open-ended ranges when none is configured.
var DefaultReferenceDate = YearMonth{Year: 2025, Month: time.September}

//go:embed prompt.md
var promptTemplate string

var replySchema = ai.MustSchema("experience", `{
  "type": "object",
  "required": ["total_months", "calculation_details"],
  "properties": {
    "total_months": {"type": ["number", "string"]},
    "total_years": {"type": ["number", "string"]},
    "calculation_details": {"type": "string"}
  }
}`)

var totalPattern = regexp.MustCompile(`(?i)total:\s*((?:\d+\s*\+\s*)*\d+)\s*=\s*\d+\s*months`)

// Result is the candidate's computed experience.
type Result struct {
	TotalMonths        int     `json:"total_months"`
	TotalYears         float64 `json:"total_years"`
	CalculationDetails string  `json:"calculation_details"`
	Source             string  `json:"source"`
}

type reply struct {
	TotalMonths        float64 `json:"total_months"`
	TotalYears         float64 `json:"total_years"`
	CalculationDetails string  `json:"calculation_details"`
}

// Calculator turns resume text into a Result. It never fails: evaluator problems
// switch it to the fallback parser.
type Calculator struct {
	evaluator ai.Evaluator
	reference YearMonth
	maxTokens int
	logger    *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithReferenceDate sets the month used as "now" for open-ended ranges.
func WithReferenceDate(ym YearMonth) Option {
	return func(c *Calculator) { c.reference = ym }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Calculator) {
		if log != nil {
			c.logger = log
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewCalculator creates a Calculator. A nil evaluator uses only the fallback parser.
func NewCalculator(evaluator ai.Evaluator, opts ...Option) *Calculator {
	c := &Calculator{
		evaluator: evaluator,
		reference: DefaultReferenceDate,
		maxTokens: defaultMaxTokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReferenceDate returns the month used for open-ended ranges.
func (c *Calculator) ReferenceDate() YearMonth {
	return c.reference
}

// Calculate computes total experience for the resume.
func (c *Calculator) Calculate(ctx context.Context, resumeText string) Result {
	if c.evaluator == nil {
		return c.Fallback(resumeText)
	}

	res, err := c.evaluate(ctx, resumeText)
	if err != nil {
		c.logger.Warn("experience evaluation failed, using fallback parser", zap.Error(err))
		return c.Fallback(resumeText)
	}

	c.logger.Debug("experience calculated",
		zap.Int("total_months", res.TotalMonths),
		zap.String("source", res.Source),
	)
	return res
}

func (c *Calculator) evaluate(ctx context.Context, resumeText string) (Result, error) {
	raw, err := c.evaluator.Evaluate(ctx, ai.Request{
		Phase:     ai.PhaseExperience,
		System:    systemPrompt,
		Prompt:    buildPrompt(resumeText, c.reference),
		Seed:      utils.Seed(resumeText),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return Result{}, err
	}

	var r reply
	if err := ai.DecodeJSON(ai.PhaseExperience, raw, replySchema, &r); err != nil {
		return Result{}, err
	}

	months, ok := recomputeTotal(r.CalculationDetails)
	if !ok {
		if math.IsNaN(r.TotalMonths) || r.TotalMonths < 0 {
			return Result{}, &ai.MalformedResponseError{
				Phase:  ai.PhaseExperience,
				Reason: "total_months must be a non-negative number",
				Raw:    raw,
			}
		}
		months = int(math.Round(r.TotalMonths))
	}

	return Result{
		TotalMonths:        months,
		TotalYears:         float64(months) / 12,
		CalculationDetails: r.CalculationDetails,
		Source:             SourceEvaluator,
	}, nil
}

// recomputeTotal sums the "Total: a + b + ... = N months" expression itself,
// ignoring the stated N.
func recomputeTotal(details string) (int, bool) {
	match := totalPattern.FindStringSubmatch(details)
	if match == nil {
		return 0, false
	}

	sum := 0
	for _, part := range strings.Split(match[1], "+") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, false
		}
		sum += n
	}
	return sum, true
}

func buildPrompt(resumeText string, reference YearMonth) string {
	ref := fmt.Sprintf("%s %d", reference.Month, reference.Year)
	prompt := strings.ReplaceAll(promptTemplate, "{{REFERENCE_DATE}}", ref)
	return strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", resumeText)
}

// Fallback runs the deterministic parser over roles discovered in the resume text.
func (c *Calculator) Fallback(resumeText string) Result {
	return c.FromRoles(ExtractRoles(resumeText))
}

// FromRoles sums the durations of structured roles. Unparseable or unreasonable
// durations are skipped and explained in the details.
func (c *Calculator) FromRoles(roles []Role) Result {
	total := 0
	items := make([]string, 0, len(roles))

	for _, role := range roles {
		r, err := ParseRange(role.Duration)
		if err != nil {
			if errors.Is(err, ErrNoDateRange) {
				items = append(items, fmt.Sprintf("Skipped %s: %s (could not parse dates)", role.Title, role.Duration))
				continue
			}
			var perr *ParsingError
			reason := err.Error()
			if errors.As(err, &perr) {
				reason = perr.Err.Error()
			}
			items = append(items, fmt.Sprintf("Skipped %s: %s (parsing error: %s)", role.Title, role.Duration, reason))
			continue
		}

		months := Months(r, c.reference)
		if months <= 0 || months > maxRoleMonths {
			items = append(items, fmt.Sprintf("Skipped %s: %s (unreasonable duration: %d months)", role.Title, role.Duration, months))
			continue
		}

		total += months
		items = append(items, fmt.Sprintf("Counted %s: %s = %d months", role.Title, role.Duration, months))
	}

	details := "No professional experience found"
	if len(items) > 0 {
		details = strings.Join(items, "; ")
	}

	years := float64(total) / 12
	return Result{
		TotalMonths:        total,
		TotalYears:         years,
		CalculationDetails: fmt.Sprintf("Fallback calculation: %s. Total: %d months = %.2f years", details, total, years),
		Source:             SourceFallback,
	}
}
