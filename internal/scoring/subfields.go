package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/evidence"
	"github.com/spigell/fitscore/internal/experience"
	"github.com/spigell/fitscore/internal/tracing"
	"github.com/spigell/fitscore/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	subfieldsMaxTokens = 6000

	missingSectionComment = "Section not present in resume"
	crossSectionNote      = " NOTE: Cross-section analysis suggests relevant information may be present in other sections."

	// gapThresholdMonths is the shortfall that zeroes the whole experience section.
	gapThresholdMonths = 12
	// noteKeywordThreshold is how many keywords must be found before an
	// all-zero section is flagged.
	noteKeywordThreshold = 2
)

// SectionScore holds the 0-2 subfield scores of one section.
type SectionScore struct {
	Subfields            map[string]int `json:"subfields"`
	Comment              string         `json:"comment"`
	CrossSectionAnalysis string         `json:"cross_section_analysis,omitempty"`
}

func zeroSection(s Section, comment string) SectionScore {
	sc := SectionScore{Subfields: make(map[string]int, len(subfields[s])), Comment: comment}
	for _, name := range subfields[s] {
		sc.Subfields[name] = 0
	}
	return sc
}

func (sc SectionScore) allZero() bool {
	for _, v := range sc.Subfields {
		if v != 0 {
			return false
		}
	}
	return true
}

// ExperienceMatch is the deterministic comparison of candidate and required years.
type ExperienceMatch struct {
	Score          int     `json:"score"`
	CandidateYears float64 `json:"candidate_years"`
	RequiredYears  float64 `json:"required_years"`
	GapMonths      float64 `json:"gap_months"`
	Reason         string  `json:"reason"`
}

// MatchExperience applies the gap rule: a shortfall of 12 months or more scores 0,
// any smaller shortfall 1, meeting the requirement 2.
func MatchExperience(candidateYears, requiredYears float64) ExperienceMatch {
	gap := (requiredYears - candidateYears) * 12
	m := ExperienceMatch{CandidateYears: candidateYears, RequiredYears: requiredYears, GapMonths: gap}

	switch {
	case gap >= gapThresholdMonths:
		m.Score = 0
		m.Reason = fmt.Sprintf("Short by %.1f months (≥12 months gap)", gap)
	case gap > 0:
		m.Score = 1
		m.Reason = fmt.Sprintf("Short by %.1f months (<12 months gap)", gap)
	default:
		m.Score = 2
		m.Reason = fmt.Sprintf("Meets or exceeds requirement (gap: %.1f months)", gap)
	}
	return m
}

// SubfieldScores is the per-section result of the subfield phase.
type SubfieldScores struct {
	Sections               map[Section]SectionScore `json:"sections"`
	OverallComment         string                   `json:"overall_comment,omitempty"`
	KeywordMatchPercentage *float64                 `json:"keyword_match_percentage,omitempty"`
	CandidateExperience    experience.Result        `json:"candidate_experience"`
	ExperienceMatch        ExperienceMatch          `json:"experience_match"`
	CrossSection           evidence.Report          `json:"cross_section"`
}

// SubfieldScorer scores every section's subfields in one evaluator call and then
// applies the deterministic experience rule and cross-section annotations.
type SubfieldScorer struct {
	evaluator  ai.Evaluator
	calculator *experience.Calculator
	extractor  *evidence.Extractor
	memo       *cache.Memo
	logger     *zap.Logger
}

// NewSubfieldScorer creates a scorer. memo may be nil to disable caching.
func NewSubfieldScorer(evaluator ai.Evaluator, calculator *experience.Calculator, extractor *evidence.Extractor, memo *cache.Memo, log *zap.Logger) *SubfieldScorer {
	if log == nil {
		log = zap.NewNop()
	}
	if calculator == nil {
		calculator = experience.NewCalculator(evaluator, experience.WithLogger(log))
	}
	if extractor == nil {
		extractor = evidence.NewExtractor()
	}
	return &SubfieldScorer{
		evaluator:  evaluator,
		calculator: calculator,
		extractor:  extractor,
		memo:       memo,
		logger:     log,
	}
}

// Score returns subfield scores for the resume. Results are cached by job
// description and resume text, except when req is the defaulted requirement:
// the experience rule would then be pinned to zero required years.
func (s *SubfieldScorer) Score(ctx context.Context, jobDescription, resumeText string, req ExperienceRequirement) (SubfieldScores, error) {
	ctx, end := tracing.StartSpan(ctx, "scoring.subfields")

	memo := s.memo
	if req.Defaulted {
		s.logger.Debug("bypassing subfield cache for defaulted job requirement")
		memo = nil
	}

	key := utils.ContentHash(jobDescription, resumeText)
	res, cached, err := cache.Fetch(ctx, memo, ai.PhaseSubfields.String(), key,
		func(ctx context.Context) (SubfieldScores, error) {
			return s.score(ctx, jobDescription, resumeText, req)
		})
	if err == nil {
		tracing.SetAttributes(ctx,
			attribute.Bool("cache_hit", cached),
			attribute.Int("experience_score", res.ExperienceMatch.Score),
		)
	}
	end(err)
	if err != nil {
		return SubfieldScores{}, err
	}

	s.logger.Debug("subfields scored",
		zap.Int("experience_score", res.ExperienceMatch.Score),
		zap.Float64("gap_months", res.ExperienceMatch.GapMonths),
		zap.Bool("cached", cached),
	)
	return res, nil
}

func (s *SubfieldScorer) score(ctx context.Context, jobDescription, resumeText string, req ExperienceRequirement) (SubfieldScores, error) {
	candidate := s.calculator.Calculate(ctx, resumeText)
	report := s.extractor.Extract(resumeText)

	tracing.AddEvent(ctx, "experience calculated",
		attribute.Int("total_months", candidate.TotalMonths),
		attribute.String("source", candidate.Source),
	)

	raw, err := s.evaluator.Evaluate(ctx, ai.Request{
		Phase:     ai.PhaseSubfields,
		System:    fmt.Sprintf(subfieldsSystem, evaluationDate(s.calculator.ReferenceDate())),
		Prompt:    subfieldsPrompt(jobDescription, resumeText, report.Summary()),
		Seed:      utils.Seed(jobDescription, resumeText),
		MaxTokens: subfieldsMaxTokens,
	})
	if err != nil {
		return SubfieldScores{}, err
	}

	res, err := parseSubfields(raw)
	if err != nil {
		return SubfieldScores{}, err
	}

	res.CandidateExperience = candidate
	res.CrossSection = report
	res.ExperienceMatch = MatchExperience(candidate.TotalYears, req.YearsRequired)

	applyExperienceRule(res.Sections, res.ExperienceMatch, experienceComment(candidate, req, res.ExperienceMatch))
	annotate(res.Sections, report)
	for _, sec := range Sections {
		if _, ok := res.Sections[sec]; !ok {
			res.Sections[sec] = zeroSection(sec, missingSectionComment)
		}
	}

	return res, nil
}

// evaluationDate renders the reference month as the "current date" given to
// the evaluator.
func evaluationDate(ref experience.YearMonth) string {
	return time.Date(ref.Year, ref.Month, 3, 0, 0, 0, 0, time.UTC).Format("January 02, 2006")
}

func experienceComment(candidate experience.Result, req ExperienceRequirement, m ExperienceMatch) string {
	return fmt.Sprintf("Candidate: %.2f years (%d months). Job requires: %s years. %s. Details: %s",
		candidate.TotalYears, candidate.TotalMonths,
		strconv.FormatFloat(req.YearsRequired, 'f', -1, 64),
		m.Reason, candidate.CalculationDetails)
}

// applyExperienceRule overrides the experience section. A section the evaluator
// left out starts from zeros.
func applyExperienceRule(sections map[Section]SectionScore, m ExperienceMatch, comment string) {
	if m.Score == 0 {
		sections[SectionExperience] = zeroSection(SectionExperience, comment)
		return
	}

	sec, ok := sections[SectionExperience]
	if !ok {
		sec = zeroSection(SectionExperience, "")
	}
	sec.Subfields[YearsVsExpectation] = m.Score
	sec.Comment = comment
	sections[SectionExperience] = sec
}

// annotate attaches cross-section findings to the evidence backed sections the
// evaluator returned. Scores are never changed.
func annotate(sections map[Section]SectionScore, report evidence.Report) {
	for _, c := range evidence.Categories {
		sec, ok := sections[Section(c)]
		if !ok {
			continue
		}
		finding := report[c]
		if len(finding.FoundKeywords) == 0 {
			continue
		}

		sec.CrossSectionAnalysis = finding.Annotation()
		if sec.allZero() && len(finding.FoundKeywords) > noteKeywordThreshold {
			sec.Comment += crossSectionNote
		}
		sections[Section(c)] = sec
	}
}

// parseSubfields validates the reply and normalizes every returned section to
// its known subfields. Missing or non-numeric subfields score 0 and values are
// rounded and clamped to 0-2.
func parseSubfields(raw string) (SubfieldScores, error) {
	doc, err := ai.ParseObject(ai.PhaseSubfields, raw, subfieldsSchema)
	if err != nil {
		return SubfieldScores{}, err
	}

	res := SubfieldScores{
		Sections:       make(map[Section]SectionScore, len(Sections)),
		OverallComment: ai.CoerceString(doc["overall_comment"]),
	}
	if f := ai.CoerceFloat(doc["keyword_match_percentage"]); !math.IsNaN(f) {
		res.KeywordMatchPercentage = &f
	}

	for _, sec := range Sections {
		body, ok := doc[string(sec)].(map[string]any)
		if !ok {
			continue
		}
		sc := SectionScore{
			Subfields: make(map[string]int, len(subfields[sec])),
			Comment:   ai.CoerceString(body["comment"]),
		}
		for _, name := range subfields[sec] {
			sc.Subfields[name] = subfieldValue(body[name])
		}
		res.Sections[sec] = sc
	}
	return res, nil
}

func subfieldValue(v any) int {
	f := ai.CoerceFloat(v)
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(2, math.Round(f))))
}
