// Package evidence mines the whole resume for leadership, research, publication
// and award signals that may sit outside their dedicated sections.
package evidence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/fitscore/internal/utils"
)

// Category is a resume section that benefits from cross-section evidence.
type Category string

const (
	Leadership   Category = "leadership"
	Research     Category = "research"
	Publications Category = "publications"
	Awards       Category = "awards"
)

// Categories lists every category in reporting order.
var Categories = []Category{Leadership, Research, Publications, Awards}

func (c Category) label() string {
	switch c {
	case Leadership:
		return "Leadership"
	case Research:
		return "Research"
	case Publications:
		return "Publication"
	case Awards:
		return "Award"
	default:
		return string(c)
	}
}

const (
	maxExamplesPerKeyword = 2
	maxEvidenceLength     = 150
	maxAnnotationEvidence = 200
	contextWindow         = 100
)

// Finding is what a matcher found for one category.
type Finding struct {
	FoundKeywords []string `json:"found_keywords"`
	Evidence      []string `json:"evidence"`
	Count         int      `json:"count"`
}

// Annotation renders the finding as the note attached to a scored section.
func (f Finding) Annotation() string {
	top := f.FoundKeywords
	if len(top) > 3 {
		top = top[:3]
	}

	summary := "No specific evidence found"
	if len(f.Evidence) > 0 {
		examples := f.Evidence
		if len(examples) > 2 {
			examples = examples[:2]
		}
		summary = utils.TruncateRunes(strings.Join(examples, "; "), maxAnnotationEvidence)
	}

	return fmt.Sprintf("CROSS-SECTION ANALYSIS: Found %d relevant keywords (%s). Evidence: %s",
		len(f.FoundKeywords), strings.Join(top, ", "), summary)
}

// Matcher finds category evidence in lower-cased resume text.
type Matcher interface {
	Match(text string) Finding
}

// KeywordMatcher reports substring hits from a fixed keyword list with a short
// same-line context window around each hit.
type KeywordMatcher struct {
	keywords []string
	windows  []*regexp.Regexp
}

// NewKeywordMatcher lower-cases keywords and drops duplicates, keeping first occurrence order.
func NewKeywordMatcher(keywords ...string) *KeywordMatcher {
	m := &KeywordMatcher{}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		m.keywords = append(m.keywords, kw)
		m.windows = append(m.windows, regexp.MustCompile(
			fmt.Sprintf(`.{0,%d}%s.{0,%d}`, contextWindow, regexp.QuoteMeta(kw), contextWindow)))
	}
	return m
}

// Keywords returns the deduplicated keyword list.
func (m *KeywordMatcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

func (m *KeywordMatcher) Match(text string) Finding {
	finding := Finding{FoundKeywords: []string{}, Evidence: []string{}}
	for i, kw := range m.keywords {
		if !strings.Contains(text, kw) {
			continue
		}
		finding.FoundKeywords = append(finding.FoundKeywords, kw)
		for _, match := range m.windows[i].FindAllString(text, maxExamplesPerKeyword) {
			finding.Evidence = append(finding.Evidence, cleanEvidence(match))
		}
	}
	finding.Count = len(finding.FoundKeywords)
	return finding
}

func cleanEvidence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "  ", " ")
	return utils.TruncateRunes(s, maxEvidenceLength)
}

// Report holds one finding per category.
type Report map[Category]Finding

// Extractor runs a matcher per category over the full resume text.
type Extractor struct {
	matchers map[Category]Matcher
}

// NewExtractor uses keyword matching for every category.
func NewExtractor() *Extractor {
	return NewExtractorWith(map[Category]Matcher{
		Leadership:   NewKeywordMatcher(leadershipKeywords...),
		Research:     NewKeywordMatcher(researchKeywords...),
		Publications: NewKeywordMatcher(publicationKeywords...),
		Awards:       NewKeywordMatcher(awardKeywords...),
	})
}

// NewExtractorWith uses the given matchers. Categories without a matcher report
// an empty finding.
func NewExtractorWith(matchers map[Category]Matcher) *Extractor {
	return &Extractor{matchers: matchers}
}

// Extract lower-cases the resume once and runs every matcher over it.
func (e *Extractor) Extract(resumeText string) Report {
	text := strings.ToLower(resumeText)
	report := make(Report, len(Categories))
	for _, c := range Categories {
		m, ok := e.matchers[c]
		if !ok || m == nil {
			report[c] = Finding{FoundKeywords: []string{}, Evidence: []string{}}
			continue
		}
		report[c] = m.Match(text)
	}
	return report
}

// Summary renders the report as prompt context for subfield scoring.
func (r Report) Summary() string {
	var sb strings.Builder
	sb.WriteString("CROSS-SECTION CONTENT ANALYSIS RESULTS:\n")
	for _, c := range Categories {
		f := r[c]
		top := f.FoundKeywords
		if len(top) > 5 {
			top = top[:5]
		}
		fmt.Fprintf(&sb, "%s keywords found: %d (%s)\n", c.label(), f.Count, strings.Join(top, ", "))
	}
	sb.WriteString("\nUse this information to enhance your scoring. If keywords are found but sections appear weak, consider the cross-section evidence.\n")
	return sb.String()
}
