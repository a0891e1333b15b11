// Package scoring turns a job description and a resume into a 0-100 fit score:
// classify the job, weight the resume sections, score their subfields and
// aggregate the result.
package scoring

import (
	"math"
	"strings"
)

// Section is one of the fixed resume sections.
type Section string

const (
	SectionEducation      Section = "education"
	SectionExperience     Section = "experience"
	SectionProjects       Section = "projects"
	SectionLeadership     Section = "leadership"
	SectionResearch       Section = "research"
	SectionSkills         Section = "skills"
	SectionCertifications Section = "certifications"
	SectionAwards         Section = "awards"
	SectionPublications   Section = "publications"
)

// Sections lists every section in a stable order. Aggregation sums in this order.
var Sections = []Section{
	SectionEducation,
	SectionExperience,
	SectionProjects,
	SectionLeadership,
	SectionResearch,
	SectionSkills,
	SectionCertifications,
	SectionAwards,
	SectionPublications,
}

// YearsVsExpectation is the experience subfield owned by the deterministic gap rule.
const YearsVsExpectation = "years_vs_expectation"

var subfields = map[Section][]string{
	SectionExperience:     {YearsVsExpectation, "relevancy", "recency", "depth", "impact"},
	SectionEducation:      {"alignment", "level", "institution_reputation"},
	SectionProjects:       {"relevance", "complexity", "outcome"},
	SectionLeadership:     {"initiative", "scope", "influence"},
	SectionResearch:       {"domain_relevance", "novelty", "publication_impact"},
	SectionSkills:         {"alignment", "coverage", "proficiency"},
	SectionCertifications: {"relevance", "recognition", "recency"},
	SectionAwards:         {"prestige", "relevance", "selectivity"},
	SectionPublications:   {"venue_quality", "topic_alignment", "impact"},
}

// Subfields returns the scored dimensions of the section.
func (s Section) Subfields() []string {
	return append([]string(nil), subfields[s]...)
}

// SectionWeights maps each section to its importance in [0,1].
type SectionWeights map[Section]float64

// Sum adds the weights of the known sections.
func (w SectionWeights) Sum() float64 {
	var total float64
	for _, s := range Sections {
		total += w[s]
	}
	return total
}

func (w SectionWeights) clone() SectionWeights {
	out := make(SectionWeights, len(Sections))
	for _, s := range Sections {
		out[s] = w[s]
	}
	return out
}

// JobLevel is the coarse seniority tier of a job.
type JobLevel string

const (
	JobLevelEntry  JobLevel = "entry"
	JobLevelMid    JobLevel = "mid"
	JobLevelSenior JobLevel = "senior"
)

// ParseJobLevel maps free-form level names onto a JobLevel. Unknown values
// become entry and report false.
func ParseJobLevel(s string) (JobLevel, bool) {
	switch strings.Join(strings.Fields(strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(s))), " ") {
	case "entry", "entry level", "junior", "intern", "internship", "graduate":
		return JobLevelEntry, true
	case "mid", "mid level", "middle", "intermediate":
		return JobLevelMid, true
	case "senior", "senior level", "sr", "lead", "principal", "staff":
		return JobLevelSenior, true
	default:
		return JobLevelEntry, false
	}
}

// Ratio is how many times more experience counts than education at this level.
func (l JobLevel) Ratio() float64 {
	switch l {
	case JobLevelMid:
		return 2
	case JobLevelSenior:
		return 3
	default:
		return 1
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
