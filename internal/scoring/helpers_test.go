package scoring

import (
	"context"
	"sync"

	"github.com/spigell/fitscore/internal/ai"
)

// stubEvaluator answers each phase with a canned reply and records requests.
type stubEvaluator struct {
	mu       sync.Mutex
	replies  map[ai.Phase]string
	errs     map[ai.Phase]error
	requests []ai.Request
}

func newStub(replies map[ai.Phase]string) *stubEvaluator {
	return &stubEvaluator{replies: replies, errs: map[ai.Phase]error{}}
}

func (s *stubEvaluator) Evaluate(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.errs[req.Phase]; err != nil {
		return "", err
	}
	return s.replies[req.Phase], nil
}

func (s *stubEvaluator) calls(phase ai.Phase) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Phase == phase {
			n++
		}
	}
	return n
}

func (s *stubEvaluator) last(phase ai.Phase) ai.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Phase == phase {
			return s.requests[i]
		}
	}
	return ai.Request{}
}

const (
	testJobDescription = `Senior Backend Engineer
We need 5+ years of professional Go experience. Bachelor's in Computer Science preferred.
Must have Kubernetes, PostgreSQL and gRPC. Lead a team of 4 engineers.`

	testResume = `John Smith
EXPERIENCE
Backend Engineer, Acme | Jan 2019 - Dec 2023
- Led a team of 4 and managed the release process, coordinator of on-call
SKILLS
Go, Kubernetes, PostgreSQL`

	jobLevelJSON = `{"years_required": 5, "job_level": "Senior", "extraction_details": "Requires 5+ years and team leadership."}`

	weightsReply = "```json\n" + `{
  "reasoning": "Experience and skills are explicit.",
  "rubric_scores": {"education": 1, "experience": 2, "projects": 0, "leadership": 1, "research": 0, "skills": 2, "certifications": 0, "awards": 0, "publications": 0},
  "validation": "sum 6",
  "weights": {"education": 0.2, "experience": 0.3, "projects": 0, "leadership": 0.1, "research": 0, "skills": 0.4, "certifications": 0, "awards": 0, "publications": 0}
}` + "\n```"

	experienceReply = `{"total_months": 60, "total_years": 5, "calculation_details": "Acme: Jan 2019 - Dec 2023 = 60 months\nTotal: 60 = 60 months = 5 years"}`

	subfieldsReply = `{
  "experience": {"relevancy": 2, "recency": 2, "depth": 2, "impact": 2, "comment": "Strong backend history."},
  "education": {"alignment": 2, "level": 1, "institution_reputation": 1, "comment": "Relevant degree."},
  "skills": {"alignment": 2, "coverage": 2, "proficiency": 1, "comment": "Core stack present."},
  "leadership": {"initiative": 0, "scope": 0, "influence": 0, "comment": "No leadership section."},
  "keyword_match_percentage": 75,
  "overall_comment": "Good fit."
}`
)

func defaultReplies() map[ai.Phase]string {
	return map[ai.Phase]string{
		ai.PhaseJobLevel:   jobLevelJSON,
		ai.PhaseWeights:    weightsReply,
		ai.PhaseExperience: experienceReply,
		ai.PhaseSubfields:  subfieldsReply,
	}
}
