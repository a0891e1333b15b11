package scoring

import (
	_ "embed"
	"strings"

	"github.com/spigell/fitscore/internal/ai"
)

var (
	//go:embed prompts/joblevel.md
	jobLevelTemplate string
	//go:embed prompts/weights.md
	weightsTemplate string
	//go:embed prompts/subfields.md
	subfieldsTemplate string
)

const (
	weightsSystem   = "You are an expert resume evaluator. Provide only valid JSON output."
	subfieldsSystem = "You are an expert resume evaluator. Current Date: %s. Provide only valid JSON output following the exact format specified."
)

func jobLevelPrompt(jobDescription string) string {
	return strings.ReplaceAll(jobLevelTemplate, "{{JOB_DESCRIPTION}}", jobDescription)
}

func weightsPrompt(jobDescription string, level JobLevel) string {
	prompt := strings.ReplaceAll(weightsTemplate, "{{JOB_LEVEL}}", strings.ToUpper(string(level)))
	return prompt + "\nJob Description:\n" + jobDescription
}

func subfieldsPrompt(jobDescription, resumeText, evidenceSummary string) string {
	var sb strings.Builder
	sb.WriteString(subfieldsTemplate)
	sb.WriteString("\nJob Description:\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\nResume Text:\n")
	sb.WriteString(resumeText)
	sb.WriteString("\n\n")
	sb.WriteString(evidenceSummary)
	return sb.String()
}

var jobLevelSchema = ai.MustSchema("job level", `{
  "type": "object",
  "required": ["years_required", "job_level"],
  "properties": {
    "years_required": {"type": ["number", "string"]},
    "job_level": {"type": "string"},
    "extraction_details": {"type": "string"}
  }
}`)

var weightsSchema = ai.MustSchema("weights", `{
  "type": "object",
  "properties": {
    "weights": {"type": "object"},
    "rubric_scores": {"type": "object"},
    "reasoning": {"type": ["string", "object", "array"]},
    "validation": {"type": ["string", "object", "array"]}
  }
}`)

var subfieldsSchema = ai.MustSchema("subfields", `{
  "type": "object",
  "properties": {
    "experience": {"$ref": "#/definitions/section"},
    "education": {"$ref": "#/definitions/section"},
    "projects": {"$ref": "#/definitions/section"},
    "leadership": {"$ref": "#/definitions/section"},
    "research": {"$ref": "#/definitions/section"},
    "skills": {"$ref": "#/definitions/section"},
    "certifications": {"$ref": "#/definitions/section"},
    "awards": {"$ref": "#/definitions/section"},
    "publications": {"$ref": "#/definitions/section"},
    "overall_comment": {"type": "string"},
    "keyword_match_percentage": {"type": ["number", "string"]}
  },
  "definitions": {
    "section": {
      "type": "object",
      "properties": {
        "comment": {"type": "string"}
      }
    }
  }
}`)
