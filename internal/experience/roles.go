package experience

import (
	"errors"
	"fmt"
	"strings"
)

// Role is one work entry: a title and its duration text.
type Role struct {
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

var experienceHeadings = map[string]struct{}{
	"experience":              {},
	"work experience":         {},
	"professional experience": {},
	"relevant experience":     {},
	"employment":              {},
	"employment history":      {},
	"work history":            {},
}

// otherHeadings end the experience block.
var otherHeadings = map[string]struct{}{
	"education": {}, "projects": {}, "personal projects": {}, "skills": {}, "technical skills": {},
	"certifications": {}, "certificates": {}, "licenses and certifications": {},
	"awards": {}, "honors": {}, "honors and awards": {}, "awards and honors": {},
	"publications": {}, "research": {}, "research experience": {},
	"leadership": {}, "leadership experience": {}, "volunteer": {}, "volunteering": {}, "volunteer experience": {},
	"summary": {}, "objective": {}, "profile": {}, "languages": {}, "interests": {},
	"references": {}, "activities": {}, "extracurricular activities": {}, "contact": {},
}

func normalizeHeading(line string) string {
	line = strings.ToLower(strings.TrimSpace(line))
	line = strings.Trim(line, "#*=_-:• \t")
	return strings.Join(strings.Fields(line), " ")
}

// ExtractRoles finds role lines in plain resume text. When the text has an
// experience heading only that block is searched, otherwise every line is.
func ExtractRoles(text string) []Role {
	lines := experienceBlock(strings.Split(text, "\n"))

	var roles []Role
	previous := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m, err := FindRange(line)
		if err != nil && errors.Is(err, ErrNoDateRange) {
			if hasRangeShape(line) {
				roles = append(roles, Role{Title: roleTitle(line, previous, len(roles)), Duration: line})
				previous = ""
			} else {
				previous = line
			}
			continue
		}

		title := strings.TrimSpace(line[:m.Start] + " " + line[m.End:])
		roles = append(roles, Role{Title: roleTitle(title, previous, len(roles)), Duration: m.Text})
		previous = ""
	}
	return roles
}

func experienceBlock(lines []string) []string {
	start := -1
	for i, line := range lines {
		if _, ok := experienceHeadings[normalizeHeading(line)]; ok {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return lines
	}

	for i := start; i < len(lines); i++ {
		if _, ok := otherHeadings[normalizeHeading(lines[i])]; ok {
			return lines[start:i]
		}
	}
	return lines[start:]
}

// roleTitle cleans the text left around a date range. A line holding only dates
// borrows the preceding line as its title.
func roleTitle(title, previous string, index int) string {
	title = strings.Trim(title, " \t|,;:()[]-–—•")
	if title == "" {
		title = strings.Trim(previous, " \t|,;:()[]-–—•")
	}
	if title == "" {
		title = fmt.Sprintf("Role %d", index+1)
	}
	return title
}

// hasRangeShape reports whether s mentions a year and a range separator, which
// makes it a role line even when no grammar accepts it.
func hasRangeShape(s string) bool {
	var hasYear, hasSeparator bool
	for _, t := range tokenize(s) {
		switch {
		case year(t):
			hasYear = true
		case t.kind == tokDash || t.kind == tokTo:
			hasSeparator = true
		}
	}
	return hasYear && hasSeparator
}
