package filtering

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spigell/fitscore/internal/scoring"
)

var resumeExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Candidate is a single resume going through screening.
type Candidate struct {
	ID     string          `json:"id"`
	Path   string          `json:"path,omitempty"`
	Text   string          `json:"-"`
	Result *scoring.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Score returns the final score, or false when the candidate has not been scored.
func (c *Candidate) Score() (float64, bool) {
	if c.Result == nil {
		return 0, false
	}
	return c.Result.FinalScore.FinalScore, true
}

type Candidates struct {
	Items  []*Candidate `json:"items"`
	Failed []*Candidate `json:"failed,omitempty"`
}

// LoadDir reads every plain-text resume in dir. Candidate IDs are file names.
func LoadDir(dir string) (*Candidates, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading resume directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !resumeExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	return LoadFiles(paths...)
}

// LoadFiles reads the given resume files in order.
func LoadFiles(paths ...string) (*Candidates, error) {
	c := &Candidates{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading resume %q: %w", path, err)
		}
		c.Items = append(c.Items, &Candidate{
			ID:   filepath.Base(path),
			Path: path,
			Text: string(data),
		})
	}
	return c, nil
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

func (c *Candidates) IDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (c *Candidates) FindByID(id string) *Candidate {
	for _, item := range c.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Exclude removes candidates whose IDs are listed in targets and returns the removed IDs.
func (c *Candidates) Exclude(targets []string) []string {
	drop := make(map[string]bool, len(targets))
	for _, t := range targets {
		drop[t] = true
	}
	return c.removeIf(func(item *Candidate) bool { return drop[item.ID] })
}

// removeIf keeps the order of the remaining candidates.
func (c *Candidates) removeIf(match func(*Candidate) bool) []string {
	var removed []string
	kept := c.Items[:0]
	for _, item := range c.Items {
		if match(item) {
			removed = append(removed, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	clear(c.Items[len(kept):])
	c.Items = kept
	return removed
}

// Ranked sorts scored candidates by final score, highest first. Ties keep ID order.
func (c *Candidates) Ranked() []*Candidate {
	ranked := slices.Clone(c.Items)
	slices.SortStableFunc(ranked, func(a, b *Candidate) int {
		sa, _ := a.Score()
		sb, _ := b.Score()
		if sa != sb {
			return cmp.Compare(sb, sa)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ranked
}

// Report is a compact ranking keyed by position, used for terminal output.
func (c *Candidates) Report() []map[string]string {
	report := make([]map[string]string, 0, len(c.Items))
	for i, item := range c.Ranked() {
		entry := map[string]string{
			"rank": fmt.Sprintf("%d", i+1),
			"id":   item.ID,
		}
		if item.Result != nil {
			entry["final_score"] = fmt.Sprintf("%.2f", item.Result.FinalScore.FinalScore)
			entry["job_level"] = string(item.Result.JobLevel)
			entry["experience_years"] = fmt.Sprintf("%.2f", item.Result.SubfieldScores.CandidateExperience.TotalYears)
		}
		report = append(report, entry)
	}
	return report
}

func (c *Candidates) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "fitscore_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (c *Candidates) ToExcluded() *ExcludedCandidates {
	excluded := &ExcludedCandidates{}
	now := time.Now().UTC()
	for _, item := range c.Items {
		score, _ := item.Score()
		excluded.Items = append(excluded.Items, &ExcludedCandidate{
			ID:         item.ID,
			Path:       item.Path,
			FinalScore: score,
			ExcludedAt: now,
		})
	}
	return excluded
}

// ExcludedCandidates is the on-disk list of already reviewed resumes.
type ExcludedCandidates struct {
	Items []*ExcludedCandidate
}

type ExcludedCandidate struct {
	ID         string
	Path       string
	FinalScore float64
	ExcludedAt time.Time
}

// ReadExcludedFile loads an exclude file. A missing or empty file yields an empty list.
func ReadExcludedFile(path string) (*ExcludedCandidates, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ExcludedCandidates{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedCandidates{}, nil
	}

	var excluded ExcludedCandidates
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedCandidates) Append(s *ExcludedCandidates) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedCandidates) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedCandidates) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
