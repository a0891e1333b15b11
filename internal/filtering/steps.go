package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel scoring when the config leaves it unset.
const DefaultConcurrency = 4

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes candidates listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.path == "" {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded, err := ReadExcludedFile(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded candidates from file: %w", err)
	}

	removed := c.Exclude(excluded.IDs())
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type scoreFilter struct {
	concurrency int
}

// NewScore creates the step that runs the scoring pipeline over every candidate.
// Candidates whose scoring fails are moved to Candidates.Failed.
func NewScore() Filter {
	return &scoreFilter{}
}

func (f *scoreFilter) Name() string { return "score" }

func (f *scoreFilter) Disable(string) {}

func (f *scoreFilter) IsEnabled() bool { return true }

func (f *scoreFilter) Validate(cfg *Config) error {
	f.concurrency = DefaultConcurrency
	if cfg != nil && cfg.Concurrency != 0 {
		if cfg.Concurrency < 0 {
			return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
		}
		f.concurrency = cfg.Concurrency
	}
	return nil
}

func (f *scoreFilter) Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if deps.Scorer == nil {
		return c, Step{}, fmt.Errorf("scorer is required")
	}
	if strings.TrimSpace(deps.JobDescription) == "" {
		return c, Step{}, fmt.Errorf("job description is required")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, item := range c.Items {
		g.Go(func() error {
			res, err := deps.Scorer.Score(gctx, deps.JobDescription, item.Text)
			if err != nil {
				// Cancellation aborts the batch; everything else only fails this candidate.
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				deps.Logger.Warn("scoring candidate failed",
					zap.String("candidate", item.ID),
					zap.Error(err),
				)
				item.Error = err.Error()
				return nil
			}

			deps.Logger.Debug("candidate scored",
				zap.String("candidate", item.ID),
				zap.Float64("final_score", res.FinalScore.FinalScore),
			)
			item.Result = &res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return c, Step{}, err
	}

	var failed []*Candidate
	for _, item := range c.Items {
		if item.Error != "" {
			failed = append(failed, item)
		}
	}
	c.removeIf(func(item *Candidate) bool { return item.Error != "" })
	c.Failed = append(c.Failed, failed...)

	return c, Step{Initial: initial, Dropped: len(failed), Left: c.Len()}, nil
}

func (f *scoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"concurrency": strconv.Itoa(f.concurrency)},
	}
}

type minimumScoreFilter struct {
	disabled bool
	reason   string
	minimum  float64
}

// NewMinimumScore creates a filter that drops candidates scoring below the configured threshold.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minimumScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinimumScore
	}
	if f.minimum < 0 || f.minimum > 100 {
		return fmt.Errorf("minimum score must be within [0, 100], got %.2f", f.minimum)
	}
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	removed := c.removeIf(func(item *Candidate) bool {
		score, ok := item.Score()
		return !ok || score < f.minimum
	})
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates below minimum score",
			zap.Float64("minimum_score", f.minimum),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *minimumScoreFilter) Status() Status {
	details := map[string]string{
		"minimum_score": strconv.FormatFloat(f.minimum, 'f', 2, 64),
	}
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason, Details: details}
}

// Default returns the standard screening chain.
func Default() []Filter {
	return []Filter{
		NewExcludeFile(),
		NewScore(),
		NewMinimumScore(),
	}
}
