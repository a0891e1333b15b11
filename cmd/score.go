package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitscore/internal/filtering"
	"github.com/spigell/fitscore/internal/logger"
	"github.com/spigell/fitscore/internal/metrics"
	"github.com/spigell/fitscore/internal/scoring"
)

const (
	PromptDone                = "Done"
	PromptReportByScore       = "Report by score"
	PromptShowCandidate       = "Show a candidate in detail"
	PromptCandidatesToFile    = "Dump candidates to file"
	PromptAppendToExcludeFile = "Append all candidates to exclude file"
	PromptBack                = "back"
)

var errExit = errors.New("exit requested")

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one resume or a directory of resumes against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("jd", "", "path to the job description text file")
	scoreCmd.Flags().String("resume", "", "path to a single resume text file")
	scoreCmd.Flags().String("resume-dir", "", "directory of resume text files to screen in batch")
	scoreCmd.Flags().Bool("pick", false, "choose one resume from --resume-dir interactively")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "print the ranking and exit without interactive prompts")
	scoreCmd.Flags().Float64("minimum-score", 0, "drop candidates scoring below this value in batch mode")
	scoreCmd.Flags().StringP("exclude-file", "e", "", "file with already reviewed resumes to skip. Default is unset.")

	scoreCmd.MarkFlagRequired("jd")
	scoreCmd.MarkFlagsMutuallyExclusive("resume", "resume-dir")
	scoreCmd.MarkFlagsOneRequired("resume", "resume-dir")

	viper.BindPFlag("scoring.minimum-score", scoreCmd.Flags().Lookup("minimum-score"))
	viper.BindPFlag("scoring.exclude-file", scoreCmd.Flags().Lookup("exclude-file"))
}

func score(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the fitscore", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	jd, err := os.ReadFile(cmd.Flag("jd").Value.String())
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	m := metrics.NewMetrics()
	if config.Metrics.Addr != "" {
		shutdown, err := serveMetrics(config.Metrics.Addr, m, logger)
		if err != nil {
			logger.Fatal("starting the metrics server", zap.Error(err))
		}
		defer shutdown()
	}

	pipeline, err := newPipeline(ctx, config, m, logger)
	if err != nil {
		logger.Fatal("building the scoring pipeline", zap.Error(err))
	}

	candidates, err := loadCandidates(cmd)
	if err != nil {
		logger.Fatal("loading resumes", zap.Error(err))
	}

	if candidates.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no resumes found"))
		return
	}

	single := cmd.Flag("resume").Value.String() != "" || cmd.Flag("pick").Value.String() == "true"
	if single {
		res, err := pipeline.Score(ctx, string(jd), candidates.Items[0].Text)
		if err != nil {
			logger.Fatal("scoring the resume", zap.Error(err))
		}
		if err := printJSON(res); err != nil {
			logger.Fatal("printing the result", zap.Error(err))
		}
		return
	}

	screened, err := screen(ctx, config, pipeline, string(jd), candidates, logger)
	if err != nil {
		logger.Fatal("screening failed", zap.Error(err))
	}

	if screened.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates left after filters"))
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		if err := printJSON(screened.Ranked()); err != nil {
			logger.Fatal("printing the ranking", zap.Error(err))
		}
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptReportByScore, PromptShowCandidate, PromptCandidatesToFile, PromptAppendToExcludeFile, PromptDone},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current list of candidates", zap.Int("count", screened.Len()))

		if err := handleAction(action, config, screened, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func loadCandidates(cmd *cobra.Command) (*filtering.Candidates, error) {
	if path := cmd.Flag("resume").Value.String(); path != "" {
		return filtering.LoadFiles(path)
	}

	candidates, err := filtering.LoadDir(cmd.Flag("resume-dir").Value.String())
	if err != nil {
		return nil, err
	}

	if cmd.Flag("pick").Value.String() != "true" || candidates.Len() == 0 {
		return candidates, nil
	}

	picker := promptui.Select{
		Label: "Choose a resume and press ENTER",
		Items: candidates.IDs(),
		Size:  10,
	}
	_, id, err := picker.Run()
	if err != nil {
		return nil, err
	}

	return &filtering.Candidates{Items: []*filtering.Candidate{candidates.FindByID(id)}}, nil
}

func screen(ctx context.Context, config *Config, scorer filtering.Scorer, jd string, candidates *filtering.Candidates, logger *zap.Logger) (*filtering.Candidates, error) {
	cfg := &filtering.Config{
		ExcludeFile:  config.Scoring.ExcludeFile,
		MinimumScore: config.Scoring.MinimumScore,
		Concurrency:  config.Scoring.Concurrency,
	}

	steps := filtering.Default()
	if cfg.MinimumScore == 0 {
		filtering.DisableByName(steps, "minimum_score", "no minimum score configured")
	}

	deps := filtering.Deps{
		Logger:         logger.Named("screening"),
		Scorer:         scorer,
		JobDescription: jd,
	}

	screened, err := filtering.Run(ctx, cfg, deps, steps, candidates)
	if err != nil {
		return nil, err
	}

	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	if len(screened.Failed) > 0 {
		logger.Warn("some resumes could not be scored", zap.Strings("failed", failedIDs(screened)))
	}

	return screened, nil
}

func handleAction(action string, config *Config, candidates *filtering.Candidates, logger *zap.Logger) error {
	switch action {
	case PromptDone:
		logger.Info("exiting", zap.String("reason", "got done from prompt"))
		return errExit
	case PromptReportByScore:
		pretty, _ := json.MarshalIndent(candidates.Report(), "", "  ")
		logger.Info(string(pretty), zap.Int("candidates count", candidates.Len()))
		return nil
	case PromptShowCandidate:
		return showCandidate(candidates)
	case PromptCandidatesToFile:
		filename, err := candidates.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(config.Scoring.ExcludeFile, candidates, logger)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showCandidate(candidates *filtering.Candidates) error {
	items := make([]string, 0, candidates.Len()+1)
	for _, c := range candidates.Ranked() {
		s, _ := c.Score()
		items = append(items, fmt.Sprintf("%s %.2f", c.ID, s))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}

	_, selected, err := candidatePrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	id := selected[:strings.LastIndex(selected, " ")]
	candidate := candidates.FindByID(id)
	if candidate == nil {
		return fmt.Errorf("there is no such candidate %s", id)
	}
	return printJSON(candidate.Result)
}

func appendToExcludeFile(path string, candidates *filtering.Candidates, logger *zap.Logger) error {
	if path == "" {
		logger.Warn("exclude file is not configured", zap.String("hint", "pass --exclude-file or set scoring.exclude-file"))
		return nil
	}

	excluded, err := filtering.ReadExcludedFile(path)
	if err != nil {
		return err
	}

	excluded.Append(candidates.ToExcluded())

	if err := excluded.ToFile(path); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", candidates.Len()))
	return nil
}

func failedIDs(c *filtering.Candidates) []string {
	ids := make([]string, 0, len(c.Failed))
	for _, f := range c.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var _ filtering.Scorer = (*scoring.Pipeline)(nil)
