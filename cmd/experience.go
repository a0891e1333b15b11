package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitscore/internal/experience"
	"github.com/spigell/fitscore/internal/logger"
)

var experienceCmd = &cobra.Command{
	Use:   "experience <resume-file>",
	Short: "Count professional experience in a resume with the offline date parser",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runExperience(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(experienceCmd)

	experienceCmd.Flags().String("reference-date", "", "YYYY-MM month that closes open-ended ranges (default Sep 2025)")
	experienceCmd.Flags().Bool("roles", false, "print the detected roles instead of the total")
}

func runExperience(cmd *cobra.Command, path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}

	calculator, err := newCalculator(nil, &ScoringConfig{ReferenceDate: cmd.Flag("reference-date").Value.String()}, logger)
	if err != nil {
		logger.Fatal("building the experience calculator", zap.Error(err))
	}

	if cmd.Flag("roles").Value.String() == "true" {
		if err := printJSON(experience.ExtractRoles(string(text))); err != nil {
			logger.Fatal("printing roles", zap.Error(err))
		}
		return
	}

	// Without an evaluator the calculator goes straight to the offline parser.
	res := calculator.Calculate(context.Background(), string(text))
	logger.Debug("experience counted",
		zap.Int("total_months", res.TotalMonths),
		zap.String("reference_date", calculator.ReferenceDate().String()),
	)
	if err := printJSON(res); err != nil {
		logger.Fatal("printing the result", zap.Error(err))
	}
	fmt.Fprintf(os.Stderr, "%.2f years\n", res.TotalYears)
}
