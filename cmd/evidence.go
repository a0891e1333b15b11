package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitscore/internal/evidence"
	"github.com/spigell/fitscore/internal/logger"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence <resume-file>",
	Short: "Report leadership, research, publication and award evidence found anywhere in a resume",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runEvidence(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(evidenceCmd)

	evidenceCmd.Flags().Bool("summary", false, "print the plain-text summary used in evaluator prompts")
}

func runEvidence(cmd *cobra.Command, path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err))
	}

	report := evidence.NewExtractor().Extract(string(text))

	if cmd.Flag("summary").Value.String() == "true" {
		fmt.Println(report.Summary())
		return
	}

	if err := printJSON(report); err != nil {
		logger.Fatal("printing the report", zap.Error(err))
	}
}
