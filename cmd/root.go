package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "fitscore"
	envPrefix = "FITSCORE"
)

type Config struct {
	Evaluator *EvaluatorConfig `mapstructure:"evaluator" validate:"required"`
	Cache     *CacheConfig     `mapstructure:"cache"`
	Scoring   *ScoringConfig   `mapstructure:"scoring"`
	Metrics   *MetricsConfig   `mapstructure:"metrics"`
}

type EvaluatorConfig struct {
	Provider     string `mapstructure:"provider" validate:"omitempty,oneof=gemini openai"`
	Model        string `mapstructure:"model" validate:"required"`
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0,lte=10"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend" validate:"omitempty,oneof=memory redis none"`
	Size    int           `mapstructure:"size" validate:"gte=0"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Redis   *RedisConfig  `mapstructure:"redis" validate:"required_if=Backend redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type ScoringConfig struct {
	// ReferenceDate is a YYYY-MM month used to close open-ended date ranges.
	ReferenceDate string  `mapstructure:"reference-date"`
	Concurrency   int     `mapstructure:"concurrency" validate:"gte=0"`
	MinimumScore  float64 `mapstructure:"minimum-score" validate:"gte=0,lte=100"`
	ExcludeFile   string  `mapstructure:"exclude-file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "fitscore rates how well a resume fits a job description on a 0-100 scale",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("evaluator.api-key-file", envPrefix+"_EVALUATOR_API_KEY_FILE", "GEMINI_API_KEY_FILE", "OPENAI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding api key file environment variables: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("evaluator.provider", "gemini")
	viper.SetDefault("evaluator.model", "gemini-2.5-pro")
	viper.SetDefault("evaluator.max-retries", 3)
	viper.SetDefault("evaluator.max-log-length", 200)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.size", 1024)
	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("scoring.concurrency", 4)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is fitscore.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only the score command talks to an evaluator; the offline commands run without a config.
	if scoreCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults plus environment are enough when no config file exists.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config == nil {
		return nil, fmt.Errorf("config is empty")
	}
	if config.Cache == nil {
		config.Cache = &CacheConfig{}
	}
	if config.Scoring == nil {
		config.Scoring = &ScoringConfig{}
	}
	if config.Metrics == nil {
		config.Metrics = &MetricsConfig{}
	}

	if err := validator.New().Struct(config); err != nil {
		return config, fmt.Errorf("validating config: %w", err)
	}

	return config, nil
}
