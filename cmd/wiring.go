package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/ai/gemini"
	"github.com/spigell/fitscore/internal/ai/openai"
	"github.com/spigell/fitscore/internal/cache"
	"github.com/spigell/fitscore/internal/experience"
	"github.com/spigell/fitscore/internal/logger"
	"github.com/spigell/fitscore/internal/metrics"
	"github.com/spigell/fitscore/internal/scoring"
	"github.com/spigell/fitscore/internal/secrets"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

// newEvaluator builds the provider client wrapped with retries and metrics.
func newEvaluator(ctx context.Context, cfg *EvaluatorConfig, m *metrics.Metrics, log *zap.Logger) (ai.Evaluator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = providerGemini
	}

	keyEnv := "GEMINI_API_KEY"
	if provider == providerOpenAI {
		keyEnv = "OPENAI_API_KEY"
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  provider + " api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   keyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set evaluator.api-key-file or %s_API_KEY_FILE)", err, strings.ToUpper(provider))
	}

	evalLogger := logger.WithCommonFields(log, provider, cfg.Model)

	var evaluator ai.Evaluator
	switch provider {
	case providerGemini:
		evaluator, err = gemini.NewGenerator(ctx, apiKey, cfg.Model, evalLogger, cfg.MaxLogLength)
	case providerOpenAI:
		evaluator, err = openai.NewClient(apiKey, cfg.Model, evalLogger, cfg.MaxLogLength)
	default:
		return nil, fmt.Errorf("unsupported evaluator provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s evaluator: %w", provider, err)
	}

	// Metrics sit inside the retry loop so every attempt is counted.
	evaluator = m.InstrumentEvaluator(provider, evaluator)
	return ai.WithRetry(evaluator, cfg.MaxRetries+1, evalLogger), nil
}

// newMemo returns nil when caching is disabled.
func newMemo(ctx context.Context, cfg *CacheConfig, m *metrics.Metrics, log *zap.Logger) (*cache.Memo, error) {
	var store cache.Store
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "none":
		log.Info("evaluator cache disabled")
		return nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = cache.DefaultRedisPrefix
		}
		rs := cache.NewRedisStore(client, prefix, cfg.TTL)
		if err := rs.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("using redis cache", zap.String("addr", cfg.Redis.Addr), zap.String("prefix", prefix))
		store = rs
	default:
		store = cache.NewMemoryStore(cfg.Size, cfg.TTL)
	}

	return cache.NewMemo(store, log.Named("cache"), m.CacheLookup), nil
}

func newCalculator(evaluator ai.Evaluator, cfg *ScoringConfig, log *zap.Logger) (*experience.Calculator, error) {
	opts := []experience.Option{experience.WithLogger(log.Named("experience"))}
	if ref := strings.TrimSpace(cfg.ReferenceDate); ref != "" {
		ym, err := experience.ParseYearMonth(ref)
		if err != nil {
			return nil, fmt.Errorf("scoring.reference-date: %w", err)
		}
		opts = append(opts, experience.WithReferenceDate(ym))
	}
	return experience.NewCalculator(evaluator, opts...), nil
}

func newPipeline(ctx context.Context, config *Config, m *metrics.Metrics, log *zap.Logger) (*scoring.Pipeline, error) {
	evaluator, err := newEvaluator(ctx, config.Evaluator, m, log)
	if err != nil {
		return nil, err
	}

	memo, err := newMemo(ctx, config.Cache, m, log)
	if err != nil {
		return nil, err
	}

	calculator, err := newCalculator(evaluator, config.Scoring, log)
	if err != nil {
		return nil, err
	}

	return scoring.NewPipeline(evaluator, scoring.Options{
		Memo:       memo,
		Metrics:    m,
		Calculator: calculator,
		Logger:     log.Named("scoring"),
	}), nil
}
