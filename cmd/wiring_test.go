package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/fitscore/internal/experience"
	"github.com/spigell/fitscore/internal/metrics"
)

func TestGetConfigValidates(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{
			name:   "defaults",
			values: map[string]any{},
		},
		{
			name:    "unknown provider",
			values:  map[string]any{"evaluator.provider": "claude"},
			wantErr: "Provider",
		},
		{
			name:    "redis without address",
			values:  map[string]any{"cache.backend": "redis"},
			wantErr: "Redis",
		},
		{
			name:    "minimum score out of range",
			values:  map[string]any{"scoring.minimum-score": 150},
			wantErr: "MinimumScore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.values {
				viper.Set(key, value)
			}
			t.Cleanup(func() {
				for key := range tt.values {
					viper.Set(key, nil)
				}
			})

			cfg, err := getConfig()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("getConfig: %v", err)
				}
				if cfg.Evaluator.Provider != providerGemini || cfg.Cache.TTL != 24*time.Hour {
					t.Fatalf("defaults not applied: %+v %+v", cfg.Evaluator, cfg.Cache)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewMemoBackends(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	m := metrics.NewMetrics()

	memo, err := newMemo(ctx, &CacheConfig{Backend: "none"}, m, log)
	if err != nil || memo != nil {
		t.Fatalf("none backend should disable caching, got %v %v", memo, err)
	}

	memo, err = newMemo(ctx, &CacheConfig{Backend: "memory", Size: 8, TTL: time.Minute}, m, log)
	if err != nil || memo == nil {
		t.Fatalf("memory backend: %v %v", memo, err)
	}

	srv := miniredis.RunT(t)
	memo, err = newMemo(ctx, &CacheConfig{Backend: "redis", Redis: &RedisConfig{Addr: srv.Addr()}}, m, log)
	if err != nil || memo == nil {
		t.Fatalf("redis backend: %v %v", memo, err)
	}

	addr := srv.Addr()
	srv.Close()
	if _, err := newMemo(ctx, &CacheConfig{Backend: "redis", Redis: &RedisConfig{Addr: addr}}, m, log); err == nil {
		t.Fatal("expected ping failure against a closed redis")
	}
}

func TestNewCalculatorReferenceDate(t *testing.T) {
	calc, err := newCalculator(nil, &ScoringConfig{ReferenceDate: "2024-02"}, zap.NewNop())
	if err != nil {
		t.Fatalf("newCalculator: %v", err)
	}
	want := experience.YearMonth{Year: 2024, Month: time.February}
	if calc.ReferenceDate() != want {
		t.Fatalf("reference date = %v, want %v", calc.ReferenceDate(), want)
	}

	calc, err = newCalculator(nil, &ScoringConfig{}, zap.NewNop())
	if err != nil || calc.ReferenceDate() != experience.DefaultReferenceDate {
		t.Fatalf("expected default reference date, got %v %v", calc.ReferenceDate(), err)
	}

	if _, err := newCalculator(nil, &ScoringConfig{ReferenceDate: "Feb 2024"}, zap.NewNop()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewEvaluatorRejectsMissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := newEvaluator(context.Background(), &EvaluatorConfig{Provider: "gemini", Model: "m"}, nil, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY_FILE") {
		t.Fatalf("expected api key hint, got %v", err)
	}
}
