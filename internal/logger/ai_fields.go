package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the evaluator provider name.
	FieldProvider = "evaluator_provider"
	// FieldModel is the structured log field key for the evaluator model identifier.
	FieldModel = "evaluator_model"
	// FieldPhase is the structured log field key for the scoring phase.
	FieldPhase = "phase"
	// FieldCacheKey is the structured log field key for a content-hash cache key.
	FieldCacheKey = "cache_key"
)

// shortKeyLength is how much of a content hash is kept in log entries.
const shortKeyLength = 12

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns fields that describe the evaluator provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the evaluator provider and model to the logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// PhaseFields describes a single scoring phase lookup. Cache keys are shortened
// since full sha256 digests only add noise to console output.
func PhaseFields(phase, cacheKey string) []zap.Field {
	if len(cacheKey) > shortKeyLength {
		cacheKey = cacheKey[:shortKeyLength]
	}
	return StringFields(
		StringField{Key: FieldPhase, Value: phase},
		StringField{Key: FieldCacheKey, Value: cacheKey},
	)
}
