package ai

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/fitscore/internal/logger"
	"github.com/spigell/fitscore/internal/utils"
	"go.uber.org/zap"
)

// maxRetryAfter caps how long a provider may ask us to wait before we give up.
const maxRetryAfter = 30 * time.Second

var backoff = func(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// WithRetry retries temporary evaluation failures with exponential backoff.
// attempts is the total number of calls made, values below 2 disable retries.
func WithRetry(next Evaluator, attempts int, log *zap.Logger) Evaluator {
	if attempts < 2 {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}

	return EvaluatorFunc(func(ctx context.Context, req Request) (string, error) {
		var lastErr error
		for attempt := 0; attempt < attempts; attempt++ {
			out, err := next.Evaluate(ctx, req)
			if err == nil {
				return out, nil
			}
			lastErr = err

			if !IsTemporary(err) || attempt == attempts-1 {
				break
			}

			delay := backoff(attempt)
			var evalErr *EvaluationError
			if errors.As(err, &evalErr) && evalErr.RetryAfter > 0 {
				if evalErr.RetryAfter > maxRetryAfter {
					break
				}
				delay = evalErr.RetryAfter
			}

			log.Warn("retrying evaluator call",
				append(logger.PhaseFields(req.Phase.String(), ""),
					zap.Int("attempt", attempt+1),
					zap.Duration("delay", delay),
					zap.Error(err),
				)...,
			)

			if err := utils.WaitFor(ctx, delay); err != nil {
				return "", err
			}
		}
		return "", lastErr
	})
}
