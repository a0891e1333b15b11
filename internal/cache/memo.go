package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spigell/fitscore/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Observer is told about every lookup, used for hit/miss metrics.
type Observer func(namespace string, hit bool)

// Memo layers JSON encoding and duplicate call suppression over a Store.
// Concurrent lookups of the same missing key share one load.
type Memo struct {
	store   Store
	group   singleflight.Group
	observe Observer
	logger  *zap.Logger
}

// NewMemo creates a Memo. observe may be nil.
func NewMemo(store Store, log *zap.Logger, observe Observer) *Memo {
	if log == nil {
		log = zap.NewNop()
	}
	if observe == nil {
		observe = func(string, bool) {}
	}
	return &Memo{store: store, observe: observe, logger: log}
}

// Purge drops every memoized value.
func (m *Memo) Purge(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.store.Purge(ctx)
}

// Fetch returns the value cached under namespace and key, calling load on a miss.
// Failed loads are not cached. Store errors are logged and treated as misses.
// Every caller receives its own decoded copy. A nil Memo always calls load.
func Fetch[T any](ctx context.Context, m *Memo, namespace, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if m == nil {
		v, err := load(ctx)
		return v, false, err
	}

	full := namespace + ":" + key
	log := logger.WithFields(m.logger, logger.PhaseFields(namespace, key)...)

	raw, ok, err := m.store.Get(ctx, full)
	switch {
	case err != nil:
		log.Warn("cache lookup failed", zap.Error(err))
	case ok:
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			m.observe(namespace, true)
			log.Debug("cache hit")
			return cached, true, nil
		}
		log.Warn("discarding undecodable cache entry")
	}

	m.observe(namespace, false)

	// The shared load runs detached from any single caller's cancellation;
	// each caller still stops waiting when its own ctx is done.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(full, func() (any, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s cache entry: %w", namespace, err)
		}
		if err := m.store.Set(loadCtx, full, encoded); err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, false, res.Err
	}

	var fresh T
	if err := json.Unmarshal(res.Val.([]byte), &fresh); err != nil {
		return zero, false, fmt.Errorf("decode %s cache entry: %w", namespace, err)
	}
	return fresh, false, nil
}
