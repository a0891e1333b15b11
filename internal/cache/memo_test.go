package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Level string             `json:"level"`
	Score map[string]float64 `json:"score"`
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("unavailable")
}
func (failingStore) Set(context.Context, string, []byte) error { return errors.New("unavailable") }
func (failingStore) Purge(context.Context) error               { return nil }

func TestFetchCachesValues(t *testing.T) {
	ctx := context.Background()

	var hits, misses int
	memo := NewMemo(NewMemoryStore(0, 0), nil, func(ns string, hit bool) {
		assert.Equal(t, "job_level", ns)
		if hit {
			hits++
		} else {
			misses++
		}
	})

	loads := 0
	load := func(context.Context) (entry, error) {
		loads++
		return entry{Level: "mid", Score: map[string]float64{"x": 1}}, nil
	}

	first, cached, err := Fetch(ctx, memo, "job_level", "hash", load)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := Fetch(ctx, memo, "job_level", "hash", load)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	second.Score["x"] = 99
	third, _, err := Fetch(ctx, memo, "job_level", "hash", load)
	require.NoError(t, err)
	assert.Equal(t, 1.0, third.Score["x"], "callers must receive independent copies")
}

func TestFetchDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(NewMemoryStore(0, 0), nil, nil)

	loads := 0
	fail := errors.New("evaluator down")
	_, _, err := Fetch(ctx, memo, "weights", "k", func(context.Context) (int, error) {
		loads++
		return 0, fail
	})
	require.ErrorIs(t, err, fail)

	v, cached, err := Fetch(ctx, memo, "weights", "k", func(context.Context) (int, error) {
		loads++
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, loads)
}

func TestFetchSharesInFlightLoads(t *testing.T) {
	ctx := context.Background()
	const callers = 8

	var misses atomic.Int32
	memo := NewMemo(NewMemoryStore(0, 0), nil, func(_ string, hit bool) {
		if !hit {
			misses.Add(1)
		}
	})

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		loads.Add(1)
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Fetch(ctx, memo, "subfields", "same", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return misses.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		assert.Equal(t, "done", v)
	}
}

func TestFetchCancelledCallerDoesNotFailOthers(t *testing.T) {
	var misses atomic.Int32
	memo := NewMemo(NewMemoryStore(0, 0), nil, func(_ string, hit bool) {
		if !hit {
			misses.Add(1)
		}
	})

	release := make(chan struct{})
	var loadErr atomic.Value
	load := func(ctx context.Context) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			loadErr.Store(err)
			return "", err
		}
		return "done", nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := Fetch(firstCtx, memo, "subfields", "same", load)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return misses.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan string, 1)
	go func() {
		v, _, err := Fetch(context.Background(), memo, "subfields", "same", load)
		assert.NoError(t, err)
		second <- v
	}()
	require.Eventually(t, func() bool { return misses.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "done", <-second)
	assert.Nil(t, loadErr.Load())

	v, cached, err := Fetch(context.Background(), memo, "subfields", "same", load)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "done", v)
}

func TestFetchToleratesStoreErrors(t *testing.T) {
	memo := NewMemo(failingStore{}, nil, nil)

	v, cached, err := Fetch(context.Background(), memo, "weights", "k", func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fresh", v)
}

func TestFetchNilMemoAlwaysLoads(t *testing.T) {
	var memo *Memo
	loads := 0
	for i := 0; i < 2; i++ {
		_, cached, err := Fetch(context.Background(), memo, "ns", "k", func(context.Context) (int, error) {
			loads++
			return 1, nil
		})
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Equal(t, 2, loads)
	assert.NoError(t, memo.Purge(context.Background()))
}

func TestMemoPurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 0)
	memo := NewMemo(store, nil, nil)

	_, _, err := Fetch(ctx, memo, "ns", "k", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	require.NoError(t, memo.Purge(ctx))
	assert.Equal(t, 0, store.Len())
}
