// Package cache memoizes evaluator-backed phase results under content hashes.
package cache

import "context"

// Store is a byte-oriented key/value backend. A miss is reported with ok=false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) error
}
