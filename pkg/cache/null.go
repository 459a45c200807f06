package cache

import (
	"context"
	"time"
)

// NullCache is what an integrations.Client uses until a memo is configured
// with WithCache. Every Get misses, so each stats lookup of a run goes
// upstream, and Set discards the payload. Nothing outlives the process
// either way.
type NullCache struct{}

var _ Cache = NullCache{}

// NewNullCache returns the disabled memo.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }
