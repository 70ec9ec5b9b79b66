package fetcher

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"adoinventory/internal/outcome"
)

// DefaultMemoSize bounds the number of remembered lookups per run.
const DefaultMemoSize = 4096

// Memo dedupes identical lookups within a run. Concurrent callers for the same
// key share one in-flight call, and successful results are kept in a bounded
// LRU. Failed outcomes are never remembered.
type Memo[V any] struct {
	group singleflight.Group
	cache *lru.Cache[string, V]
}

func NewMemo[V any](size int) (*Memo[V], error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("memo: %w", err)
	}
	return &Memo[V]{cache: cache}, nil
}

type memoResult[V any] struct {
	value V
	out   outcome.Outcome
}

// Do returns the remembered value for key or runs fn once for all concurrent callers.
func (m *Memo[V]) Do(key string, fn func() (V, outcome.Outcome)) (V, outcome.Outcome) {
	if v, ok := m.cache.Get(key); ok {
		return v, outcome.OK(200)
	}
	res, _, _ := m.group.Do(key, func() (any, error) {
		v, o := fn()
		if o.OK() {
			m.cache.Add(key, v)
		}
		return memoResult[V]{value: v, out: o}, nil
	})
	r := res.(memoResult[V])
	return r.value, r.out
}

// Len reports the number of remembered values.
func (m *Memo[V]) Len() int {
	return m.cache.Len()
}
