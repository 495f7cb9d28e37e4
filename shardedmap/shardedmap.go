// Package shardedmap is a concurrent, sharded key/value map
// needs for the UTXO pipeline: many goroutines inserting and removing
// entries for different keys at once, with no iteration in the hot
// path.
//
// The design is lifted directly from the vendored
// github.com/bsv-blockchain/go-tx-map SplitSwissMap: a fixed number of
// buckets, each an independent github.com/dolthub/swiss.Map guarded by
// its own mutex, with the bucket chosen by hashing the key. Splitting
// into many small maps instead of one big map behind one lock is what
// lets concurrent inserts for different keys proceed without
// contending on the same lock.
package shardedmap

import (
	"sync"

	"github.com/dolthub/maphash"
	"github.com/dolthub/swiss"
)

// defaultBuckets matches SplitSwissMap's default. It is large enough
// that, for the UTXO amount map's access pattern (keys derived from
// transaction hashes), contention between unrelated keys is rare
// without costing much idle memory per shard.
const defaultBuckets = 1024

// Map is a sharded concurrent map from K to V. The zero value is not
// usable; construct one with New.
type Map[K comparable, V any] struct {
	shards  []shard[K, V]
	hasher  maphash.Hasher[K]
	nShards uint64
}

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  *swiss.Map[K, V]
}

// New builds a Map with sizeHint entries divided evenly across buckets
// shards. A buckets of 0 selects defaultBuckets.
func New[K comparable, V any](sizeHint int, buckets int) *Map[K, V] {
	if buckets <= 0 {
		buckets = defaultBuckets
	}
	perShard := uint32(sizeHint / buckets)
	if perShard == 0 {
		perShard = 1
	}

	m := &Map[K, V]{
		shards:  make([]shard[K, V], buckets),
		hasher:  maphash.NewHasher[K](),
		nShards: uint64(buckets),
	}
	for i := range m.shards {
		m.shards[i].m = swiss.NewMap[K, V](perShard)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	idx := m.hasher.Hash(key) % m.nShards
	return &m.shards[idx]
}

// Insert stores val under key, overwriting any existing value.
func (m *Map[K, V]) Insert(key K, val V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.m.Put(key, val)
	s.mu.Unlock()
}

// Remove deletes key from the map and returns the value it held, or
// the zero value and false if key was not present.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.m.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	s.m.Delete(key)
	return val, true
}

// Get returns the value stored under key, if any, without removing it.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Get(key)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Has(key)
}

// Len returns the total number of entries across all shards. It locks
// and unlocks each shard in turn, so a concurrent writer can make the
// result stale as soon as it's returned; it is meant for diagnostics,
// not for decisions on the hot path.
func (m *Map[K, V]) Len() int {
	total := 0
	for i := range m.shards {
		m.shards[i].mu.Lock()
		total += m.shards[i].m.Count()
		m.shards[i].mu.Unlock()
	}
	return total
}
