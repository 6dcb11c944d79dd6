package ordmap

import "go.uber.org/zap"

// Set is an insertion-order-stable hash set, implemented as a Map[K,
// struct{}] the way spec.md §4.8 describes ("the hash map variant
// defines a key type in addition to the value type... a single type
// template").
type Set[K any] struct {
	m *Map[K, struct{}]
}

// NewSet returns an empty Set using hashFn/eqFn to hash and compare
// elements.
func NewSet[K any](hashFn func(K) uint64, eqFn func(K, K) bool, opts ...Option[K, struct{}]) *Set[K] {
	return &Set[K]{m: New[K, struct{}](hashFn, eqFn, opts...)}
}

// WithSetLogger attaches a zap.Logger to a Set's underlying Map.
func WithSetLogger[K any](l *zap.Logger) Option[K, struct{}] {
	return WithLogger[K, struct{}](l)
}

// Add inserts key if not already present.
func (s *Set[K]) Add(key K) { s.m.Set(key, struct{}{}) }

// Has reports whether key is a member of the set.
func (s *Set[K]) Has(key K) bool {
	_, ok := s.m.Get(key)
	return ok
}

// Remove deletes key, reporting whether it was present.
func (s *Set[K]) Remove(key K) bool { return s.m.Delete(key) }

// Len returns the number of elements.
func (s *Set[K]) Len() int { return s.m.Len() }

// Range visits every element in insertion order, stopping early if fn
// returns false.
func (s *Set[K]) Range(fn func(K) bool) {
	s.m.Range(func(k K, _ struct{}) bool { return fn(k) })
}
