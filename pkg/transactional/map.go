// Package transactional provides collections that record reversible
// operations so a batch of mutations can be committed or rolled back as a
// unit.
//
// Every stateful layer of the SDK builds on these collections: a failed
// import or action batch must restore the exact pre-call state, and a
// successful one must discard its undo log. Commit and Rollback are O(n) in
// the number of uncommitted operations.
//
// The collections are not safe for concurrent use; callers synchronize
// externally.
package transactional

// revOp is a single reversible map operation.
type revOp[K comparable, V any] struct {
	key     K
	prev    V
	hadPrev bool
}

// Map is a map that tracks all mutations since the last Commit and can
// undo them with Rollback.
type Map[K comparable, V any] struct {
	inner map[K]V
	undo  []revOp[K, V]
}

// NewMap creates an empty transactional map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{inner: make(map[K]V)}
}

// NewMapFrom wraps existing entries. The initial entries are treated as
// already committed.
func NewMapFrom[K comparable, V any](inner map[K]V) *Map[K, V] {
	if inner == nil {
		inner = make(map[K]V)
	}
	return &Map[K, V]{inner: inner}
}

// Inner returns the underlying map for read-only iteration.
// Mutating the returned map directly bypasses the undo log.
func (m *Map[K, V]) Inner() map[K]V {
	return m.inner
}

// Get returns the value for k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.inner[k]
	return v, ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.inner)
}

// Set inserts or replaces the value for k.
func (m *Map[K, V]) Set(k K, v V) {
	prev, had := m.inner[k]
	m.undo = append(m.undo, revOp[K, V]{key: k, prev: prev, hadPrev: had})
	m.inner[k] = v
}

// Delete removes k. Deleting a missing key is a no-op.
func (m *Map[K, V]) Delete(k K) {
	prev, had := m.inner[k]
	if !had {
		return
	}
	m.undo = append(m.undo, revOp[K, V]{key: k, prev: prev, hadPrev: true})
	delete(m.inner, k)
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	for k, v := range m.inner {
		m.undo = append(m.undo, revOp[K, V]{key: k, prev: v, hadPrev: true})
	}
	clear(m.inner)
}

// Commit discards the undo log, making all mutations permanent.
func (m *Map[K, V]) Commit() {
	m.undo = nil
}

// Rollback undoes all mutations since the last Commit, in reverse order.
func (m *Map[K, V]) Rollback() {
	for i := len(m.undo) - 1; i >= 0; i-- {
		op := m.undo[i]
		if op.hadPrev {
			m.inner[op.key] = op.prev
		} else {
			delete(m.inner, op.key)
		}
	}
	m.undo = nil
}
