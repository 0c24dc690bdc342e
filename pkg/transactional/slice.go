package transactional

// sliceOp is a single reversible slice operation.
type sliceOp[T any] struct {
	index   int
	removed T
	isAdd   bool
}

// Slice is a slice that tracks all mutations since the last Commit and can
// undo them with Rollback.
type Slice[T any] struct {
	inner []T
	undo  []sliceOp[T]
}

// NewSlice creates an empty transactional slice.
func NewSlice[T any]() *Slice[T] {
	return &Slice[T]{}
}

// NewSliceFrom wraps existing elements. The initial elements are treated as
// already committed.
func NewSliceFrom[T any](inner []T) *Slice[T] {
	return &Slice[T]{inner: inner}
}

// Inner returns the underlying slice for read-only iteration.
func (s *Slice[T]) Inner() []T {
	return s.inner
}

// Len returns the number of elements.
func (s *Slice[T]) Len() int {
	return len(s.inner)
}

// Get returns the element at i.
func (s *Slice[T]) Get(i int) (T, bool) {
	if i < 0 || i >= len(s.inner) {
		var zero T
		return zero, false
	}
	return s.inner[i], true
}

// Push appends v.
func (s *Slice[T]) Push(v T) {
	s.undo = append(s.undo, sliceOp[T]{index: len(s.inner), isAdd: true})
	s.inner = append(s.inner, v)
}

// Extend appends all elements of other.
func (s *Slice[T]) Extend(other []T) {
	for i := range other {
		s.undo = append(s.undo, sliceOp[T]{index: len(s.inner) + i, isAdd: true})
	}
	s.inner = append(s.inner, other...)
}

// Clear removes all elements.
func (s *Slice[T]) Clear() {
	for i := len(s.inner) - 1; i >= 0; i-- {
		s.undo = append(s.undo, sliceOp[T]{index: i, removed: s.inner[i]})
	}
	s.inner = s.inner[:0]
}

// Retain keeps only the elements for which keep returns true.
func (s *Slice[T]) Retain(keep func(T) bool) {
	for i := len(s.inner) - 1; i >= 0; i-- {
		if !keep(s.inner[i]) {
			s.undo = append(s.undo, sliceOp[T]{index: i, removed: s.inner[i]})
		}
	}
	kept := s.inner[:0]
	for _, v := range s.inner {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	s.inner = kept
}

// Commit discards the undo log, making all mutations permanent.
func (s *Slice[T]) Commit() {
	s.undo = nil
}

// Rollback undoes all mutations since the last Commit, in reverse order.
func (s *Slice[T]) Rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		op := s.undo[i]
		if op.isAdd {
			s.inner = append(s.inner[:op.index], s.inner[op.index+1:]...)
		} else {
			s.inner = append(s.inner[:op.index], append([]T{op.removed}, s.inner[op.index:]...)...)
		}
	}
	s.undo = nil
}
