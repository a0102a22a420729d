package model

// Ring is a fixed-size FIFO ring buffer. When the buffer is full, a push
// overwrites the oldest entry. Ring is not safe for concurrent use; owners
// guard it with their own mutex.
type Ring[T any] struct {
	buf  []T
	head int // index of the next write position
	size int // number of valid entries
}

// NewRing creates a Ring with the given capacity.
// If capacity <= 0, defaultCap is used.
func NewRing[T any](capacity, defaultCap int) *Ring[T] {
	if capacity <= 0 {
		capacity = defaultCap
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		buf: make([]T, capacity),
	}
}

// Push appends v, overwriting the oldest entry if full. It returns the
// evicted entry and true when an eviction happened.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		ok = true
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	return evicted, ok
}

// Len returns the number of valid entries.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the configured capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// index maps a chronological position (0 = oldest) to a buffer slot.
func (r *Ring[T]) index(i int) int {
	// oldest entry sits at (head - size + cap) % cap
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	return (start + i) % len(r.buf)
}

// At returns the i-th entry in chronological order (0 = oldest).
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.size {
		return zero, false
	}
	return r.buf[r.index(i)], true
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	return r.At(r.size - 1)
}

// Update applies fn to the i-th entry in chronological order in place.
func (r *Ring[T]) Update(i int, fn func(*T)) bool {
	if i < 0 || i >= r.size {
		return false
	}
	fn(&r.buf[r.index(i)])
	return true
}

// Items returns a copy of the entries in chronological order (oldest first).
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[r.index(i)]
	}
	return out
}
