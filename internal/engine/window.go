package engine

// window is a bounded buffer over a logically unbounded sequence. It
// tracks the absolute index of its first retained element; appending
// past capacity silently drops elements from the front.
type window[T any] struct {
	start    int
	capacity int
	buf      []T
}

func newWindow[T any](start, capacity int) *window[T] {
	return &window[T]{start: start, capacity: capacity}
}

// Add appends one element, pruning the front when over capacity.
func (w *window[T]) Add(v T) {
	w.buf = append(w.buf, v)
	if len(w.buf) > w.capacity {
		overflow := len(w.buf) - w.capacity
		w.buf = append(w.buf[:0], w.buf[overflow:]...)
		w.start += overflow
	}
}

// Start returns the absolute index of the first retained element.
func (w *window[T]) Start() int { return w.start }

// Len returns the number of retained elements.
func (w *window[T]) Len() int { return len(w.buf) }

// Get returns the element at the given absolute index. The caller must
// ensure Start() <= index < Start()+Len().
func (w *window[T]) Get(index int) T {
	return w.buf[index-w.start]
}

// Clear drops all elements and resets the start index.
func (w *window[T]) Clear() {
	w.buf = nil
	w.start = 0
}
