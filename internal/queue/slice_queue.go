package queue

// sliceQueue implements the Queue interface using a slice.
type sliceQueue[T any] struct {
	items []T
	head  int
}

// NewSliceQueue creates a new slice backed queue.
func NewSliceQueue[T any](prealloc int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds items to the tail of the queue.
func (q *sliceQueue[T]) Enqueue(items ...T) {
	if q.head > 0 && q.head == len(q.items) {
		q.Reset()
	}
	q.items = append(q.items, items...)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *sliceQueue[T]) Dequeue() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *sliceQueue[T]) Peek() (T, bool) {
	if q.IsEmpty() {
		var zero T
		return zero, false
	}

	return q.items[q.head], true
}

// Reset resets the queue to an empty state.
func (q *sliceQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
	q.head = 0
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *sliceQueue[T]) IsEmpty() bool {
	return q.head == len(q.items)
}

// Length returns the number of items in the queue.
func (q *sliceQueue[T]) Length() int {
	return len(q.items) - q.head
}
