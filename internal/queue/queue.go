package queue

// Queue is a FIFO queue of T. Implementations are not safe for concurrent use.
type Queue[T any] interface {
	// Enqueue adds items to the tail of the queue.
	Enqueue(items ...T)
	// Dequeue removes and returns the item at the head of the queue, false when the queue is empty.
	Dequeue() (T, bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (T, bool)
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
