package queue

// Queue is the inbox used to hand work items to a session loop.
type Queue interface {
	// Enqueue adds an item to the end of the queue. It returns an error
	// when the queue is full.
	Enqueue(item interface{}) error
	// Size returns the number of pending items.
	Size() int
	// ReadAllMessages drains and returns all pending items in order.
	ReadAllMessages() ([]interface{}, error)
	// ClearQueue discards all pending items.
	ClearQueue()
}
