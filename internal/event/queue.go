package event

import (
	"sync"
)

// Queue is a goroutine-safe FIFO of raised domain events.
//
// Events from one unit of work are enqueued together, preserving their
// raise order. Ordering is FIFO per process; there is no cross-unit-of-
// work guarantee beyond that.
type Queue struct {
	mu     sync.Mutex
	events []Event
	stage  chan<- Event
}

func NewQueue() *Queue {
	return &Queue{}
}

// NewStagedQueue returns a queue that additionally forwards every
// enqueued event to sink for durable staging. The forward is
// non-blocking: a full sink loses durability for that event, never
// dispatch.
func NewStagedQueue(sink chan<- Event) *Queue {
	return &Queue{stage: sink}
}

// Enqueue appends events to the tail of the queue in the given order.
// Call it only after the unit of work that raised them has committed.
func (q *Queue) Enqueue(events ...Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.events = append(q.events, events...)
	q.mu.Unlock()

	if q.stage != nil {
		for _, e := range events {
			select {
			case q.stage <- e:
			default:
			}
		}
	}
}

// Dequeue removes and returns the head of the queue. The second return
// value is false when the queue is empty.
func (q *Queue) Dequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}

	head := q.events[0]
	q.events = q.events[1:]
	return head, true
}

// Len returns the number of events awaiting dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
