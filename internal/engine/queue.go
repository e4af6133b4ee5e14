package engine

import "sync"

// AdmissionQueue is a FIFO sequence of job identifiers awaiting dispatch.
// It carries ids only, never payloads: a cancellation racing with a dequeue
// is resolved by the job store's compare-and-set, so handing out an id for
// a job that was cancelled in the meantime is an expected, cheap no-op.
type AdmissionQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ids    []string
	closed bool
}

func NewAdmissionQueue() *AdmissionQueue {
	q := &AdmissionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an id to the tail. Retried jobs rejoin here, losing
// their original position. No-op after Close.
func (q *AdmissionQueue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.ids = append(q.ids, id)
	q.cond.Signal()
}

// Dequeue blocks until an id is available or the queue is closed. The
// second return value is false once the queue has been closed.
func (q *AdmissionQueue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.ids) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// Remove deletes a not-yet-dispatched id. It is a no-op returning false if
// the id has already been dequeued.
func (q *AdmissionQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of pending ids.
func (q *AdmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Positions returns the 1-based queue rank of every pending id.
func (q *AdmissionQueue) Positions() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	positions := make(map[string]int, len(q.ids))
	for i, id := range q.ids {
		positions[id] = i + 1
	}
	return positions
}

// Close wakes all blocked consumers. Pending ids are discarded; jobs stay
// queued in the store and are not lost.
func (q *AdmissionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
