package core

import (
	"sync"
)

type writeRequest struct {
	report []byte
	name   string
	result chan error
}

// writeQueue is an unbounded FIFO; producers never block.
type writeQueue struct {
	mutex  sync.Mutex
	items  []*writeRequest
	closed bool
	notify chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *writeQueue) push(r *writeRequest) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrNotConnected
	}
	q.items = append(q.items, r)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *writeQueue) pop() (*writeRequest, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r, true
}

// close rejects further pushes and fails everything still queued.
func (q *writeQueue) close() {
	q.mutex.Lock()
	q.closed = true
	q.mutex.Unlock()
	q.fail(ErrNotConnected)
}

// fail answers everything currently queued with err. Later pushes are
// still accepted.
func (q *writeQueue) fail(err error) {
	q.mutex.Lock()
	pending := q.items
	q.items = nil
	q.mutex.Unlock()

	for _, r := range pending {
		r.result <- err
	}
}
