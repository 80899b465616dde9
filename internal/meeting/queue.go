package meeting

import (
	"sync"
)

// sendQueue holds encoded messages until a connection can take them.
type sendQueue struct {
	mutex  sync.Mutex
	items  [][]byte
	notify chan struct{}
}

func newSendQueue() *sendQueue {
	return &sendQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *sendQueue) push(data []byte) {
	q.mutex.Lock()
	q.items = append(q.items, data)
	q.mutex.Unlock()
	q.wake()
}

// unshift puts back a message that failed to send so it goes out first
// on the next connection.
func (q *sendQueue) unshift(data []byte) {
	q.mutex.Lock()
	q.items = append([][]byte{data}, q.items...)
	q.mutex.Unlock()
	q.wake()
}

func (q *sendQueue) pop() ([]byte, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	data := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return data, true
}

func (q *sendQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *sendQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
