package capture

import "sync"

// Queue is an unbounded FIFO of frames between the capture callback and the
// worker. Push never blocks; Pop blocks until a frame or the end-of-stream
// sentinel is available.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Frame
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame. Frames pushed after Close are dropped and Push
// reports false.
func (q *Queue) Push(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, f)
	q.cond.Signal()
	return true
}

// Pop returns the oldest frame. Once the queue is closed and every frame
// pushed before Close has been returned, Pop reports ok=false.
func (q *Queue) Pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Frame{}, false
	}
	f := q.items[0]
	q.items[0] = Frame{}
	q.items = q.items[1:]
	return f, true
}

// Close enqueues the sentinel and wakes a blocked Pop. It is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
