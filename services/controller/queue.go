package controller

import (
	"container/heap"
	"sync"
	"time"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
)

const (
	putRetries    = 10
	putRetrySleep = 200 * time.Millisecond
)

// command is one queued unit of work.
type command struct {
	description string
	listener    interfaces.MailListener
	run         func()
	foreground  bool
	sequence    uint64
}

// priorityClass maps the foreground flag to an explicit ordering key:
// lower class runs first.
func (c *command) priorityClass() int {
	if c.foreground {
		return 0
	}
	return 1
}

// less orders by (priorityClass, sequence) lexicographically. This is a
// total order, so no further tie-breaking is needed.
func (c *command) less(other *command) bool {
	if c.priorityClass() != other.priorityClass() {
		return c.priorityClass() < other.priorityClass()
	}
	return c.sequence < other.sequence
}

type commandHeap []*command

func (h commandHeap) Len() int            { return len(h) }
func (h commandHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h commandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *commandHeap) Push(x interface{}) { *h = append(*h, x.(*command)) }

func (h *commandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// commandQueue is a priority blocking queue drained by a single worker
// goroutine. A failing unit of work never halts the worker.
type commandQueue struct {
	log logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	items  commandHeap
	seq    uint64
	closed bool

	workerStarted bool
	workerDone    chan struct{}
}

func newCommandQueue(log logger.Logger) *commandQueue {
	q := &commandQueue{
		log:        log,
		workerDone: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues a command, retrying briefly on a closed queue. Failure to
// accept after the retries indicates unrecoverable internal state and
// panics; the process is better off dead than silently dropping work.
func (q *commandQueue) Put(c *command) {
	for attempt := 0; attempt < putRetries; attempt++ {
		if q.tryPut(c) {
			return
		}
		time.Sleep(putRetrySleep)
	}
	panic("command queue rejected work after retries: " + c.description)
}

func (q *commandQueue) tryPut(c *command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	c.sequence = q.seq
	q.seq++
	heap.Push(&q.items, c)
	q.cond.Signal()
	return true
}

// take blocks until a command is available or the queue is closed.
func (q *commandQueue) take() (*command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*command), true
}

// StartWorker launches the single consumer goroutine.
func (q *commandQueue) StartWorker() {
	q.mu.Lock()
	if q.workerStarted {
		q.mu.Unlock()
		return
	}
	q.workerStarted = true
	q.mu.Unlock()

	go func() {
		defer close(q.workerDone)
		for {
			c, ok := q.take()
			if !ok {
				return
			}
			q.execute(c)
		}
	}()
}

func (q *commandQueue) execute(c *command) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("Command '%s' failed: %v", c.description, r)
		}
	}()

	q.log.Debugf("Running command '%s', foreground=%v", c.description, c.foreground)
	c.run()
	q.log.Debugf("Done running command '%s'", c.description)
}

// Close stops accepting work, wakes the worker, and waits for it to drain
// the current item.
func (q *commandQueue) Close() {
	q.mu.Lock()
	q.closed = true
	started := q.workerStarted
	q.cond.Broadcast()
	q.mu.Unlock()

	if started {
		<-q.workerDone
	}
}

// Len reports the number of queued commands. Used by status reporting and
// tests.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
