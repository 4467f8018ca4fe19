package source

import (
	"errors"
	"sync"

	"github.com/janelia-flyem/n5viewer/n5v"
)

// ErrClosedQueue is returned when work is submitted after the queue was closed.
var ErrClosedQueue = errors.New("fetch queue is closed")

// queuedJobs is the number of pending fetches a queue holds before Submit blocks.
const queuedJobs = 4096

// DefaultNumWorkers is half the usable CPUs, at least one.
func DefaultNumWorkers() int {
	n := n5v.NumCPU / 2
	if n < 1 {
		return 1
	}
	return n
}

// Queue is a bounded pool of workers that performs block fetches for every
// volatile source of a viewer session.  One queue is created per session and
// closed with it.
type Queue struct {
	jobs       chan func()
	numWorkers int
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue with n workers.  If n < 1, DefaultNumWorkers is used.
func NewQueue(n int) *Queue {
	if n < 1 {
		n = DefaultNumWorkers()
	}
	q := &Queue{
		jobs:       make(chan func(), queuedJobs),
		numWorkers: n,
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	n5v.Debugf("Started fetch queue with %d workers\n", n)
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		job()
	}
}

// NumWorkers returns the number of workers.
func (q *Queue) NumWorkers() int {
	return q.numWorkers
}

// Submit adds a job.  It blocks while the queue is full.
func (q *Queue) Submit(job func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosedQueue
	}
	q.jobs <- job
	return nil
}

// Close stops accepting jobs and waits for queued jobs to finish.  Jobs should
// check their own cancellation to end early.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
