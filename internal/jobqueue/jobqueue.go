// Package jobqueue implements the single-worker FIFO queue that serializes
// reindex jobs in the background, with bounded retry on transient failures
// and coalescing against jobs already queued for the same path set.
package jobqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riffluxdb/rifflux/internal/errs"
)

// State is a job's lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateRetryWait State = "retry_wait"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const maxRetries = 3

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Func is the work a job performs. Its error, if any, is classified via
// errs.KindOf to decide whether the queue retries it.
type Func func(ctx context.Context) error

// Job is one unit of queued work and its observable lifecycle.
type Job struct {
	ID        string
	Paths     []string
	State     State
	Retries   int
	LastError errs.Kind
	SubmitAt  time.Time
	StartAt   time.Time
	EndAt     time.Time

	fn Func
}

// snapshot returns a copy safe to hand to callers outside the queue lock.
func (j *Job) snapshot() Job {
	cp := *j
	cp.fn = nil
	return cp
}

// Queue is the single-worker FIFO job queue.
type Queue struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    []string
	wake     chan struct{}
	shutdown chan struct{}
	done     chan struct{}
	closed   bool
	idSeq    int64
	now      func() time.Time
}

// New constructs a Queue and starts its single background worker.
func New() *Queue {
	q := &Queue{
		jobs:     make(map[string]*Job),
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go q.run()
	return q
}

// PathKey normalizes a path set into a stable coalescing key.
func PathKey(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Submit enqueues fn under the given paths (used for coalescing and
// reporting) and returns its job id. If a job with the same path key is
// already queued or running, Submit returns that job's id instead of
// enqueueing a duplicate.
func (q *Queue) Submit(paths []string, fn Func) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", errs.New(errs.Internal, "job queue is shut down")
	}

	key := PathKey(paths)
	for _, id := range q.order {
		j := q.jobs[id]
		if j.State == StateQueued || j.State == StateRunning || j.State == StateRetryWait {
			if PathKey(j.Paths) == key {
				return j.ID, nil
			}
		}
	}

	q.idSeq++
	id := "job-" + itoa(q.idSeq)
	j := &Job{ID: id, Paths: paths, State: StateQueued, SubmitAt: q.now(), fn: fn}
	q.jobs[id] = j
	q.order = append(q.order, id)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return id, nil
}

// Status returns a point-in-time snapshot of a job, or NotFound.
func (q *Queue) Status(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, errs.New(errs.NotFound, "job not found: "+id)
	}
	return j.snapshot(), nil
}

// List returns every job the queue has ever seen, oldest first.
func (q *Queue) List() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.jobs[id].snapshot())
	}
	return out
}

// Shutdown rejects new submissions, fails every queued job with kind
// "shutdown", lets any running job finish or fail naturally, then returns
// once the worker exits or timeout elapses.
func (q *Queue) Shutdown(timeout time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, id := range q.order {
		j := q.jobs[id]
		if j.State == StateQueued || j.State == StateRetryWait {
			j.State = StateFailed
			j.LastError = errs.Kind("shutdown")
			j.EndAt = q.now()
		}
	}
	q.mu.Unlock()

	close(q.shutdown)

	select {
	case <-q.done:
	case <-time.After(timeout):
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.shutdown:
			return
		default:
		}

		id, ok := q.nextRunnable()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.shutdown:
				return
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}
		q.runJob(id)
	}
}

// nextRunnable finds the oldest job that is queued, or whose retry_wait
// delay has elapsed.
func (q *Queue) nextRunnable() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		j := q.jobs[id]
		if j.State == StateQueued {
			return id, true
		}
		if j.State == StateRetryWait && !q.now().Before(j.StartAt) {
			return id, true
		}
	}
	return "", false
}

func (q *Queue) runJob(id string) {
	q.mu.Lock()
	j := q.jobs[id]
	j.State = StateRunning
	q.mu.Unlock()

	err := j.fn(context.Background())

	q.mu.Lock()
	defer q.mu.Unlock()

	if err == nil {
		j.State = StateCompleted
		j.EndAt = q.now()
		return
	}

	kind := errs.KindOf(err)
	j.LastError = kind
	if kind == errs.Transient && j.Retries < maxRetries {
		j.Retries++
		j.State = StateRetryWait
		j.StartAt = q.now().Add(backoffSchedule[j.Retries-1])
		return
	}

	j.State = StateFailed
	j.EndAt = q.now()
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
