package jobqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riffluxdb/rifflux/internal/errs"
)

func waitForState(t *testing.T, q *Queue, id string, want State, timeout time.Duration) Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := q.Status(id)
		require.NoError(t, err)
		if j.State == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach state %s", id, want)
	return Job{}
}

func TestSubmit_RunsAndCompletes(t *testing.T) {
	q := New()
	defer q.Shutdown(time.Second)

	id, err := q.Submit([]string{"a"}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	waitForState(t, q, id, StateCompleted, time.Second)
}

func TestSubmit_TerminalFailureIsNotRetried(t *testing.T) {
	q := New()
	defer q.Shutdown(time.Second)

	var calls int64
	id, err := q.Submit([]string{"a"}, func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return errs.New(errs.Internal, "boom")
	})
	require.NoError(t, err)

	j := waitForState(t, q, id, StateFailed, time.Second)
	assert.Equal(t, errs.Internal, j.LastError)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestSubmit_TransientRetriesThenSucceeds(t *testing.T) {
	q := New()
	defer q.Shutdown(3 * time.Second)

	var calls int64
	id, err := q.Submit([]string{"a"}, func(ctx context.Context) error {
		n := atomic.AddInt64(&calls, 1)
		if n < 2 {
			return errs.New(errs.Transient, "locked")
		}
		return nil
	})
	require.NoError(t, err)

	waitForState(t, q, id, StateCompleted, 3*time.Second)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestSubmit_CoalescesMatchingPathSet(t *testing.T) {
	q := New()
	defer q.Shutdown(time.Second)

	block := make(chan struct{})
	id1, err := q.Submit([]string{"a", "b"}, func(ctx context.Context) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	waitForState(t, q, id1, StateRunning, time.Second)

	id2, err := q.Submit([]string{"b", "a"}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "a submission matching a queued/running job's path set coalesces onto it")

	close(block)
}

func TestShutdown_FailsQueuedJobs(t *testing.T) {
	q := New()

	block := make(chan struct{})
	id1, _ := q.Submit([]string{"a"}, func(ctx context.Context) error {
		<-block
		return nil
	})
	waitForState(t, q, id1, StateRunning, time.Second)

	id2, _ := q.Submit([]string{"b"}, func(ctx context.Context) error { return nil })

	close(block)
	q.Shutdown(time.Second)

	j2, err := q.Status(id2)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, j2.State)
	assert.Equal(t, errs.Kind("shutdown"), j2.LastError)
}

func TestStatus_UnknownJobIsNotFound(t *testing.T) {
	q := New()
	defer q.Shutdown(time.Second)

	_, err := q.Status("nope")
	assert.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestList_ReturnsAllJobsOldestFirst(t *testing.T) {
	q := New()
	defer q.Shutdown(time.Second)

	id1, _ := q.Submit([]string{"a"}, func(ctx context.Context) error { return nil })
	id2, _ := q.Submit([]string{"z"}, func(ctx context.Context) error { return nil })

	waitForState(t, q, id2, StateCompleted, time.Second)

	jobs := q.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, id1, jobs[0].ID)
	assert.Equal(t, id2, jobs[1].ID)
}

func TestPathKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, PathKey([]string{"a", "b"}), PathKey([]string{"b", "a"}))
}
