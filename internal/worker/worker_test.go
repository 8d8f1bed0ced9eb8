package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibecoding/demo2apk/internal/pipeline"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// fakeQueue is a minimal in-memory queue.Queue sufficient to exercise the
// pool's lease -> run -> complete loop without a real Redis instance.
type fakeQueue struct {
	mu       sync.Mutex
	waiting  []queue.Task
	jobs     map[string]*queue.Job
	progress []queue.Progress
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[string]*queue.Job)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task queue.Task) (*queue.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &queue.Job{Task: task, State: queue.StateWaiting}
	q.jobs[task.ID] = job
	q.waiting = append(q.waiting, task)
	return job, true, nil
}

func (q *fakeQueue) Lease(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return nil, nil
	}
	task := q.waiting[0]
	q.waiting = q.waiting[1:]
	job := q.jobs[task.ID]
	job.State = queue.StateActive
	return job, nil
}

func (q *fakeQueue) UpdateProgress(ctx context.Context, jobID string, p queue.Progress) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progress = append(q.progress, p)
	if job, ok := q.jobs[jobID]; ok {
		job.Progress = p
		if p.Percent > job.MaxPercent {
			job.MaxPercent = p.Percent
		}
	}
	return nil
}

func (q *fakeQueue) Complete(ctx context.Context, jobID string, result queue.Result) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[jobID]
	job.State = queue.StateCompleted
	job.Result = &result
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, jobID string, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[jobID]
	job.State = queue.StateFailed
	job.Result = &queue.Result{Success: false, Error: message}
	return nil
}

func (q *fakeQueue) Get(ctx context.Context, jobID string) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[jobID], nil
}

func (q *fakeQueue) Delete(ctx context.Context, jobID string) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[jobID]
	delete(q.jobs, jobID)
	return job, nil
}

func (q *fakeQueue) QueuePosition(ctx context.Context, jobID string) (int, int, error) {
	return 0, 0, nil
}

func (q *fakeQueue) RateLimitAllow(ctx context.Context, key string, capacity int, window time.Duration) (bool, time.Duration, error) {
	return true, 0, nil
}

func (q *fakeQueue) TrimRetention(ctx context.Context) error { return nil }

func (q *fakeQueue) Close() error { return nil }

// fakePipeline reports two progress ticks and returns a fixed result.
type fakePipeline struct {
	result pipeline.Result
}

func (p fakePipeline) Run(ctx context.Context, in pipeline.Input, progress pipeline.Progress) pipeline.Result {
	progress.Report("working", 50)
	progress.Report("done", 100)
	return p.result
}

func TestPool_LeasesRunsAndCompletesJob(t *testing.T) {
	q := newFakeQueue()
	q.Enqueue(context.Background(), queue.Task{ID: "task-1", Kind: queue.KindHTML, AppName: "App"})

	htmlPipeline := fakePipeline{result: pipeline.Result{Success: true, ArtifactPath: "/tmp/a.apk", ArtifactSize: 42}}
	zipPipeline := fakePipeline{result: pipeline.Result{Success: true}}

	pool := NewPool(q, storage.Roots{}, logger.Discard, 1, htmlPipeline, zipPipeline, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		job, _ := q.Get(context.Background(), "task-1")
		if job != nil && job.State == queue.StateCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	job, _ := q.Get(context.Background(), "task-1")
	if job.Result == nil || !job.Result.Success {
		t.Fatalf("expected successful result, got %+v", job.Result)
	}
	if job.Result.ArtifactSize != 42 {
		t.Fatalf("expected artifact size 42, got %d", job.Result.ArtifactSize)
	}
}

func TestPool_StopPreventsFurtherLeases(t *testing.T) {
	q := newFakeQueue()
	pool := NewPool(q, storage.Roots{}, logger.Discard, 1, fakePipeline{}, fakePipeline{}, true)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	pool.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop promptly")
	}
}

func TestPool_UnknownKindFailsJobWithoutPanicking(t *testing.T) {
	q := newFakeQueue()
	q.Enqueue(context.Background(), queue.Task{ID: "task-bad", Kind: queue.Kind("unknown"), AppName: "App"})

	pool := NewPool(q, storage.Roots{}, logger.Discard, 1, fakePipeline{}, fakePipeline{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		job, _ := q.Get(context.Background(), "task-bad")
		if job != nil && job.State == queue.StateFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never failed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
