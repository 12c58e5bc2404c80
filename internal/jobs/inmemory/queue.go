package inmemory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/balance-projection/internal/jobs"
)

// Queue is an in-memory recalculation queue for single-instance deployments.
//
// Jobs are sharded by bank account: every job for one account lands on the
// same worker and runs in publish order, while different accounts proceed in
// parallel. Two rebuilds of one account therefore never overlap.
type Queue struct {
	shards    []chan *jobs.RecalculationJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	started   bool
}

// NewQueue creates a queue with the given number of workers. Each worker owns
// a buffer of bufferSize jobs; PublishRecalculation blocks once the target
// shard is full.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 1
	}
	shards := make([]chan *jobs.RecalculationJob, workers)
	for i := range shards {
		shards[i] = make(chan *jobs.RecalculationJob, bufferSize)
	}
	return &Queue{
		shards:    shards,
		closeChan: make(chan struct{}),
		store:     store,
	}
}

func (q *Queue) shardFor(accountID string) chan *jobs.RecalculationJob {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// PublishRecalculation records job as pending and hands it to its account's
// worker.
func (q *Queue) PublishRecalculation(ctx context.Context, job *jobs.RecalculationJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("PublishRecalculation: queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishRecalculation: saving job: %w", err)
		}
	}

	select {
	case q.shardFor(job.BankAccountID) <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("PublishRecalculation: queue is closed")
	}
}

// Start launches one worker per shard. It does not block.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.closed:
		return fmt.Errorf("Start: queue is closed")
	case q.started:
		return fmt.Errorf("Start: queue already started")
	}
	q.started = true

	for _, shard := range q.shards {
		q.wg.Add(1)
		go q.worker(ctx, shard, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, shard <-chan *jobs.RecalculationJob, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-shard:
			q.run(ctx, job, handler)
		}
	}
}

// run executes job exactly once. A panicking handler fails the job instead of
// taking the worker down.
func (q *Queue) run(ctx context.Context, job *jobs.RecalculationJob, handler jobs.JobHandler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return handler(ctx, job)
	}()

	completed := time.Now()
	job.CompletedAt = &completed
	job.Status = jobs.JobStatusCompleted
	job.Error = ""
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	}
	q.save(ctx, job)
}

// save writes job to the log. The log is best effort.
func (q *Queue) save(ctx context.Context, job *jobs.RecalculationJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop closes the queue and waits for in-flight jobs. Jobs still buffered are
// dropped; they stay pending in the job log.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
