package jobs

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// JobType represents the kind of recalculation a job performs.
type JobType string

const (
	// JobTypeInvalidate is the forward-window recalculation run after a mutation.
	JobTypeInvalidate JobType = "invalidate"
	// JobTypeRebuild recalculates an account's whole timeline.
	JobTypeRebuild JobType = "rebuild"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed recalculations are
	// not retried; the account's timeline stays stale until the next one.
	JobStatusFailed JobStatus = "failed"
)

// RecalculationJob records one run of the balance calculator over a window
// of an account's timeline.
type RecalculationJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	Type JobType `json:"type"`

	// BankAccountID is the account whose timeline is recalculated.
	BankAccountID string `json:"bank_account_id"`

	// Reason names the mutation that caused the job, e.g. "event.update".
	Reason string `json:"reason,omitempty"`

	// From and To bound the recalculated window. They are unset on rebuild
	// jobs until the account's span is known.
	From *civil.Date `json:"from,omitempty"`
	To   *civil.Date `json:"to,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DaysWritten is the number of daily balance rows upserted.
	DaysWritten int `json:"days_written"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher enqueues recalculation jobs for asynchronous processing.
type Publisher interface {
	PublishRecalculation(ctx context.Context, job *RecalculationJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job *RecalculationJob) error

// JobStore keeps the recalculation job log.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RecalculationJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RecalculationJob, error)

	// ListJobs returns jobs newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecalculationJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	BankAccountID string
	Status        JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
