package projection

import (
	"context"
	"fmt"

	"github.com/dvloznov/balance-projection/internal/jobs"
)

// RebuildAccount recalculates the account's whole timeline now.
func (s *Service) RebuildAccount(ctx context.Context, accountID string) (*jobs.RecalculationJob, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.trigger.RebuildAccount(ctx, accountID)
}

// EnqueueRebuild queues a full rebuild of the account.
func (s *Service) EnqueueRebuild(ctx context.Context, accountID string) (*jobs.RecalculationJob, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("EnqueueRebuild: no job queue configured")
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	job := &jobs.RecalculationJob{
		Type:          jobs.JobTypeRebuild,
		BankAccountID: accountID,
		Reason:        "rebuild",
	}
	if err := s.publisher.PublishRecalculation(ctx, job); err != nil {
		return nil, fmt.Errorf("EnqueueRebuild: %w", err)
	}
	s.log.Info().Str("job_id", job.JobID).Str("bank_account_id", accountID).Msg("Rebuild job enqueued")

	// The queue owns job from here on; hand back the logged copy.
	return s.jobs.GetJob(ctx, job.JobID)
}

// RebuildAll recalculates every account.
func (s *Service) RebuildAll(ctx context.Context) ([]*jobs.RecalculationJob, error) {
	return s.trigger.RebuildAll(ctx)
}

// GetJob returns one recalculation job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*jobs.RecalculationJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListJobs returns recalculation jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RecalculationJob, error) {
	return s.jobs.ListJobs(ctx, filter)
}
