// Package recalc keeps persisted timelines current. Every mutation that can
// change an account's balances calls Trigger.Invalidate with the dates it
// touched; the trigger recalculates a forward window and records the run.
package recalc

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/balance-projection/internal/balance"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/logger"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

const (
	// DefaultWindowMonths is how far past the affected date a mutation
	// recalculates.
	DefaultWindowMonths = 6
	// DefaultChunkDays bounds one persisted calculation during a rebuild.
	DefaultChunkDays = 366
)

var tracer = otel.Tracer("github.com/dvloznov/balance-projection/internal/recalc")

// Calculator is the persisted half of the balance calculator.
type Calculator interface {
	Calculate(ctx context.Context, accountID string, r domain.DateRange, enabled scenario.EnabledSet) (*balance.Result, error)
}

// SpanStore reports the dates that hold data for an account.
type SpanStore interface {
	ListAccounts(ctx context.Context) ([]*domain.BankAccount, error)
	EventBounds(ctx context.Context, accountID string) (*domain.DateRange, error)
	ActualBalanceBounds(ctx context.Context, accountID string) (*domain.DateRange, error)
}

// Config tunes the trigger.
type Config struct {
	WindowMonths int
	ChunkDays    int
	// Workers bounds how many accounts RebuildAll recalculates at once.
	Workers int
}

// Trigger runs recalculations and records them in the job log.
type Trigger struct {
	calc  Calculator
	spans SpanStore
	jobs  jobs.JobStore
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// NewTrigger wires a trigger. jobStore may be nil to skip the job log.
func NewTrigger(calc Calculator, spans SpanStore, jobStore jobs.JobStore, cfg Config, log zerolog.Logger) *Trigger {
	if cfg.WindowMonths <= 0 {
		cfg.WindowMonths = DefaultWindowMonths
	}
	if cfg.ChunkDays <= 0 {
		cfg.ChunkDays = DefaultChunkDays
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Trigger{calc: calc, spans: spans, jobs: jobStore, cfg: cfg, log: log, now: time.Now}
}

// Window returns the range recalculated for a change touching [from, to]:
// from through the later of to and from plus the configured window.
func (t *Trigger) Window(from, to civil.Date) domain.DateRange {
	end := domain.AddMonthsClamped(from, t.cfg.WindowMonths)
	if to.After(end) {
		end = to
	}
	return domain.DateRange{Start: from, End: end}
}

// Invalidate recalculates the persisted timeline of accountID after a change
// touching [from, to] under the default scenario. It never returns an
// error: a failed run is logged with timeline_stale set and recorded as a
// failed job, and the caller's mutation stands.
func (t *Trigger) Invalidate(ctx context.Context, accountID string, from, to civil.Date, reason string) *jobs.RecalculationJob {
	if to.Before(from) {
		from, to = to, from
	}
	window := t.Window(from, to)

	job := t.newJob(jobs.JobTypeInvalidate, accountID, reason)
	job.From, job.To = &window.Start, &window.End

	ctx, span := tracer.Start(ctx, "recalc.Invalidate", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("reason", reason),
		attribute.String("window.start", window.Start.String()),
		attribute.String("window.end", window.End.String()),
	))
	defer span.End()

	err := t.run(ctx, job, func(ctx context.Context) (int, error) {
		return t.calculate(ctx, accountID, window)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return job
}

// RebuildAccount recalculates an account's whole timeline synchronously:
// from its first event or override through the last one plus the window.
func (t *Trigger) RebuildAccount(ctx context.Context, accountID string) (*jobs.RecalculationJob, error) {
	job := t.newJob(jobs.JobTypeRebuild, accountID, "rebuild")
	err := t.run(ctx, job, func(ctx context.Context) (int, error) {
		return t.rebuild(ctx, job)
	})
	return job, err
}

// HandleJob runs a queued job. It is the handler for the in-memory queue,
// which records the job's status itself.
func (t *Trigger) HandleJob(ctx context.Context, job *jobs.RecalculationJob) error {
	var (
		n   int
		err error
	)
	switch {
	case job.Type == jobs.JobTypeInvalidate && job.From != nil && job.To != nil:
		n, err = t.calculate(ctx, job.BankAccountID, domain.DateRange{Start: *job.From, End: *job.To})
	default:
		n, err = t.rebuild(ctx, job)
	}
	job.DaysWritten = n
	if err != nil {
		t.logStale(job, err)
	}
	return err
}

// RebuildAll rebuilds every account, several at a time. Accounts are
// independent, so one failure does not stop the others; the returned error
// reports how many failed.
func (t *Trigger) RebuildAll(ctx context.Context) ([]*jobs.RecalculationJob, error) {
	accounts, err := t.spans.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("RebuildAll: listing accounts: %w", err)
	}

	results := make([]*jobs.RecalculationJob, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, acct := range accounts {
		g.Go(func() error {
			job, _ := t.RebuildAccount(gctx, acct.ID)
			results[i] = job
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("RebuildAll: %w", err)
	}

	failed := 0
	for _, j := range results {
		if j.Status == jobs.JobStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("RebuildAll: %d of %d accounts failed", failed, len(results))
	}
	return results, nil
}

func (t *Trigger) rebuild(ctx context.Context, job *jobs.RecalculationJob) (int, error) {
	span, err := t.accountSpan(ctx, job.BankAccountID)
	if err != nil {
		return 0, err
	}
	if span == nil {
		return 0, nil
	}
	window := domain.DateRange{Start: span.Start, End: domain.AddMonthsClamped(span.End, t.cfg.WindowMonths)}
	job.From, job.To = &window.Start, &window.End
	return t.calculate(ctx, job.BankAccountID, window)
}

func (t *Trigger) accountSpan(ctx context.Context, accountID string) (*domain.DateRange, error) {
	events, err := t.spans.EventBounds(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("reading event bounds: %w", err)
	}
	overrides, err := t.spans.ActualBalanceBounds(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("reading override bounds: %w", err)
	}
	switch {
	case events == nil:
		return overrides, nil
	case overrides == nil:
		return events, nil
	}
	return &domain.DateRange{
		Start: domain.MinDate(events.Start, overrides.Start),
		End:   domain.MaxDate(events.End, overrides.End),
	}, nil
}

// calculate runs the calculator over r in chunks so a long rebuild does not
// hold one huge write transaction. Each chunk anchors on the balances before
// it, so the result matches a single pass.
func (t *Trigger) calculate(ctx context.Context, accountID string, r domain.DateRange) (int, error) {
	written := 0
	for start := r.Start; !start.After(r.End); {
		end := domain.MinDate(start.AddDays(t.cfg.ChunkDays-1), r.End)
		res, err := t.calc.Calculate(ctx, accountID, domain.DateRange{Start: start, End: end}, nil)
		if err != nil {
			return written, err
		}
		written += len(res.Rows)
		start = end.AddDays(1)
	}
	return written, nil
}

func (t *Trigger) newJob(typ jobs.JobType, accountID, reason string) *jobs.RecalculationJob {
	return &jobs.RecalculationJob{
		JobID:         uuid.New().String(),
		Type:          typ,
		BankAccountID: accountID,
		Reason:        reason,
		Status:        jobs.JobStatusPending,
		CreatedAt:     t.now(),
	}
}

// run executes fn for job, keeping the job log current.
func (t *Trigger) run(ctx context.Context, job *jobs.RecalculationJob, fn func(context.Context) (int, error)) error {
	started := t.now()
	job.StartedAt = &started
	job.Status = jobs.JobStatusRunning

	n, err := fn(ctx)

	completed := t.now()
	job.CompletedAt = &completed
	job.DaysWritten = n
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		t.logStale(job, err)
	} else {
		job.Status = jobs.JobStatusCompleted
		log := logger.ForAccount(t.log, job.BankAccountID)
		log.Debug().
			Str("job_id", job.JobID).
			Str("reason", job.Reason).
			Int("days_written", n).
			Dur("duration", completed.Sub(started)).
			Msg("Recalculation completed")
	}

	if t.jobs != nil {
		// Recording failures only warn.
		if serr := t.jobs.SaveJob(context.WithoutCancel(ctx), job); serr != nil {
			t.log.Warn().Err(serr).Str("job_id", job.JobID).Msg("Failed to record recalculation job")
		}
	}
	return err
}

func (t *Trigger) logStale(job *jobs.RecalculationJob, err error) {
	log := logger.ForAccount(t.log, job.BankAccountID)
	ev := log.Error().
		Err(err).
		Bool("timeline_stale", true).
		Str("job_id", job.JobID).
		Str("job_type", string(job.Type)).
		Str("reason", job.Reason)
	if job.From != nil && job.To != nil {
		ev = ev.Str("from", job.From.String()).Str("to", job.To.String())
	}
	ev.Msg("Recalculation failed; persisted timeline is stale")
}
