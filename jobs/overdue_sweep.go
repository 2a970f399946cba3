package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/loans"
)

// LoanDefaulter is the slice of the loans service the sweep needs.
type LoanDefaulter interface {
	ListLoansInArrears(ctx context.Context, dueBefore time.Time) ([]loans.Loan, error)
	MarkDefaulted(ctx context.Context, loanID int64) (loans.Loan, error)
}

// OverdueSweepJob finds active loans whose installments have gone unpaid
// past the grace period and marks them DEFAULTED. Each loan is handled in
// its own transaction, so one failure never blocks the rest of the sweep.
type OverdueSweepJob struct {
	Service LoanDefaulter
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewOverdueSweepJob initialises the overdue sweep handler.
func NewOverdueSweepJob(service LoanDefaulter, logger *slog.Logger) *OverdueSweepJob {
	return &OverdueSweepJob{
		Service: service,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep run.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays <= 0 {
		payload.GraceDays = 90
	}

	start := j.now()
	cutoff := start.AddDate(0, 0, -payload.GraceDays)
	logger := j.logger().With(
		slog.Int("grace_days", payload.GraceDays),
		slog.Time("cutoff", cutoff),
	)
	logger.Info("starting overdue sweep")

	candidates, err := j.Service.ListLoansInArrears(ctx, cutoff)
	if err != nil {
		logger.Error("list loans in arrears", slog.Any("error", err))
		return err
	}

	defaulted := 0
	var sweepErr error
	for _, loan := range candidates {
		if _, err := j.Service.MarkDefaulted(ctx, loan.ID); err != nil {
			// A loan settled or closed since the listing is not an error.
			if fault.KindOf(err) == fault.KindStateConflict {
				continue
			}
			logger.Error("mark defaulted",
				slog.Int64("loan_id", loan.ID),
				slog.Any("error", err),
			)
			sweepErr = err
			continue
		}
		logger.Warn("loan defaulted", slog.Int64("loan_id", loan.ID))
		defaulted++
	}

	logger.Info("completed overdue sweep",
		slog.Int("candidates", len(candidates)),
		slog.Int("defaulted", defaulted),
		slog.Duration("duration", time.Since(start)),
	)
	return sweepErr
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueSweep))
	}
	return slog.Default().With(slog.String("job", TaskOverdueSweep))
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
