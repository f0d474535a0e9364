package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
)

// SweepSummary reports the outcome of one reconciler pass.
type SweepSummary struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// CompletionReconciler moves paid bookings whose stay has ended to completed.
// Each booking is handled in its own transaction so one failure never blocks
// the rest of the sweep.
type CompletionReconciler struct {
	store     Store
	publisher EventPublisher
	clock     domain.Clock
	logger    *zap.Logger
}

// NewCompletionReconciler creates a CompletionReconciler.
func NewCompletionReconciler(store Store, publisher EventPublisher, clock domain.Clock, logger *zap.Logger) *CompletionReconciler {
	return &CompletionReconciler{store: store, publisher: publisher, clock: clock, logger: logger}
}

// Run performs one completion sweep.
func (r *CompletionReconciler) Run(ctx context.Context) (*SweepSummary, error) {
	now := r.clock()
	candidates, err := r.store.Bookings().FindPaidCheckedOutBefore(ctx, now)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{Selected: len(candidates)}
	for _, candidate := range candidates {
		completed, err := r.completeOne(ctx, candidate, now)
		switch {
		case err != nil:
			summary.Failed++
			r.logger.Error("completion sweep: booking failed",
				zap.String("booking_id", candidate.ID().String()), zap.Error(err))
		case completed == nil:
			summary.Skipped++
		default:
			summary.Succeeded++
			if err := r.publisher.BookingCompleted(ctx, completed); err != nil {
				r.logger.Warn("failed to publish booking completed event",
					zap.String("booking_id", completed.ID().String()), zap.Error(err))
			}
		}
	}

	r.logger.Info("completion sweep finished",
		zap.Int("selected", summary.Selected),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// completeOne re-reads and completes a single booking inside its own
// transaction. Returns (nil, nil) when the booking no longer qualifies.
func (r *CompletionReconciler) completeOne(ctx context.Context, candidate *bookingDomain.Booking, now time.Time) (*bookingDomain.Booking, error) {
	var completed *bookingDomain.Booking
	err := r.store.WithinTx(ctx, func(tx Store) error {
		current, err := tx.Bookings().FindByID(ctx, candidate.ID())
		if err != nil {
			return err
		}
		// Re-check under the transaction: someone may have mutated it since
		// the candidate query.
		if current.Status() != bookingDomain.StatusPaid || !current.CheckOut().Before(now) {
			return nil
		}
		if err := current.Complete(now); err != nil {
			return err
		}
		current.IncrementVersion()
		if err := tx.Bookings().Update(ctx, current); err != nil {
			return err
		}
		completed = current
		return nil
	})
	return completed, err
}

// PaymentTimeoutReconciler cancels confirmed bookings whose payment deadline
// has passed and refunds any promotion consumed for them. The refund runs in
// its own transaction before the cancellation so a refund failure is retried
// on the next sweep rather than blocking the cancel.
type PaymentTimeoutReconciler struct {
	store     Store
	ledger    *PromotionLedger
	publisher EventPublisher
	window    time.Duration
	clock     domain.Clock
	logger    *zap.Logger
}

// NewPaymentTimeoutReconciler creates a PaymentTimeoutReconciler. The window
// is how long a confirmed booking may await payment.
func NewPaymentTimeoutReconciler(store Store, ledger *PromotionLedger, publisher EventPublisher, window time.Duration, clock domain.Clock, logger *zap.Logger) *PaymentTimeoutReconciler {
	return &PaymentTimeoutReconciler{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		window:    window,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one payment-timeout sweep.
func (r *PaymentTimeoutReconciler) Run(ctx context.Context) (*SweepSummary, error) {
	now := r.clock()
	candidates, err := r.store.Bookings().FindConfirmedBefore(ctx, now.Add(-r.window))
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{Selected: len(candidates)}
	for _, candidate := range candidates {
		cancelled, err := r.timeoutOne(ctx, candidate, now)
		switch {
		case err != nil:
			summary.Failed++
			r.logger.Error("payment-timeout sweep: booking failed",
				zap.String("booking_id", candidate.ID().String()), zap.Error(err))
		case cancelled == nil:
			summary.Skipped++
		default:
			summary.Succeeded++
			if err := r.publisher.BookingCancelled(ctx, cancelled); err != nil {
				r.logger.Warn("failed to publish booking cancelled event",
					zap.String("booking_id", cancelled.ID().String()), zap.Error(err))
			}
		}
	}

	r.logger.Info("payment-timeout sweep finished",
		zap.Int("selected", summary.Selected),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// timeoutOne refunds and cancels a single overdue booking. The refund is
// best-effort: a refund failure is logged and the cancellation still runs.
// Returns (nil, nil) when the booking no longer qualifies.
func (r *PaymentTimeoutReconciler) timeoutOne(ctx context.Context, candidate *bookingDomain.Booking, now time.Time) (*bookingDomain.Booking, error) {
	err := r.store.WithinTx(ctx, func(tx Store) error {
		_, err := r.ledger.Refund(ctx, tx, candidate.ID())
		return err
	})
	if err != nil {
		r.logger.Error("payment-timeout sweep: promotion refund failed, cancelling anyway",
			zap.String("booking_id", candidate.ID().String()), zap.Error(err))
	}

	var cancelled *bookingDomain.Booking
	err = r.store.WithinTx(ctx, func(tx Store) error {
		current, err := tx.Bookings().FindByID(ctx, candidate.ID())
		if err != nil {
			return err
		}
		if current.Status() != bookingDomain.StatusConfirmed || !current.PaymentDeadlineExceeded(now, r.window) {
			return nil
		}
		if err := current.Cancel(bookingDomain.CancelledBySystem, bookingDomain.PaymentTimeoutReason, now); err != nil {
			return err
		}
		current.IncrementVersion()
		if err := tx.Bookings().Update(ctx, current); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	return cancelled, err
}
