package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dreamboard/internal/bootstrap"
	"dreamboard/internal/events"
	"dreamboard/internal/infra"
	"dreamboard/internal/payments"
	"dreamboard/internal/payouts"
)

type worker struct {
	logger     infra.Logger
	dispatcher *events.Dispatcher
	executor   *payouts.Executor
	reconciler reconciler
	batch      int
	interval   time.Duration

	// reconcileEvery spaces reconciliation passes; zero disables them.
	reconcileEvery time.Duration
	lastReconcile  time.Time
	now            func() time.Time
}

type reconciler interface {
	Run(ctx context.Context) (payments.ReconcileResult, error)
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, logger, "worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: bootstrap failed")
	}
	defer container.Close()

	w := &worker{
		logger:     logger,
		dispatcher: container.Dispatcher,
		executor:   container.Executor,
		reconciler: container.Reconciler,
		batch:      max(cfg.EventBatchSize, 1),
		interval:   cfg.WorkerPollInterval,

		reconcileEvery: cfg.Reconciliation.Interval,
		now:            time.Now,
	}
	if w.interval <= 0 {
		w.interval = 2 * time.Second
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run alternates event delivery and the automated payout sweep until ctx is
// cancelled. A tick that found work runs again without waiting.
func (w *worker) Run(ctx context.Context) error {
	w.logger.Info().Int("batch", w.batch).Dur("interval", w.interval).Msg("worker: started")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		busy := w.tick(ctx)
		if busy {
			timer.Reset(0)
		} else {
			timer.Reset(w.interval)
		}
	}
}

func (w *worker) tick(ctx context.Context) bool {
	busy := false

	stats, err := w.dispatcher.ProcessDue(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("worker: event delivery failed")
	}
	if stats.Claimed > 0 {
		w.logger.Info().
			Int("claimed", stats.Claimed).
			Int("delivered", stats.Delivered).
			Int("retrying", stats.Retrying).
			Int("failed", stats.Failed).
			Msg("worker: events processed")
		busy = stats.Claimed >= w.batch
	}

	results, err := w.executor.ExecutePending(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("worker: payout sweep failed")
	}
	for _, res := range results {
		w.logger.Info().
			Str("payout_id", res.Payout.ID).
			Str("status", string(res.Payout.Status)).
			Str("reason", res.Reason).
			Bool("dream_board_paid_out", res.CampaignPaidOut).
			Msg("worker: payout executed")
	}
	if len(results) >= w.batch {
		busy = true
	}

	w.reconcile(ctx)
	return busy
}

// reconcile runs a payment reconciliation pass when the last one is older
// than reconcileEvery.
func (w *worker) reconcile(ctx context.Context) {
	if w.reconciler == nil || w.reconcileEvery <= 0 {
		return
	}
	now := w.now()
	if !w.lastReconcile.IsZero() && now.Sub(w.lastReconcile) < w.reconcileEvery {
		return
	}
	w.lastReconcile = now

	res, err := w.reconciler.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("worker: reconciliation failed")
		}
		return
	}
	total := res.Total()
	w.logger.Info().
		Int("scanned", total.Scanned).
		Int("updated", total.Updated).
		Int("failed", total.Failed).
		Int("unresolved", total.Unresolved).
		Int("mismatches", len(total.Mismatches)).
		Int("long_tail_scanned", res.LongTail.Scanned).
		Msg("worker: reconciliation pass")
}
