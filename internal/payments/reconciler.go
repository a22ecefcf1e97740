package payments

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
)

// ReconcileAction is what a reconciliation pass does with one contribution.
type ReconcileAction string

const (
	ReconcileUpdate   ReconcileAction = "update"
	ReconcileMismatch ReconcileAction = "mismatch"
	ReconcileSkip     ReconcileAction = "skip"
)

// ReconcileDecision is the outcome of comparing a contribution with the
// provider's record of it.
type ReconcileDecision struct {
	Action ReconcileAction
	// Status is the target status of an update.
	Status domain.PaymentStatus
	// Reason explains a skip: "pending" or "unknown".
	Reason string
}

// DecideReconciliation compares a provider status and amount with the total
// the payer was charged. A completion is only applied when the amounts match.
func DecideReconciliation(status domain.PaymentStatus, expectedCents int64, receivedCents *int64) ReconcileDecision {
	switch status {
	case domain.PaymentCompleted:
		if receivedCents == nil || *receivedCents != expectedCents {
			return ReconcileDecision{Action: ReconcileMismatch, Status: status}
		}
		return ReconcileDecision{Action: ReconcileUpdate, Status: domain.PaymentCompleted}
	case domain.PaymentFailed:
		return ReconcileDecision{Action: ReconcileUpdate, Status: domain.PaymentFailed}
	case domain.PaymentProcessing:
		return ReconcileDecision{Action: ReconcileSkip, Reason: "pending"}
	}
	return ReconcileDecision{Action: ReconcileSkip, Reason: "unknown"}
}

// ReconcileMismatchEntry records a completed provider payment whose amount
// does not match the contribution.
type ReconcileMismatchEntry struct {
	Provider      domain.PaymentProvider `json:"provider" yaml:"provider"`
	PaymentRef    string                 `json:"paymentRef" yaml:"payment_ref"`
	ExpectedCents int64                  `json:"expectedCents" yaml:"expected_cents"`
	ReceivedCents *int64                 `json:"receivedCents" yaml:"received_cents"`
	Status        domain.PaymentStatus   `json:"status" yaml:"status"`
}

// PassResult counts the outcome of one reconciliation phase.
type PassResult struct {
	Scanned    int
	Updated    int
	Failed     int
	Unresolved int
	Mismatches []ReconcileMismatchEntry
}

func (p PassResult) add(o PassResult) PassResult {
	p.Scanned += o.Scanned
	p.Updated += o.Updated
	p.Failed += o.Failed
	p.Unresolved += o.Unresolved
	p.Mismatches = append(p.Mismatches, o.Mismatches...)
	return p
}

// ReconcileResult is the outcome of a full run: the primary window plus the
// long tail behind it.
type ReconcileResult struct {
	Primary       PassResult
	LongTail      PassResult
	LookbackStart time.Time
	Cutoff        time.Time
	LongTailStart time.Time
}

// Total sums both phases.
func (r ReconcileResult) Total() PassResult {
	return PassResult{}.add(r.Primary).add(r.LongTail)
}

// ReconcilerOptions bounds the contributions a run looks at.
type ReconcilerOptions struct {
	// Lookback is the primary window. Default 24h.
	Lookback time.Duration
	// MinAge leaves young contributions to their webhook. Default 10m.
	MinAge time.Duration
	// LongTail is how far back the second phase reaches. Default 7 days.
	LongTail time.Duration
	// BatchLimit caps the contributions loaded per phase. Default 500.
	BatchLimit int
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Reconciler settles contributions whose webhook never arrived by polling the
// providers' transaction listings.
type Reconciler struct {
	store     domain.Store
	processor *Processor
	listers   map[domain.PaymentProvider]TransactionLister
	opts      ReconcilerOptions
}

// NewReconciler wires a Reconciler. Contributions of providers without a
// lister are logged and counted as unresolved.
func NewReconciler(store domain.Store, processor *Processor, listers []TransactionLister, opts ReconcilerOptions) *Reconciler {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.MinAge <= 0 {
		opts.MinAge = 10 * time.Minute
	}
	if opts.LongTail <= 0 {
		opts.LongTail = 7 * 24 * time.Hour
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	byProvider := make(map[domain.PaymentProvider]TransactionLister, len(listers))
	for _, l := range listers {
		byProvider[l.Provider()] = l
	}
	return &Reconciler{store: store, processor: processor, listers: byProvider, opts: opts}
}

// Run reconciles unsettled contributions created in [now-Lookback, now-MinAge)
// and then the long tail in [now-LongTail, now-Lookback).
func (r *Reconciler) Run(ctx context.Context) (ReconcileResult, error) {
	now := r.opts.Now()
	res := ReconcileResult{
		LookbackStart: now.Add(-r.opts.Lookback),
		Cutoff:        now.Add(-r.opts.MinAge),
		LongTailStart: now.Add(-r.opts.LongTail),
	}
	log := r.opts.Logger

	pending, err := r.store.Repos().Contributions.ListUnsettled(ctx, res.LookbackStart, res.Cutoff, r.opts.BatchLimit)
	if err != nil {
		return res, fmt.Errorf("payments: list unsettled contributions: %w", err)
	}
	res.Primary = r.pass(ctx, "primary", pending, now)

	if !res.LongTailStart.Before(res.LookbackStart) {
		log.Warn().
			Time("long_tail_start", res.LongTailStart).
			Time("lookback_start", res.LookbackStart).
			Msg("reconciliation.long_tail_skipped")
		return res, nil
	}
	to := res.LookbackStart
	if res.Cutoff.Before(to) {
		to = res.Cutoff
	}
	tail, err := r.store.Repos().Contributions.ListUnsettled(ctx, res.LongTailStart, to, r.opts.BatchLimit)
	if err != nil {
		return res, fmt.Errorf("payments: list long tail contributions: %w", err)
	}
	if len(tail) > 0 {
		log.Info().Int("scanned", len(tail)).Msg("reconciliation.long_tail_scan")
		res.LongTail = r.pass(ctx, "long_tail", tail, now)
	}
	return res, nil
}

func (r *Reconciler) pass(ctx context.Context, phase string, pending []domain.Contribution, now time.Time) PassResult {
	out := PassResult{Scanned: len(pending)}
	byProvider := map[domain.PaymentProvider][]domain.Contribution{}
	for _, c := range pending {
		byProvider[c.Provider] = append(byProvider[c.Provider], c)
	}
	providers := make([]domain.PaymentProvider, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	slices.Sort(providers)

	for _, provider := range providers {
		group := byProvider[provider]
		log := r.opts.Logger.With().Str("provider", string(provider)).Str("phase", phase).Logger()
		lister, ok := r.listers[provider]
		if !ok {
			for _, c := range group {
				log.Warn().
					Str("contribution_id", c.ID).
					Str("payment_ref", c.PaymentRef).
					Str("status", string(c.Status)).
					Int64("age_minutes", int64(now.Sub(c.CreatedAt)/time.Minute)).
					Msg("reconciliation.unlisted_pending")
			}
			out.Unresolved += len(group)
			continue
		}

		earliest := group[0].CreatedAt
		for _, c := range group[1:] {
			if c.CreatedAt.Before(earliest) {
				earliest = c.CreatedAt
			}
		}
		txs, err := lister.ListTransactions(ctx, earliest, now)
		if err != nil {
			log.Error().Err(err).Int("pending", len(group)).Msg("reconciliation.fetch_failed")
			out.Unresolved += len(group)
			continue
		}
		log.Info().Int("pending", len(group)).Int("transactions", len(txs)).Msg("reconciliation.listing_fetched")

		byRef := make(map[string]ProviderTransaction, len(txs))
		for _, tx := range txs {
			if tx.Reference != "" {
				byRef[tx.Reference] = tx
			}
		}
		for _, c := range group {
			tx, ok := byRef[c.PaymentRef]
			if !ok {
				log.Warn().Str("payment_ref", c.PaymentRef).Msg("reconciliation.transaction_missing")
				out.Unresolved++
				continue
			}
			r.apply(ctx, log, &out, c, tx)
		}
	}
	return out
}

func (r *Reconciler) apply(ctx context.Context, log zerolog.Logger, out *PassResult, c domain.Contribution, tx ProviderTransaction) {
	expected := c.ExpectedChargeCents()
	d := DecideReconciliation(tx.Status, expected, tx.AmountCents)
	switch d.Action {
	case ReconcileUpdate:
		if _, err := r.processor.settle(ctx, &c, d.Status); err != nil {
			log.Error().Err(err).Str("contribution_id", c.ID).Msg("reconciliation.settle_failed")
			out.Unresolved++
			return
		}
		log.Info().Str("contribution_id", c.ID).Str("status", string(d.Status)).Msg("reconciliation.updated")
		if d.Status == domain.PaymentCompleted {
			out.Updated++
		} else {
			out.Failed++
		}
	case ReconcileMismatch:
		m := ReconcileMismatchEntry{
			Provider:      c.Provider,
			PaymentRef:    c.PaymentRef,
			ExpectedCents: expected,
			ReceivedCents: tx.AmountCents,
			Status:        d.Status,
		}
		ev := log.Warn().Str("payment_ref", c.PaymentRef).Int64("expected_cents", expected)
		if tx.AmountCents != nil {
			ev = ev.Int64("received_cents", *tx.AmountCents)
		}
		ev.Msg("reconciliation.mismatch")
		out.Mismatches = append(out.Mismatches, m)
		out.Unresolved++
	default:
		out.Unresolved++
	}
}
