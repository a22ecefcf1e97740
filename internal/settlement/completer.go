// Package settlement moves a contribution to completed and allocates its
// charity share exactly once.
package settlement

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dreamboard/internal/charity"
	"dreamboard/internal/domain"
	"dreamboard/internal/infra/lock"
)

// Result describes a completion.
type Result struct {
	ContributionID string
	CampaignID     string
	CharityCents   *int64
	// AlreadyCompleted is true when another delivery completed the
	// contribution first and nothing was written.
	AlreadyCompleted bool
}

// Completer runs the campaign-scoped critical section.
type Completer struct {
	store  domain.Store
	locks  lock.NamedMutex
	logger zerolog.Logger
}

// NewCompleter wires a Completer.
func NewCompleter(store domain.Store, locks lock.NamedMutex, logger zerolog.Logger) *Completer {
	return &Completer{store: store, locks: locks, logger: logger}
}

// Complete marks the contribution completed. Settlements of one campaign run
// one at a time so threshold allocation never double counts the remaining
// budget.
func (c *Completer) Complete(ctx context.Context, contributionID string) (Result, error) {
	// The campaign id never changes, so it is safe to read before locking.
	current, err := c.store.Repos().Contributions.GetByID(ctx, contributionID)
	if err != nil {
		return Result{}, err
	}
	res := Result{ContributionID: contributionID, CampaignID: current.CampaignID}

	guard, err := c.locks.Acquire(ctx, lock.CampaignKey(current.CampaignID))
	if err != nil {
		return res, fmt.Errorf("settlement: lock campaign %s: %w", current.CampaignID, err)
	}
	defer guard.Release()

	err = c.store.WithTx(ctx, func(r domain.Repositories) error {
		contribution, err := r.Contributions.GetByID(ctx, contributionID)
		if err != nil {
			return err
		}
		if contribution.IsCompleted() {
			res.AlreadyCompleted = true
			res.CharityCents = contribution.CharityCents
			return nil
		}

		campaign, err := r.Campaigns.GetByID(ctx, contribution.CampaignID)
		if err != nil {
			return err
		}

		in := charity.Input{AmountCents: contribution.AmountCents, Config: campaign.Charity}
		if campaign.Charity.IsThreshold() {
			in.AlreadyAllocatedCents, err = r.Contributions.SumCompletedCharityCents(ctx, campaign.ID, contribution.ID)
			if err != nil {
				return err
			}
		}
		allocated := charity.ResolveForContribution(*contribution, in)

		changed, err := r.Contributions.MarkCompleted(ctx, contribution.ID, allocated)
		if err != nil {
			return err
		}
		if !changed {
			// Lost a race with a writer that bypassed the lock.
			return fmt.Errorf("settlement: contribution %s changed concurrently: %w", contribution.ID, domain.ErrConflict)
		}
		res.CharityCents = allocated
		return nil
	})
	if err != nil {
		return res, err
	}

	ev := c.logger.Info().
		Str("contribution_id", contributionID).
		Str("campaign_id", res.CampaignID).
		Bool("already_completed", res.AlreadyCompleted)
	if res.CharityCents != nil {
		ev = ev.Int64("charity_cents", *res.CharityCents)
	}
	ev.Msg("settlement.completed")
	return res, nil
}
