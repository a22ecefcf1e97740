// Package payouts turns a closed dream board into payout rows and drives
// those rows through the automated disbursement channels.
package payouts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
)

// AggregateResult reports what CreatePayouts did.
type AggregateResult struct {
	CampaignID string
	Totals     domain.CampaignTotals
	// Created holds only rows inserted by this call.
	Created []domain.Payout
	// Skipped is true when nothing was raised.
	Skipped bool
}

// Aggregator computes payouts from completed contributions.
type Aggregator struct {
	store  domain.Store
	logger zerolog.Logger
}

// NewAggregator wires an Aggregator.
func NewAggregator(store domain.Store, logger zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// CreatePayouts creates the gift and charity payouts of a closed campaign.
// It is safe to call repeatedly; existing rows are left untouched.
func (a *Aggregator) CreatePayouts(ctx context.Context, campaignID string, actor domain.Actor) (AggregateResult, error) {
	res := AggregateResult{CampaignID: campaignID}
	err := a.store.WithTx(ctx, func(r domain.Repositories) error {
		campaign, err := r.Campaigns.GetByID(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign.Status != domain.CampaignClosed {
			return fmt.Errorf("dream board %s is %s: %w", campaignID, campaign.Status, domain.ErrNotReadyForPayout)
		}

		totals, err := r.Contributions.CampaignTotals(ctx, campaignID)
		if err != nil {
			return err
		}
		res.Totals = totals
		if totals.RaisedCents == 0 {
			res.Skipped = true
			return nil
		}

		for _, p := range plan(*campaign, totals) {
			created, err := r.Payouts.InsertIfAbsent(ctx, &p)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			err = r.Audit.Record(ctx, domain.AuditEntry{
				Actor:      actor,
				Action:     domain.AuditPayoutCreated,
				TargetType: "payout",
				TargetID:   p.ID,
				Metadata: map[string]any{
					"dream_board_id": campaignID,
					"payout_type":    string(p.Type),
					"net_cents":      p.NetCents,
				},
			})
			if err != nil {
				return err
			}
			res.Created = append(res.Created, p)
		}
		return nil
	})
	if err != nil {
		return AggregateResult{CampaignID: campaignID}, err
	}
	a.logger.Info().
		Str("dream_board_id", campaignID).
		Int64("raised_cents", res.Totals.RaisedCents).
		Int("created", len(res.Created)).
		Bool("skipped", res.Skipped).
		Msg("payouts.aggregated")
	return res, nil
}

// plan returns the payouts a campaign should have for its totals.
func plan(c domain.Campaign, t domain.CampaignTotals) []domain.Payout {
	var out []domain.Payout
	net := t.NetGiftCents()
	if c.PayoutMethod.IsGiftMethod() && net > 0 {
		recipient := map[string]any{}
		for k, v := range c.RecipientData {
			recipient[k] = v
		}
		if c.PayoutEmail != "" {
			if _, ok := recipient["email"]; !ok {
				recipient["email"] = c.PayoutEmail
			}
		}
		out = append(out, domain.Payout{
			CampaignID:    c.ID,
			PartnerID:     c.PartnerID,
			Type:          c.PayoutMethod,
			GrossCents:    t.RaisedCents,
			FeeCents:      t.PlatformFeeCents,
			CharityCents:  t.CharityCents,
			NetCents:      net,
			RecipientData: recipient,
		})
	}
	if t.CharityCents > 0 && c.Charity.CharityID != nil && *c.Charity.CharityID != "" {
		recipient := map[string]any{"charityId": *c.Charity.CharityID}
		if c.Charity.CauseID != nil {
			recipient["causeId"] = *c.Charity.CauseID
		}
		out = append(out, domain.Payout{
			CampaignID:    c.ID,
			PartnerID:     c.PartnerID,
			Type:          domain.PayoutCharityDonation,
			GrossCents:    t.CharityCents,
			CharityCents:  t.CharityCents,
			NetCents:      t.CharityCents,
			RecipientData: recipient,
		})
	}
	return out
}
