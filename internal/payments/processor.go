package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
	"dreamboard/internal/events"
	"dreamboard/internal/settlement"
)

// CampaignHooks are the post-settlement side effects on a campaign.
type CampaignHooks interface {
	InvalidateCache(ctx context.Context, campaignID string)
	MarkFundedIfNeeded(ctx context.Context, campaignID string) (bool, error)
}

// EventEmitter publishes partner events.
type EventEmitter interface {
	Emit(ctx context.Context, partnerID, eventType string, data any)
}

// Outcome reports what a webhook delivery did.
type Outcome struct {
	ContributionID string
	Status         domain.PaymentStatus
	// Duplicate is true when the delivery changed nothing.
	Duplicate bool
}

// Processor applies verified notifications to contributions.
type Processor struct {
	registry  *Registry
	store     domain.Store
	completer *settlement.Completer
	campaigns CampaignHooks
	events    EventEmitter
	policy    TimestampPolicy
	logger    zerolog.Logger
}

// NewProcessor wires a Processor. campaigns and emitter may be nil.
func NewProcessor(registry *Registry, store domain.Store, completer *settlement.Completer, campaigns CampaignHooks, emitter EventEmitter, policy TimestampPolicy, logger zerolog.Logger) *Processor {
	return &Processor{
		registry:  registry,
		store:     store,
		completer: completer,
		campaigns: campaigns,
		events:    emitter,
		policy:    policy,
		logger:    logger,
	}
}

// Handle runs one webhook delivery end to end.
func (p *Processor) Handle(ctx context.Context, provider string, body []byte, meta RequestMeta) (Outcome, error) {
	adapter, ok := p.registry.Get(domain.PaymentProvider(provider))
	if !ok {
		return Outcome{}, fmt.Errorf("payment provider %q: %w", provider, domain.ErrNotFound)
	}
	log := p.logger.With().Str("provider", provider).Logger()

	n, err := Reconcile(ctx, adapter, body, meta, p.policy)
	if err != nil {
		log.Warn().Err(err).Str("remote_ip", meta.RemoteIP).Msgf("payments.%s_%s", provider, domain.CodeOf(err))
		return Outcome{}, err
	}
	if n.Timestamp == nil {
		log.Warn().Str("reference", n.Reference).Msgf("payments.%s_timestamp_missing", provider)
	}

	contribution, err := p.store.Repos().Contributions.GetByPaymentRef(ctx, n.Provider, n.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("reference", n.Reference).Msgf("payments.%s_unknown_reference", provider)
		}
		return Outcome{}, err
	}
	out := Outcome{ContributionID: contribution.ID, Status: contribution.Status}

	if contribution.Status == n.Status || contribution.IsCompleted() {
		out.Duplicate = true
		return out, nil
	}
	if n.AmountCents != contribution.ExpectedChargeCents() {
		log.Warn().
			Str("contribution_id", contribution.ID).
			Int64("expected_cents", contribution.ExpectedChargeCents()).
			Int64("received_cents", n.AmountCents).
			Msgf("payments.%s_amount_mismatch", provider)
		return out, fmt.Errorf("contribution %s: %w", contribution.ID, domain.ErrAmountMismatch)
	}

	return p.settle(ctx, contribution, n.Status)
}

// settle moves c to status. Completion goes through the settlement
// completer; any other status is a guarded update.
func (p *Processor) settle(ctx context.Context, c *domain.Contribution, status domain.PaymentStatus) (Outcome, error) {
	out := Outcome{ContributionID: c.ID, Status: c.Status}
	if status != domain.PaymentCompleted {
		changed, err := p.store.Repos().Contributions.UpdateStatus(ctx, c.ID, status)
		if err != nil {
			return out, err
		}
		out.Duplicate = !changed
		if changed {
			out.Status = status
			p.invalidate(ctx, c.CampaignID)
		}
		return out, nil
	}

	res, err := p.completer.Complete(ctx, c.ID)
	if err != nil {
		return out, err
	}
	out.Status = domain.PaymentCompleted
	if res.AlreadyCompleted {
		out.Duplicate = true
		return out, nil
	}
	p.logger.Info().
		Str("provider", string(c.Provider)).
		Str("contribution_id", c.ID).
		Str("dream_board_id", c.CampaignID).
		Msg("payments.contribution_completed")
	p.afterCompletion(ctx, c.ID, c.CampaignID)
	return out, nil
}

func (p *Processor) invalidate(ctx context.Context, campaignID string) {
	if p.campaigns != nil {
		p.campaigns.InvalidateCache(ctx, campaignID)
	}
}

// afterCompletion runs side effects that must never fail the webhook.
func (p *Processor) afterCompletion(ctx context.Context, contributionID, campaignID string) {
	p.invalidate(ctx, campaignID)

	funded := false
	if p.campaigns != nil {
		var err error
		funded, err = p.campaigns.MarkFundedIfNeeded(ctx, campaignID)
		if err != nil {
			p.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payments.mark_funded_failed")
		}
	}
	if p.events == nil {
		return
	}

	repos := p.store.Repos()
	contribution, err := repos.Contributions.GetByID(ctx, contributionID)
	if err != nil {
		p.logger.Error().Err(err).Str("contribution_id", contributionID).Msg("payments.event_load_failed")
		return
	}
	campaign, err := repos.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		p.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payments.event_load_failed")
		return
	}
	totals, err := repos.Contributions.CampaignTotals(ctx, campaignID)
	if err != nil {
		p.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payments.event_load_failed")
		return
	}

	board := events.NewDreamBoardData(*campaign, totals)
	p.events.Emit(ctx, campaign.PartnerID, domain.EventContributionReceived, events.ContributionReceived{
		Contribution: events.NewContributionData(*contribution),
		DreamBoard:   board,
	})
	if funded {
		p.events.Emit(ctx, campaign.PartnerID, domain.EventCampaignFunded, board)
	}
}
