// Package campaigns owns dream board lifecycle transitions: funding, closing
// and the hand-off to payout aggregation.
package campaigns

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
	"dreamboard/internal/events"
	"dreamboard/internal/payouts"
)

// Close reasons accepted by Close.
const (
	ReasonManual      = "manual"
	ReasonDeadline    = "deadline_reached"
	ReasonGoalReached = "goal_reached"
)

// EventEmitter publishes partner events.
type EventEmitter interface {
	Emit(ctx context.Context, partnerID, eventType string, data any)
}

// CloseResult is returned by Close.
type CloseResult struct {
	Campaign domain.Campaign
	Totals   domain.CampaignTotals
	Payouts  []domain.PayoutSummary
	// Transitioned is true when this call moved the board to closed.
	Transitioned bool
}

// Service applies lifecycle transitions.
type Service struct {
	store      domain.Store
	aggregator *payouts.Aggregator
	cache      *Cache
	events     EventEmitter
	logger     zerolog.Logger
}

// NewService wires a Service.
func NewService(store domain.Store, aggregator *payouts.Aggregator, cache *Cache, emitter EventEmitter, logger zerolog.Logger) *Service {
	return &Service{store: store, aggregator: aggregator, cache: cache, events: emitter, logger: logger}
}

// Get returns a campaign visible to the actor. Partners only see their own.
func (s *Service) Get(ctx context.Context, id string, actor domain.Actor) (*domain.Campaign, error) {
	c, err := s.store.Repos().Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Type == domain.ActorPartner && c.PartnerID != actor.ID {
		return nil, fmt.Errorf("dream board %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// Summary returns the public view with totals, served from the cache.
func (s *Service) Summary(ctx context.Context, id string) (events.DreamBoardData, error) {
	return s.cache.Summary(ctx, id, func(ctx context.Context) (events.DreamBoardData, error) {
		repos := s.store.Repos()
		c, err := repos.Campaigns.GetByID(ctx, id)
		if err != nil {
			return events.DreamBoardData{}, err
		}
		totals, err := repos.Contributions.CampaignTotals(ctx, id)
		if err != nil {
			return events.DreamBoardData{}, err
		}
		return events.NewDreamBoardData(*c, totals), nil
	})
}

// Payouts lists the payouts of a campaign visible to the actor.
func (s *Service) Payouts(ctx context.Context, id string, actor domain.Actor) ([]domain.Payout, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.store.Repos().Payouts.ListByCampaign(ctx, id)
}

// Close moves an active or funded board to closed and creates its payouts.
// Closing an already closed board only re-runs the idempotent aggregation.
func (s *Service) Close(ctx context.Context, id, reason string, actor domain.Actor) (CloseResult, error) {
	switch reason {
	case ReasonManual, ReasonDeadline, ReasonGoalReached:
	default:
		return CloseResult{}, fmt.Errorf("unknown close reason %q: %w", reason, domain.ErrValidation)
	}
	campaign, err := s.Get(ctx, id, actor)
	if err != nil {
		return CloseResult{}, err
	}

	res := CloseResult{}
	switch campaign.Status {
	case domain.CampaignDraft, domain.CampaignCancelled, domain.CampaignExpired:
		return CloseResult{}, fmt.Errorf("dream board %s is %s: %w", id, campaign.Status, domain.ErrConflict)
	case domain.CampaignPaidOut:
		return s.withPayouts(ctx, *campaign, res)
	case domain.CampaignActive, domain.CampaignFunded:
		err = s.store.WithTx(ctx, func(r domain.Repositories) error {
			changed, err := r.Campaigns.TransitionStatus(ctx, id,
				[]domain.CampaignStatus{domain.CampaignActive, domain.CampaignFunded}, domain.CampaignClosed)
			if err != nil || !changed {
				return err
			}
			res.Transitioned = true
			return r.Audit.Record(ctx, domain.AuditEntry{
				Actor:      actor,
				Action:     domain.AuditCampaignClosed,
				TargetType: "dream_board",
				TargetID:   id,
				Metadata:   map[string]any{"reason": reason, "previous_status": string(campaign.Status)},
			})
		})
		if err != nil {
			return CloseResult{}, err
		}
	}

	if res.Transitioned {
		s.cache.Invalidate(ctx, id)
		s.logger.Info().Str("dream_board_id", id).Str("reason", reason).Msg("campaigns.closed")
	}

	current, err := s.store.Repos().Campaigns.GetByID(ctx, id)
	if err != nil {
		return CloseResult{}, err
	}
	var created []domain.Payout
	if current.Status == domain.CampaignClosed {
		agg, err := s.aggregator.CreatePayouts(ctx, id, actor)
		if err != nil {
			return CloseResult{}, err
		}
		created = agg.Created
	}
	res, err = s.withPayouts(ctx, *current, res)
	if err != nil {
		return res, err
	}
	if res.Transitioned && s.events != nil {
		data := events.NewDreamBoardData(*current, res.Totals)
		data.Payouts = res.Payouts
		s.events.Emit(ctx, current.PartnerID, domain.EventCampaignClosed, data)
	}
	if s.events != nil {
		for _, p := range created {
			s.events.Emit(ctx, current.PartnerID, domain.EventPayoutReady, events.NewPayoutData(p))
		}
	}
	return res, nil
}

func (s *Service) withPayouts(ctx context.Context, c domain.Campaign, res CloseResult) (CloseResult, error) {
	repos := s.store.Repos()
	totals, err := repos.Contributions.CampaignTotals(ctx, c.ID)
	if err != nil {
		return res, err
	}
	list, err := repos.Payouts.ListByCampaign(ctx, c.ID)
	if err != nil {
		return res, err
	}
	res.Campaign = c
	res.Totals = totals
	res.Payouts = make([]domain.PayoutSummary, 0, len(list))
	for _, p := range list {
		res.Payouts = append(res.Payouts, p.Summary())
	}
	return res, nil
}

// MarkFundedIfNeeded moves an active board to funded once completed
// contributions reach the goal. It reports whether the transition happened.
func (s *Service) MarkFundedIfNeeded(ctx context.Context, id string) (bool, error) {
	repos := s.store.Repos()
	c, err := repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Status != domain.CampaignActive || c.GoalCents <= 0 {
		return false, nil
	}
	totals, err := repos.Contributions.CampaignTotals(ctx, id)
	if err != nil {
		return false, err
	}
	if totals.RaisedCents < c.GoalCents {
		return false, nil
	}
	changed, err := repos.Campaigns.TransitionStatus(ctx, id, []domain.CampaignStatus{domain.CampaignActive}, domain.CampaignFunded)
	if err != nil {
		return false, err
	}
	if changed {
		s.cache.Invalidate(ctx, id)
		s.logger.Info().Str("dream_board_id", id).Int64("raised_cents", totals.RaisedCents).Msg("campaigns.funded")
	}
	return changed, nil
}

// InvalidateCache drops the cached summary of a board.
func (s *Service) InvalidateCache(ctx context.Context, id string) {
	s.cache.Invalidate(ctx, id)
}
