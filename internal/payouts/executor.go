package payouts

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
	"dreamboard/internal/events"
	"dreamboard/internal/providers/httpretry"
)

// EventEmitter publishes partner events.
type EventEmitter interface {
	Emit(ctx context.Context, partnerID, eventType string, data any)
}

// ExecutionResult is the state of a payout after an execution attempt.
// Channel failures are reported here rather than as errors.
type ExecutionResult struct {
	Payout domain.Payout
	Reason string
	// Retryable marks transport failures and timeouts.
	Retryable bool
	// CampaignPaidOut is true when this call completed the last payout.
	CampaignPaidOut bool
}

// Executor drives payouts through their channels.
type Executor struct {
	store    domain.Store
	channels ChannelSet
	events   EventEmitter
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewExecutor wires an Executor. A non-positive timeout defaults to 30s.
func NewExecutor(store domain.Store, channels ChannelSet, emitter EventEmitter, timeout time.Duration, logger zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{store: store, channels: channels, events: emitter, timeout: timeout, logger: logger}
}

// Execute sends the payout through its channel. Only pending and failed
// payouts are sent; completed payouts and payouts already in flight are
// returned unchanged.
func (e *Executor) Execute(ctx context.Context, payoutID string, actor domain.Actor) (ExecutionResult, error) {
	p, err := e.store.Repos().Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if p.Status == domain.PayoutCompleted {
		return ExecutionResult{Payout: *p}, nil
	}
	ch, err := e.channels.lookup(p.Type)
	if err != nil {
		return ExecutionResult{Payout: *p}, err
	}

	claimed := false
	err = e.store.WithTx(ctx, func(r domain.Repositories) error {
		changed, err := r.Payouts.Claim(ctx, p.ID)
		if err != nil || !changed {
			return err
		}
		claimed = true
		return r.Audit.Record(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditPayoutAutomationStarted,
			TargetType: "payout",
			TargetID:   p.ID,
			Metadata:   map[string]any{"payout_type": string(p.Type)},
		})
	})
	if err != nil {
		return ExecutionResult{Payout: *p}, err
	}
	if !claimed {
		current, err := e.store.Repos().Payouts.GetByID(ctx, payoutID)
		if err != nil {
			return ExecutionResult{Payout: *p}, err
		}
		e.logger.Info().
			Str("payout_id", current.ID).
			Str("status", string(current.Status)).
			Msg("payouts.execute_skipped_in_flight")
		return ExecutionResult{Payout: *current}, nil
	}
	p.Status = domain.PayoutProcessing
	return e.run(ctx, ch, *p, actor)
}

// ExecutePending claims pending payouts of enabled channels and runs them.
// A failing payout does not stop the batch; claims that were never sent are
// handed back to pending.
func (e *Executor) ExecutePending(ctx context.Context, limit int) ([]ExecutionResult, error) {
	types := e.channels.EnabledTypes()
	if len(types) == 0 {
		return nil, nil
	}
	claimed, err := e.store.Repos().Payouts.ClaimPending(ctx, types, limit)
	if err != nil {
		return nil, fmt.Errorf("payouts: claim pending: %w", err)
	}
	results := make([]ExecutionResult, 0, len(claimed))
	var errs []error
	for i, p := range claimed {
		if err := ctx.Err(); err != nil {
			e.release(ctx, claimed[i:]...)
			errs = append(errs, err)
			break
		}
		ch, err := e.channels.lookup(p.Type)
		if err != nil {
			e.release(ctx, p)
			errs = append(errs, fmt.Errorf("payout %s: %w", p.ID, err))
			continue
		}
		res, err := e.run(ctx, ch, p, domain.SystemActor)
		if err != nil {
			errs = append(errs, fmt.Errorf("payout %s: %w", p.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// release hands unsent claims back to pending.
func (e *Executor) release(ctx context.Context, items ...domain.Payout) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range items {
		if _, err := e.store.Repos().Payouts.ReleaseClaim(ctx, p.ID); err != nil {
			e.logger.Error().Err(err).Str("payout_id", p.ID).Msg("payouts.release_claim_failed")
		}
	}
}

// Confirm records an asynchronous or manual completion.
func (e *Executor) Confirm(ctx context.Context, payoutID, externalRef string, actor domain.Actor) (ExecutionResult, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return ExecutionResult{}, fmt.Errorf("external reference is required: %w", domain.ErrValidation)
	}
	p, err := e.store.Repos().Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if p.Status == domain.PayoutCompleted {
		return ExecutionResult{Payout: *p}, nil
	}
	return e.apply(ctx, *p, ChannelResult{Status: ChannelCompleted, ExternalRef: externalRef}, actor)
}

// Fail records an asynchronous or manual failure.
func (e *Executor) Fail(ctx context.Context, payoutID, reason string, actor domain.Actor) (ExecutionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ExecutionResult{}, fmt.Errorf("reason is required: %w", domain.ErrValidation)
	}
	p, err := e.store.Repos().Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if p.Status == domain.PayoutCompleted {
		return ExecutionResult{Payout: *p}, fmt.Errorf("payout %s is completed: %w", payoutID, domain.ErrConflict)
	}
	return e.apply(ctx, *p, ChannelResult{Status: ChannelFailed, Reason: reason}, actor)
}

func (e *Executor) run(ctx context.Context, ch Channel, p domain.Payout, actor domain.Actor) (ExecutionResult, error) {
	campaign, err := e.store.Repos().Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		e.release(ctx, p)
		return ExecutionResult{Payout: p}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	res, sendErr := ch.Send(callCtx, ChannelRequest{Payout: p, Campaign: *campaign, Description: Describe(p, *campaign)})
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	if sendErr != nil {
		reason := sendErr.Error()
		if timedOut {
			reason = "channel timed out after " + e.timeout.String()
		}
		e.logger.Warn().Err(sendErr).Str("payout_id", p.ID).Str("payout_type", string(p.Type)).Msg("payouts.automation_failed")
		out, err := e.apply(ctx, p, ChannelResult{Status: ChannelFailed, Reason: reason}, actor)
		out.Retryable = timedOut || httpretry.Retryable(sendErr)
		return out, err
	}
	return e.apply(ctx, p, res, actor)
}

// apply persists a channel outcome.
func (e *Executor) apply(ctx context.Context, p domain.Payout, res ChannelResult, actor domain.Actor) (ExecutionResult, error) {
	out := ExecutionResult{Reason: res.Reason}
	var ref *string
	if res.ExternalRef != "" {
		ref = &res.ExternalRef
	}

	err := e.store.WithTx(ctx, func(r domain.Repositories) error {
		audit := domain.AuditEntry{Actor: actor, TargetType: "payout", TargetID: p.ID, Metadata: map[string]any{"payout_type": string(p.Type)}}
		if ref != nil {
			audit.Metadata["external_ref"] = *ref
		}
		var err error
		switch res.Status {
		case ChannelCompleted:
			_, err = r.Payouts.MarkCompleted(ctx, p.ID, ref)
			audit.Action = domain.AuditPayoutCompleted
		case ChannelFailed:
			reason := res.Reason
			if reason == "" {
				reason = "channel reported failure"
			}
			_, err = r.Payouts.MarkFailed(ctx, p.ID, reason)
			audit.Action = domain.AuditPayoutFailed
			audit.Metadata["reason"] = reason
		default:
			_, err = r.Payouts.MarkProcessing(ctx, p.ID, ref)
			audit.Action = domain.AuditPayoutAutomationPending
		}
		if err != nil {
			return err
		}
		if len(res.RecipientData) > 0 {
			if err := r.Payouts.MergeRecipientData(ctx, p.ID, res.RecipientData); err != nil {
				return err
			}
			audit.Metadata["recipient_fields"] = slices.Sorted(maps.Keys(res.RecipientData))
		}
		if err := r.Audit.Record(ctx, audit); err != nil {
			return err
		}

		if res.Status == ChannelCompleted {
			summary, err := r.Payouts.CompletionSummary(ctx, p.CampaignID)
			if err != nil {
				return err
			}
			if summary.AllCompleted() {
				out.CampaignPaidOut, err = r.Campaigns.TransitionStatus(ctx, p.CampaignID,
					[]domain.CampaignStatus{domain.CampaignClosed}, domain.CampaignPaidOut)
				if err != nil {
					return err
				}
			}
		}
		updated, err := r.Payouts.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		out.Payout = *updated
		return nil
	})
	if err != nil {
		return ExecutionResult{Payout: p}, err
	}

	e.logger.Info().
		Str("payout_id", p.ID).
		Str("payout_type", string(p.Type)).
		Str("status", string(out.Payout.Status)).
		Bool("paid_out", out.CampaignPaidOut).
		Msg("payouts.status_updated")

	if e.events != nil {
		switch out.Payout.Status {
		case domain.PayoutCompleted:
			e.events.Emit(ctx, p.PartnerID, domain.EventPayoutCompleted, events.NewPayoutData(out.Payout))
		case domain.PayoutFailed:
			e.events.Emit(ctx, p.PartnerID, domain.EventPayoutFailed, events.NewPayoutData(out.Payout))
		}
	}
	if out.CampaignPaidOut {
		e.emitPaidOut(ctx, p.CampaignID)
	}
	return out, nil
}

// UpdateRecipientData merges operator supplied recipient fields into the
// payout and records which fields changed.
func (e *Executor) UpdateRecipientData(ctx context.Context, payoutID string, data map[string]any, actor domain.Actor) (domain.Payout, error) {
	if len(data) == 0 {
		return domain.Payout{}, fmt.Errorf("recipient data is required: %w", domain.ErrValidation)
	}
	fields := slices.Sorted(maps.Keys(data))
	var out domain.Payout
	err := e.store.WithTx(ctx, func(r domain.Repositories) error {
		if _, err := r.Payouts.GetByID(ctx, payoutID); err != nil {
			return err
		}
		if err := r.Payouts.MergeRecipientData(ctx, payoutID, data); err != nil {
			return err
		}
		if err := r.Audit.Record(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditPayoutRecipientUpdated,
			TargetType: "payout",
			TargetID:   payoutID,
			Metadata:   map[string]any{"fields": fields},
		}); err != nil {
			return err
		}
		updated, err := r.Payouts.GetByID(ctx, payoutID)
		if err != nil {
			return err
		}
		out = *updated
		return nil
	})
	if err != nil {
		return domain.Payout{}, err
	}
	e.logger.Info().Str("payout_id", payoutID).Strs("fields", fields).Msg("payouts.recipient_updated")
	return out, nil
}

// AddNote appends an operator note to the payout's audit trail.
func (e *Executor) AddNote(ctx context.Context, payoutID, note string, actor domain.Actor) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("note is required: %w", domain.ErrValidation)
	}
	return e.store.WithTx(ctx, func(r domain.Repositories) error {
		if _, err := r.Payouts.GetByID(ctx, payoutID); err != nil {
			return err
		}
		return r.Audit.Record(ctx, domain.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditPayoutNote,
			TargetType: "payout",
			TargetID:   payoutID,
			Metadata:   map[string]any{"note": note},
		})
	})
}

func (e *Executor) emitPaidOut(ctx context.Context, campaignID string) {
	if e.events == nil {
		return
	}
	repos := e.store.Repos()
	campaign, err := repos.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		e.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payouts.paid_out_event_failed")
		return
	}
	totals, err := repos.Contributions.CampaignTotals(ctx, campaignID)
	if err != nil {
		e.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payouts.paid_out_event_failed")
		return
	}
	list, err := repos.Payouts.ListByCampaign(ctx, campaignID)
	if err != nil {
		e.logger.Error().Err(err).Str("dream_board_id", campaignID).Msg("payouts.paid_out_event_failed")
		return
	}
	data := events.NewDreamBoardData(*campaign, totals)
	for _, p := range list {
		data.Payouts = append(data.Payouts, p.Summary())
	}
	e.events.Emit(ctx, campaign.PartnerID, domain.EventCampaignPaidOut, data)
}
