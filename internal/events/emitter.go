// Package events fans domain events out to partner webhook subscriptions
// through an outbox and delivers them with signed, retried requests.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
)

// Emitter writes one outbox row per interested subscription.
type Emitter struct {
	store  domain.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewEmitter wires an Emitter.
func NewEmitter(store domain.Store, logger zerolog.Logger) *Emitter {
	return &Emitter{store: store, logger: logger, now: time.Now}
}

// Emit enqueues eventType for the partner's subscriptions. Failures are
// logged and never returned; emission must not undo the state change that
// triggered it.
func (e *Emitter) Emit(ctx context.Context, partnerID, eventType string, data any) {
	if partnerID == "" {
		e.logger.Warn().Str("type", eventType).Msg("events.emit_no_partner")
		return
	}
	repo := e.store.Repos().Events
	subs, err := repo.ActiveSubscriptions(ctx, partnerID)
	if err != nil {
		e.logger.Error().Err(err).Str("partner_id", partnerID).Str("type", eventType).Msg("events.subscriptions_failed")
		return
	}

	now := e.now().UTC()
	var rows []domain.PartnerEvent
	for _, sub := range subs {
		if !sub.Wants(eventType) {
			continue
		}
		id := ulid.Make().String()
		body, err := json.Marshal(Envelope{ID: id, Type: eventType, CreatedAt: now, Data: data})
		if err != nil {
			e.logger.Error().Err(err).Str("type", eventType).Msg("events.encode_failed")
			return
		}
		rows = append(rows, domain.PartnerEvent{
			ID:             id,
			SubscriptionID: sub.ID,
			PartnerID:      partnerID,
			EventType:      eventType,
			Payload:        body,
		})
	}
	if len(rows) == 0 {
		e.logger.Debug().Str("partner_id", partnerID).Str("type", eventType).Msg("events.no_subscriptions")
		return
	}
	if err := repo.Enqueue(ctx, rows); err != nil {
		e.logger.Error().Err(err).Str("partner_id", partnerID).Str("type", eventType).Msg("events.enqueue_failed")
		return
	}
	e.logger.Info().Str("partner_id", partnerID).Str("type", eventType).Int("count", len(rows)).Msg("events.enqueued")
}
