package domain

import "time"

// Partner event types delivered to subscriptions. Partners subscribe to the
// public names, so a dream board is a "pot" on the wire.
const (
	EventContributionReceived = "contribution.received"
	EventCampaignFunded       = "pot.funded"
	EventCampaignClosed       = "pot.closed"
	EventCampaignPaidOut      = "pot.paid_out"
	EventPayoutReady          = "payout.ready"
	EventPayoutCompleted      = "payout.completed"
	EventPayoutFailed         = "payout.failed"
)

// PartnerSubscription is a partner webhook endpoint.
type PartnerSubscription struct {
	ID         string
	PartnerID  string
	URL        string
	Secret     string
	EventTypes []string
	Active     bool
}

// Wants reports whether the subscription listens for eventType.
func (s PartnerSubscription) Wants(eventType string) bool {
	if !s.Active {
		return false
	}
	for _, t := range s.EventTypes {
		if t == "*" || t == eventType {
			return true
		}
	}
	return false
}

// EventStatus is the delivery state of an outbox row.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventDelivered EventStatus = "delivered"
	EventFailed    EventStatus = "failed"
)

// PartnerEvent is one outbox row: one event for one subscription.
type PartnerEvent struct {
	ID             string
	SubscriptionID string
	PartnerID      string
	EventType      string
	Payload        []byte
	Status         EventStatus
	Attempts       int
	NextAttemptAt  time.Time
	LastError      *string
	LastStatusCode *int
	CreatedAt      time.Time
	DeliveredAt    *time.Time
}

// DeliveryTarget joins an event with the endpoint it goes to.
type DeliveryTarget struct {
	Event  PartnerEvent
	URL    string
	Secret string
}
