package payments

import (
	"context"
	"time"

	"dreamboard/internal/domain"
)

// Notification is the provider-independent view of a verified notification.
type Notification struct {
	Provider    domain.PaymentProvider
	Reference   string
	AmountCents int64
	Status      domain.PaymentStatus
	// Timestamp is nil when the provider omitted it.
	Timestamp *time.Time
}

// Reconcile verifies a raw notification and normalises it. Steps run in a
// fixed order: authenticity, freshness, reference, amount, status.
func Reconcile(ctx context.Context, a Adapter, body []byte, meta RequestMeta, policy TimestampPolicy) (*Notification, error) {
	payload, err := a.Verify(ctx, body, meta)
	if err != nil {
		return nil, err
	}

	n := &Notification{Provider: a.Provider()}
	if payload.Timestamp != nil {
		ts, err := policy.Check(payload.Timestamp)
		if err != nil {
			return nil, err
		}
		n.Timestamp = &ts
	}

	n.Reference = a.Reference(payload)
	if n.Reference == "" {
		return nil, domain.ErrMissingReference
	}

	amount, ok := a.AmountCents(payload)
	if !ok {
		return nil, domain.ErrAmountMissing
	}
	n.AmountCents = amount
	n.Status = a.Status(payload)
	return n, nil
}
