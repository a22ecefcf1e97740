package repo

import (
	"context"
	"time"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// PartnerEventRepositoryPG implements the partner webhook outbox.
type PartnerEventRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPartnerEventRepository constructs the repository.
func NewPartnerEventRepository(sql infra.SQLExecutor) *PartnerEventRepositoryPG {
	return &PartnerEventRepositoryPG{sql: sql}
}

func (r *PartnerEventRepositoryPG) ActiveSubscriptions(ctx context.Context, partnerID string) ([]domain.PartnerSubscription, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectActiveSubscriptions, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.PartnerSubscription
	for rows.Next() {
		var s domain.PartnerSubscription
		if err := rows.Scan(&s.ID, &s.PartnerID, &s.URL, &s.Secret, &s.EventTypes, &s.Active); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *PartnerEventRepositoryPG) Enqueue(ctx context.Context, events []domain.PartnerEvent) error {
	for _, e := range events {
		if _, err := r.sql.Exec(ctx, sqlinline.QInsertPartnerEvent,
			e.ID, e.SubscriptionID, e.PartnerID, e.EventType, e.Payload,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *PartnerEventRepositoryPG) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]domain.DeliveryTarget, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QClaimDuePartnerEvents, now, leaseUntil, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.DeliveryTarget
	for rows.Next() {
		var (
			t      domain.DeliveryTarget
			status string
		)
		if err := rows.Scan(
			&t.Event.ID, &t.Event.SubscriptionID, &t.Event.PartnerID, &t.Event.EventType, &t.Event.Payload,
			&status, &t.Event.Attempts, &t.Event.NextAttemptAt, &t.Event.CreatedAt, &t.URL, &t.Secret,
		); err != nil {
			return nil, err
		}
		t.Event.Status = domain.EventStatus(status)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func (r *PartnerEventRepositoryPG) MarkDelivered(ctx context.Context, id string, statusCode int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkPartnerEventDelivered, id, statusCode)
	return err
}

func (r *PartnerEventRepositoryPG) MarkAttemptFailed(ctx context.Context, id string, attempts int, next *time.Time, statusCode *int, reason string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkPartnerEventAttemptFailed, id, attempts, next, statusCode, reason)
	return err
}

var _ domain.PartnerEventRepository = (*PartnerEventRepositoryPG)(nil)
