package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"dreamboard/internal/domain"
)

type contributionRepo struct{ binding }

func (r contributionRepo) Create(_ context.Context, c *domain.Contribution) error {
	return r.do(func(st *state) error {
		for _, existing := range st.contributions {
			if existing.Provider == c.Provider && existing.PaymentRef == c.PaymentRef {
				return fmt.Errorf("contribution %s/%s: %w", c.Provider, c.PaymentRef, domain.ErrConflict)
			}
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt = r.now()
		c.UpdatedAt = c.CreatedAt
		st.contributions[c.ID] = *c
		return nil
	})
}

func (r contributionRepo) GetByID(_ context.Context, id string) (*domain.Contribution, error) {
	var out domain.Contribution
	err := r.do(func(st *state) error {
		c, ok := st.contributions[id]
		if !ok {
			return notFound("contribution", id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contributionRepo) GetByPaymentRef(_ context.Context, provider domain.PaymentProvider, ref string) (*domain.Contribution, error) {
	var out *domain.Contribution
	err := r.do(func(st *state) error {
		for _, c := range st.contributions {
			if c.Provider == provider && c.PaymentRef == ref {
				found := c
				out = &found
				return nil
			}
		}
		return notFound("contribution", ref)
	})
	return out, err
}

func (r contributionRepo) UpdateStatus(_ context.Context, id string, status domain.PaymentStatus) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		c, ok := st.contributions[id]
		if !ok || c.IsCompleted() {
			return nil
		}
		c.Status = status
		c.UpdatedAt = r.now()
		st.contributions[id] = c
		changed = true
		return nil
	})
	return changed, err
}

func (r contributionRepo) MarkCompleted(_ context.Context, id string, charityCents *int64) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		c, ok := st.contributions[id]
		if !ok || c.IsCompleted() {
			return nil
		}
		c.Status = domain.PaymentCompleted
		if c.CharityCents == nil && charityCents != nil {
			v := *charityCents
			c.CharityCents = &v
		}
		c.UpdatedAt = r.now()
		st.contributions[id] = c
		changed = true
		return nil
	})
	return changed, err
}

func (r contributionRepo) SumCompletedCharityCents(_ context.Context, campaignID, excludeID string) (int64, error) {
	var sum int64
	err := r.do(func(st *state) error {
		for _, c := range st.contributions {
			if c.CampaignID == campaignID && c.ID != excludeID && c.IsCompleted() && c.CharityCents != nil {
				sum += *c.CharityCents
			}
		}
		return nil
	})
	return sum, err
}

func (r contributionRepo) CampaignTotals(_ context.Context, campaignID string) (domain.CampaignTotals, error) {
	var t domain.CampaignTotals
	err := r.do(func(st *state) error {
		for _, c := range st.contributions {
			if c.CampaignID != campaignID || !c.IsCompleted() {
				continue
			}
			t.RaisedCents += c.AmountCents
			t.PlatformFeeCents += c.FeeCents
			if c.CharityCents != nil {
				t.CharityCents += *c.CharityCents
			}
			t.ContributionCount++
		}
		return nil
	})
	return t, err
}

func (r contributionRepo) ListUnsettled(_ context.Context, from, to time.Time, limit int) ([]domain.Contribution, error) {
	var out []domain.Contribution
	err := r.do(func(st *state) error {
		for _, c := range st.contributions {
			if c.Status != domain.PaymentPending && c.Status != domain.PaymentProcessing {
				continue
			}
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type campaignRepo struct{ binding }

func (r campaignRepo) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	var out domain.Campaign
	err := r.do(func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok {
			return notFound("dream board", id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r campaignRepo) TransitionStatus(_ context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok || !slices.Contains(from, c.Status) {
			return nil
		}
		c.Status = to
		c.UpdatedAt = r.now()
		st.campaigns[id] = c
		changed = true
		return nil
	})
	return changed, err
}

type payoutRepo struct{ binding }

func (r payoutRepo) InsertIfAbsent(_ context.Context, p *domain.Payout) (bool, error) {
	created := false
	err := r.do(func(st *state) error {
		for _, existing := range st.payouts {
			if existing.CampaignID == p.CampaignID && existing.Type == p.Type {
				return nil
			}
		}
		p.ID = uuid.NewString()
		p.Status = domain.PayoutPending
		p.CreatedAt = r.now()
		p.UpdatedAt = p.CreatedAt
		p.RecipientData = maps.Clone(p.RecipientData)
		st.payouts[p.ID] = *p
		created = true
		return nil
	})
	return created, err
}

func (r payoutRepo) GetByID(_ context.Context, id string) (*domain.Payout, error) {
	var out domain.Payout
	err := r.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok {
			return notFound("payout", id)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r payoutRepo) ListByCampaign(_ context.Context, campaignID string) ([]domain.Payout, error) {
	var out []domain.Payout
	err := r.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.CampaignID == campaignID {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPayouts(out)
	return out, err
}

func (r payoutRepo) update(id string, fn func(p *domain.Payout)) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok || p.Status == domain.PayoutCompleted {
			return nil
		}
		fn(&p)
		p.UpdatedAt = r.now()
		st.payouts[id] = p
		changed = true
		return nil
	})
	return changed, err
}

func (r payoutRepo) Claim(_ context.Context, id string) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok || (p.Status != domain.PayoutPending && p.Status != domain.PayoutFailed) {
			return nil
		}
		p.Status = domain.PayoutProcessing
		p.ErrorMessage = nil
		p.UpdatedAt = r.now()
		st.payouts[id] = p
		changed = true
		return nil
	})
	return changed, err
}

func (r payoutRepo) ReleaseClaim(_ context.Context, id string) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok || p.Status != domain.PayoutProcessing || p.ExternalRef != nil {
			return nil
		}
		p.Status = domain.PayoutPending
		p.UpdatedAt = r.now()
		st.payouts[id] = p
		changed = true
		return nil
	})
	return changed, err
}

func (r payoutRepo) MarkProcessing(_ context.Context, id string, externalRef *string) (bool, error) {
	return r.update(id, func(p *domain.Payout) {
		p.Status = domain.PayoutProcessing
		if externalRef != nil {
			p.ExternalRef = externalRef
		}
		p.ErrorMessage = nil
	})
}

func (r payoutRepo) MarkCompleted(_ context.Context, id string, externalRef *string) (bool, error) {
	return r.update(id, func(p *domain.Payout) {
		now := r.now()
		p.Status = domain.PayoutCompleted
		if externalRef != nil {
			p.ExternalRef = externalRef
		}
		p.ErrorMessage = nil
		p.CompletedAt = &now
	})
}

func (r payoutRepo) MarkFailed(_ context.Context, id string, reason string) (bool, error) {
	return r.update(id, func(p *domain.Payout) {
		p.Status = domain.PayoutFailed
		p.ErrorMessage = &reason
	})
}

func (r payoutRepo) MergeRecipientData(_ context.Context, id string, data map[string]any) error {
	return r.do(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok {
			return notFound("payout", id)
		}
		merged := maps.Clone(p.RecipientData)
		if merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, data)
		p.RecipientData = merged
		p.UpdatedAt = r.now()
		st.payouts[id] = p
		return nil
	})
}

func (r payoutRepo) CompletionSummary(_ context.Context, campaignID string) (domain.PayoutCompletion, error) {
	var c domain.PayoutCompletion
	err := r.do(func(st *state) error {
		for _, p := range st.payouts {
			if p.CampaignID != campaignID {
				continue
			}
			c.Total++
			if p.Status == domain.PayoutCompleted {
				c.Completed++
			}
		}
		return nil
	})
	return c, err
}

func (r payoutRepo) ClaimPending(_ context.Context, types []domain.PayoutType, limit int) ([]domain.Payout, error) {
	var out []domain.Payout
	err := r.do(func(st *state) error {
		var candidates []domain.Payout
		for _, p := range st.payouts {
			if p.Status == domain.PayoutPending && slices.Contains(types, p.Type) {
				candidates = append(candidates, p)
			}
		}
		sortPayouts(candidates)
		for _, p := range candidates {
			if len(out) >= limit {
				break
			}
			p.Status = domain.PayoutProcessing
			p.UpdatedAt = r.now()
			st.payouts[p.ID] = p
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func sortPayouts(items []domain.Payout) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Type < items[j].Type
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

type auditRepo struct{ binding }

func (r auditRepo) Record(_ context.Context, e domain.AuditEntry) error {
	return r.do(func(st *state) error {
		e.ID = uuid.NewString()
		e.CreatedAt = r.now()
		st.audit = append(st.audit, e)
		return nil
	})
}

type eventRepo struct{ binding }

func (r eventRepo) ActiveSubscriptions(_ context.Context, partnerID string) ([]domain.PartnerSubscription, error) {
	var out []domain.PartnerSubscription
	err := r.do(func(st *state) error {
		for _, s := range st.subscriptions {
			if s.PartnerID == partnerID && s.Active {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r eventRepo) Enqueue(_ context.Context, events []domain.PartnerEvent) error {
	return r.do(func(st *state) error {
		for _, e := range events {
			if _, ok := st.subscriptions[e.SubscriptionID]; !ok {
				return notFound("subscription", e.SubscriptionID)
			}
			e.Status = domain.EventPending
			e.CreatedAt = r.now()
			e.NextAttemptAt = e.CreatedAt
			st.events[e.ID] = e
		}
		return nil
	})
}

func (r eventRepo) ClaimDue(_ context.Context, now, leaseUntil time.Time, limit int) ([]domain.DeliveryTarget, error) {
	var out []domain.DeliveryTarget
	err := r.do(func(st *state) error {
		var due []domain.PartnerEvent
		for _, e := range st.events {
			if e.Status == domain.EventPending && !e.NextAttemptAt.After(now) {
				due = append(due, e)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
		for _, e := range due {
			if len(out) >= limit {
				break
			}
			sub := st.subscriptions[e.SubscriptionID]
			e.NextAttemptAt = leaseUntil
			st.events[e.ID] = e
			out = append(out, domain.DeliveryTarget{Event: e, URL: sub.URL, Secret: sub.Secret})
		}
		return nil
	})
	return out, err
}

func (r eventRepo) MarkDelivered(_ context.Context, id string, statusCode int) error {
	return r.do(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return notFound("partner event", id)
		}
		now := r.now()
		e.Status = domain.EventDelivered
		e.Attempts++
		e.LastStatusCode = &statusCode
		e.LastError = nil
		e.DeliveredAt = &now
		st.events[id] = e
		return nil
	})
}

func (r eventRepo) MarkAttemptFailed(_ context.Context, id string, attempts int, next *time.Time, statusCode *int, reason string) error {
	return r.do(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return notFound("partner event", id)
		}
		e.Attempts = attempts
		e.LastStatusCode = statusCode
		e.LastError = &reason
		if next == nil {
			e.Status = domain.EventFailed
		} else {
			e.Status = domain.EventPending
			e.NextAttemptAt = *next
		}
		st.events[id] = e
		return nil
	})
}
