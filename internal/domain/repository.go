package domain

import (
	"context"
	"time"
)

// ContributionRepository persists contributions.
type ContributionRepository interface {
	Create(ctx context.Context, c *Contribution) error
	GetByID(ctx context.Context, id string) (*Contribution, error)
	GetByPaymentRef(ctx context.Context, provider PaymentProvider, ref string) (*Contribution, error)
	// UpdateStatus never moves a completed contribution. It reports whether a
	// row changed.
	UpdateStatus(ctx context.Context, id string, status PaymentStatus) (bool, error)
	// MarkCompleted sets the terminal status and charity cents in one write.
	MarkCompleted(ctx context.Context, id string, charityCents *int64) (bool, error)
	SumCompletedCharityCents(ctx context.Context, campaignID, excludeID string) (int64, error)
	CampaignTotals(ctx context.Context, campaignID string) (CampaignTotals, error)
	// ListUnsettled returns pending or processing contributions created in
	// [from, to), oldest first.
	ListUnsettled(ctx context.Context, from, to time.Time, limit int) ([]Contribution, error)
}

// CampaignRepository reads campaigns and applies guarded status transitions.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*Campaign, error)
	// TransitionStatus moves the campaign to `to` only when its current status
	// is one of `from`.
	TransitionStatus(ctx context.Context, id string, from []CampaignStatus, to CampaignStatus) (bool, error)
}

// PayoutRepository persists payouts.
type PayoutRepository interface {
	// InsertIfAbsent is a conflict-free insert keyed by (campaign, type). It
	// fills p on success and reports false when the row already existed.
	InsertIfAbsent(ctx context.Context, p *Payout) (bool, error)
	GetByID(ctx context.Context, id string) (*Payout, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]Payout, error)
	// Claim moves a pending or failed payout to processing. Exactly one of
	// several concurrent callers sees true.
	Claim(ctx context.Context, id string) (bool, error)
	// ReleaseClaim returns a processing payout that was never sent to pending.
	ReleaseClaim(ctx context.Context, id string) (bool, error)
	MarkProcessing(ctx context.Context, id string, externalRef *string) (bool, error)
	MarkCompleted(ctx context.Context, id string, externalRef *string) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	MergeRecipientData(ctx context.Context, id string, data map[string]any) error
	CompletionSummary(ctx context.Context, campaignID string) (PayoutCompletion, error)
	// ClaimPending flips up to limit pending payouts of the given types to
	// processing and returns them.
	ClaimPending(ctx context.Context, types []PayoutType, limit int) ([]Payout, error)
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// PartnerEventRepository is the partner webhook outbox.
type PartnerEventRepository interface {
	ActiveSubscriptions(ctx context.Context, partnerID string) ([]PartnerSubscription, error)
	Enqueue(ctx context.Context, events []PartnerEvent) error
	// ClaimDue leases due events until leaseUntil so other workers skip them.
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]DeliveryTarget, error)
	MarkDelivered(ctx context.Context, id string, statusCode int) error
	// MarkAttemptFailed records a failed attempt. A nil next attempt marks the
	// event as permanently failed.
	MarkAttemptFailed(ctx context.Context, id string, attempts int, next *time.Time, statusCode *int, reason string) error
}

// Repositories bundles repositories bound to the same executor.
type Repositories struct {
	Contributions ContributionRepository
	Campaigns     CampaignRepository
	Payouts       PayoutRepository
	Audit         AuditRepository
	Events        PartnerEventRepository
}

// Store hands out repositories and runs atomic units of work.
type Store interface {
	Repos() Repositories
	// WithTx runs fn in one transaction; any error rolls back.
	WithTx(ctx context.Context, fn func(Repositories) error) error
}
