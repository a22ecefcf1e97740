package domain

import "time"

// PaymentStatus is the shared status vocabulary across providers.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// PaymentProvider names a payment channel contributors can pay through.
type PaymentProvider string

const (
	ProviderPayFast  PaymentProvider = "payfast"
	ProviderOzow     PaymentProvider = "ozow"
	ProviderSnapScan PaymentProvider = "snapscan"
	ProviderSandbox  PaymentProvider = "sandbox"
)

// Contribution is one pledge against a campaign.
type Contribution struct {
	ID              string
	CampaignID      string
	PartnerID       string
	ContributorName string
	Message         string
	AmountCents     int64
	FeeCents        int64
	// CharityCents stays nil until the contribution completes and is never
	// rewritten afterwards.
	CharityCents *int64
	Provider     PaymentProvider
	PaymentRef   string
	Status       PaymentStatus
	IPAddress    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpectedChargeCents is the total the payer was asked to pay.
func (c Contribution) ExpectedChargeCents() int64 {
	return c.AmountCents + c.FeeCents
}

// IsCompleted reports whether the contribution reached its terminal paid state.
func (c Contribution) IsCompleted() bool {
	return c.Status == PaymentCompleted
}
