package domain

import "time"

// PayoutType identifies the disbursement channel of a payout.
type PayoutType string

const (
	PayoutCardTopUp       PayoutType = "karri_card_topup"
	PayoutBankTransfer    PayoutType = "bank_transfer"
	PayoutGiftCard        PayoutType = "takealot_gift_card"
	PayoutCharityDonation PayoutType = "charity_donation"
)

// IsGiftMethod reports whether the type can receive gift proceeds.
func (t PayoutType) IsGiftMethod() bool {
	switch t {
	case PayoutCardTopUp, PayoutBankTransfer, PayoutGiftCard:
		return true
	}
	return false
}

// PayoutStatus is the lifecycle of a payout row.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Payout is a disbursement record. At most one exists per campaign and type.
type Payout struct {
	ID            string
	CampaignID    string
	PartnerID     string
	Type          PayoutType
	GrossCents    int64
	FeeCents      int64
	CharityCents  int64
	NetCents      int64
	Status        PayoutStatus
	RecipientData map[string]any
	ExternalRef   *string
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// PayoutSummary is the compact view returned by the close API.
type PayoutSummary struct {
	ID       string       `json:"id"`
	Type     PayoutType   `json:"type"`
	Status   PayoutStatus `json:"status"`
	NetCents int64        `json:"netCents"`
}

// Summary returns the compact view of the payout.
func (p Payout) Summary() PayoutSummary {
	return PayoutSummary{ID: p.ID, Type: p.Type, Status: p.Status, NetCents: p.NetCents}
}

// PayoutCompletion counts payouts of a campaign by completion.
type PayoutCompletion struct {
	Total     int
	Completed int
}

// AllCompleted reports whether every payout of the campaign is completed.
func (c PayoutCompletion) AllCompleted() bool {
	return c.Total > 0 && c.Total == c.Completed
}
