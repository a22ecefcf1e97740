package events

import (
	"time"

	"dreamboard/internal/domain"
)

// Envelope is the JSON body delivered to partner endpoints.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// ContributionData is the public view of a contribution.
type ContributionData struct {
	ID              string                 `json:"id"`
	DreamBoardID    string                 `json:"dream_board_id"`
	ContributorName string                 `json:"contributor_name,omitempty"`
	AmountCents     int64                  `json:"amount_cents"`
	FeeCents        int64                  `json:"fee_cents"`
	CharityCents    *int64                 `json:"charity_cents,omitempty"`
	Provider        domain.PaymentProvider `json:"payment_provider"`
	Status          domain.PaymentStatus   `json:"payment_status"`
	CreatedAt       time.Time              `json:"created_at"`
}

// DreamBoardData is the public view of a campaign and its totals.
type DreamBoardData struct {
	ID                string                 `json:"id"`
	Slug              string                 `json:"slug"`
	ChildName         string                 `json:"child_name"`
	GiftName          string                 `json:"gift_name"`
	Status            domain.CampaignStatus  `json:"status"`
	GoalCents         int64                  `json:"goal_cents"`
	RaisedCents       int64                  `json:"raised_cents"`
	CharityCents      int64                  `json:"charity_cents"`
	ContributionCount int64                  `json:"contribution_count"`
	Payouts           []domain.PayoutSummary `json:"payouts,omitempty"`
}

// PayoutData is the public view of a payout.
type PayoutData struct {
	ID           string              `json:"id"`
	DreamBoardID string              `json:"dream_board_id"`
	Type         domain.PayoutType   `json:"type"`
	Status       domain.PayoutStatus `json:"status"`
	NetCents     int64               `json:"net_cents"`
	ExternalRef  *string             `json:"external_ref,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// NewPayoutData builds the public view of p.
func NewPayoutData(p domain.Payout) PayoutData {
	return PayoutData{
		ID:           p.ID,
		DreamBoardID: p.CampaignID,
		Type:         p.Type,
		Status:       p.Status,
		NetCents:     p.NetCents,
		ExternalRef:  p.ExternalRef,
		ErrorMessage: p.ErrorMessage,
		CompletedAt:  p.CompletedAt,
	}
}

// ContributionReceived is the data of contribution.received events.
type ContributionReceived struct {
	Contribution ContributionData `json:"contribution"`
	DreamBoard   DreamBoardData   `json:"dream_board"`
}

// NewContributionData builds the public view of c.
func NewContributionData(c domain.Contribution) ContributionData {
	return ContributionData{
		ID:              c.ID,
		DreamBoardID:    c.CampaignID,
		ContributorName: c.ContributorName,
		AmountCents:     c.AmountCents,
		FeeCents:        c.FeeCents,
		CharityCents:    c.CharityCents,
		Provider:        c.Provider,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
	}
}

// NewDreamBoardData builds the public view of a campaign.
func NewDreamBoardData(c domain.Campaign, t domain.CampaignTotals) DreamBoardData {
	return DreamBoardData{
		ID:                c.ID,
		Slug:              c.Slug,
		ChildName:         c.ChildName,
		GiftName:          c.GiftName,
		Status:            c.Status,
		GoalCents:         c.GoalCents,
		RaisedCents:       t.RaisedCents,
		CharityCents:      t.CharityCents,
		ContributionCount: t.ContributionCount,
	}
}
