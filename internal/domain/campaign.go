package domain

import (
	"errors"
	"time"
)

// CampaignStatus enumerates the dream board lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignFunded    CampaignStatus = "funded"
	CampaignClosed    CampaignStatus = "closed"
	CampaignPaidOut   CampaignStatus = "paid_out"
	CampaignCancelled CampaignStatus = "cancelled"
	CampaignExpired   CampaignStatus = "expired"
)

// AcceptsContributions reports whether new pledges may be taken.
func (s CampaignStatus) AcceptsContributions() bool {
	return s == CampaignActive || s == CampaignFunded
}

// Closeable reports whether the campaign may transition to closed.
func (s CampaignStatus) Closeable() bool {
	return s == CampaignActive || s == CampaignFunded
}

// SplitType selects how charity cents are carved out of contributions.
type SplitType string

const (
	SplitPercentage SplitType = "percentage"
	SplitThreshold  SplitType = "threshold"
)

// CharityConfig is the optional charity split attached to a campaign.
// Fields other than Enabled are only meaningful when Enabled is true.
type CharityConfig struct {
	Enabled        bool
	CharityID      *string
	CauseID        *string
	SplitType      *SplitType
	PercentageBps  *int64
	ThresholdCents *int64
}

// Validate checks the split parameters are consistent with the split type.
func (c CharityConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CharityID == nil || *c.CharityID == "" {
		return errors.New("charity id is required when charity is enabled")
	}
	if c.SplitType == nil {
		return errors.New("split type is required when charity is enabled")
	}
	switch *c.SplitType {
	case SplitPercentage:
		if c.ThresholdCents != nil {
			return errors.New("threshold is not allowed for percentage split")
		}
		if c.PercentageBps == nil || *c.PercentageBps < 1 || *c.PercentageBps > 10000 {
			return errors.New("percentage must be between 1 and 10000 basis points")
		}
	case SplitThreshold:
		if c.PercentageBps != nil {
			return errors.New("percentage is not allowed for threshold split")
		}
		if c.ThresholdCents == nil || *c.ThresholdCents <= 0 {
			return errors.New("threshold must be positive")
		}
	default:
		return errors.New("unknown split type")
	}
	return nil
}

// IsThreshold reports whether an enabled config uses the running-fill split.
func (c CharityConfig) IsThreshold() bool {
	return c.Enabled && c.SplitType != nil && *c.SplitType == SplitThreshold
}

// Campaign is a dream board: a single fundraising goal.
type Campaign struct {
	ID            string
	PartnerID     string
	Slug          string
	ChildName     string
	GiftName      string
	GoalCents     int64
	Status        CampaignStatus
	Charity       CharityConfig
	PayoutMethod  PayoutType
	PayoutEmail   string
	RecipientData map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CampaignTotals summarises completed contributions of a campaign.
type CampaignTotals struct {
	RaisedCents       int64
	PlatformFeeCents  int64
	CharityCents      int64
	ContributionCount int64
}

// NetGiftCents is what remains for the gift after fees and charity.
func (t CampaignTotals) NetGiftCents() int64 {
	return t.RaisedCents - t.PlatformFeeCents - t.CharityCents
}
