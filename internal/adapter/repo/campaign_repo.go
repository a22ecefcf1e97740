package repo

import (
	"context"
	"fmt"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// CampaignRepositoryPG implements domain.CampaignRepository over dream_boards.
type CampaignRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCampaignRepository constructs the repository.
func NewCampaignRepository(sql infra.SQLExecutor) *CampaignRepositoryPG {
	return &CampaignRepositoryPG{sql: sql}
}

func (r *CampaignRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var (
		c            domain.Campaign
		status       string
		splitType    *string
		payoutMethod string
		recipient    []byte
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectCampaignByID, id).Scan(
		&c.ID, &c.PartnerID, &c.Slug, &c.ChildName, &c.GiftName, &c.GoalCents, &status,
		&c.Charity.Enabled, &c.Charity.CharityID, &c.Charity.CauseID, &splitType,
		&c.Charity.PercentageBps, &c.Charity.ThresholdCents,
		&payoutMethod, &c.PayoutEmail, &recipient, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("dream board %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	c.Status = domain.CampaignStatus(status)
	c.PayoutMethod = domain.PayoutType(payoutMethod)
	if splitType != nil {
		st := domain.SplitType(*splitType)
		c.Charity.SplitType = &st
	}
	if c.RecipientData, err = unmarshalJSON(recipient); err != nil {
		return nil, fmt.Errorf("dream board %s recipient data: %w", id, err)
	}
	return &c, nil
}

func (r *CampaignRepositoryPG) TransitionStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) (bool, error) {
	fromText := make([]string, 0, len(from))
	for _, s := range from {
		fromText = append(fromText, string(s))
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionCampaignStatus, id, fromText, string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ domain.CampaignRepository = (*CampaignRepositoryPG)(nil)
