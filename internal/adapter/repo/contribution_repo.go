package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// ContributionRepositoryPG implements domain.ContributionRepository.
type ContributionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewContributionRepository constructs the repository.
func NewContributionRepository(sql infra.SQLExecutor) *ContributionRepositoryPG {
	return &ContributionRepositoryPG{sql: sql}
}

// Create inserts a contribution and fills its generated fields.
func (r *ContributionRepositoryPG) Create(ctx context.Context, c *domain.Contribution) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertContribution,
		c.CampaignID, c.PartnerID, c.ContributorName, c.Message, c.AmountCents, c.FeeCents,
		string(c.Provider), c.PaymentRef, string(c.Status), c.IPAddress,
	)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("contribution %s/%s: %w", c.Provider, c.PaymentRef, domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *ContributionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Contribution, error) {
	return r.scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectContributionByID, id), "contribution "+id)
}

func (r *ContributionRepositoryPG) GetByPaymentRef(ctx context.Context, provider domain.PaymentProvider, ref string) (*domain.Contribution, error) {
	return r.scanOne(r.sql.QueryRow(ctx, sqlinline.QSelectContributionByPaymentRef, string(provider), ref), "contribution "+ref)
}

func (r *ContributionRepositoryPG) scanOne(row pgx.Row, what string) (*domain.Contribution, error) {
	c, err := scanContribution(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var (
		c        domain.Contribution
		provider string
		status   string
	)
	err := row.Scan(
		&c.ID, &c.CampaignID, &c.PartnerID, &c.ContributorName, &c.Message, &c.AmountCents, &c.FeeCents,
		&c.CharityCents, &provider, &c.PaymentRef, &status, &c.IPAddress, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Provider = domain.PaymentProvider(provider)
	c.Status = domain.PaymentStatus(status)
	return &c, nil
}

func (r *ContributionRepositoryPG) ListUnsettled(ctx context.Context, from, to time.Time, limit int) ([]domain.Contribution, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUnsettledContributions, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ContributionRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateContributionStatus, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ContributionRepositoryPG) MarkCompleted(ctx context.Context, id string, charityCents *int64) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkContributionCompleted, id, charityCents)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ContributionRepositoryPG) SumCompletedCharityCents(ctx context.Context, campaignID, excludeID string) (int64, error) {
	var sum int64
	if err := r.sql.QueryRow(ctx, sqlinline.QSumCompletedCharityCents, campaignID, excludeID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *ContributionRepositoryPG) CampaignTotals(ctx context.Context, campaignID string) (domain.CampaignTotals, error) {
	var t domain.CampaignTotals
	err := r.sql.QueryRow(ctx, sqlinline.QCampaignContributionTotals, campaignID).
		Scan(&t.RaisedCents, &t.PlatformFeeCents, &t.CharityCents, &t.ContributionCount)
	return t, err
}

var _ domain.ContributionRepository = (*ContributionRepositoryPG)(nil)
