package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// PayoutRepositoryPG implements domain.PayoutRepository.
type PayoutRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPayoutRepository constructs the repository.
func NewPayoutRepository(sql infra.SQLExecutor) *PayoutRepositoryPG {
	return &PayoutRepositoryPG{sql: sql}
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING: a conflicting insert
// returns no row.
func (r *PayoutRepositoryPG) InsertIfAbsent(ctx context.Context, p *domain.Payout) (bool, error) {
	recipient, err := marshalJSON(p.RecipientData)
	if err != nil {
		return false, err
	}
	var status string
	err = r.sql.QueryRow(ctx, sqlinline.QInsertPayoutIfAbsent,
		p.CampaignID, p.PartnerID, string(p.Type), p.GrossCents, p.FeeCents, p.CharityCents, p.NetCents, recipient,
	).Scan(&p.ID, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	p.Status = domain.PayoutStatus(status)
	return true, nil
}

func (r *PayoutRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Payout, error) {
	p, err := scanPayout(r.sql.QueryRow(ctx, sqlinline.QSelectPayoutByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("payout %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *PayoutRepositoryPG) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Payout, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPayoutsByCampaign, campaignID)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func (r *PayoutRepositoryPG) Claim(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, sqlinline.QClaimPayout, id)
}

func (r *PayoutRepositoryPG) ReleaseClaim(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, sqlinline.QReleasePayoutClaim, id)
}

func (r *PayoutRepositoryPG) MarkProcessing(ctx context.Context, id string, externalRef *string) (bool, error) {
	return r.exec(ctx, sqlinline.QMarkPayoutProcessing, id, externalRef)
}

func (r *PayoutRepositoryPG) MarkCompleted(ctx context.Context, id string, externalRef *string) (bool, error) {
	return r.exec(ctx, sqlinline.QMarkPayoutCompleted, id, externalRef)
}

func (r *PayoutRepositoryPG) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	return r.exec(ctx, sqlinline.QMarkPayoutFailed, id, reason)
}

func (r *PayoutRepositoryPG) MergeRecipientData(ctx context.Context, id string, data map[string]any) error {
	raw, err := marshalJSON(data)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QMergePayoutRecipientData, id, raw)
	return err
}

func (r *PayoutRepositoryPG) CompletionSummary(ctx context.Context, campaignID string) (domain.PayoutCompletion, error) {
	var c domain.PayoutCompletion
	err := r.sql.QueryRow(ctx, sqlinline.QPayoutCompletionSummary, campaignID).Scan(&c.Total, &c.Completed)
	return c, err
}

func (r *PayoutRepositoryPG) ClaimPending(ctx context.Context, types []domain.PayoutType, limit int) ([]domain.Payout, error) {
	typeText := make([]string, 0, len(types))
	for _, t := range types {
		typeText = append(typeText, string(t))
	}
	rows, err := r.sql.Query(ctx, sqlinline.QClaimPendingPayouts, typeText, limit)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func (r *PayoutRepositoryPG) exec(ctx context.Context, query string, args ...any) (bool, error) {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func collectPayouts(rows pgx.Rows) ([]domain.Payout, error) {
	defer rows.Close()
	var items []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		p          domain.Payout
		payoutType string
		status     string
		recipient  []byte
	)
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.PartnerID, &payoutType, &p.GrossCents, &p.FeeCents, &p.CharityCents, &p.NetCents,
		&status, &recipient, &p.ExternalRef, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Type = domain.PayoutType(payoutType)
	p.Status = domain.PayoutStatus(status)
	if p.RecipientData, err = unmarshalJSON(recipient); err != nil {
		return nil, fmt.Errorf("payout %s recipient data: %w", p.ID, err)
	}
	return &p, nil
}

var _ domain.PayoutRepository = (*PayoutRepositoryPG)(nil)
