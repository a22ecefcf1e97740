package repo

import (
	"context"
	"encoding/json"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
)

// TxRunner is satisfied by *infra.SQLRunner.
type TxRunner interface {
	infra.SQLExecutor
	InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error
}

// Store implements domain.Store on PostgreSQL.
type Store struct {
	runner TxRunner
}

// NewStore builds a Store over the given runner.
func NewStore(runner TxRunner) *Store {
	return &Store{runner: runner}
}

// Repos returns repositories executing outside any transaction.
func (s *Store) Repos() domain.Repositories {
	return reposFor(s.runner)
}

// WithTx runs fn in a read-committed transaction.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Repositories) error) error {
	return s.runner.InTx(ctx, func(exec infra.SQLExecutor) error {
		return fn(reposFor(exec))
	})
}

func reposFor(exec infra.SQLExecutor) domain.Repositories {
	return domain.Repositories{
		Contributions: NewContributionRepository(exec),
		Campaigns:     NewCampaignRepository(exec),
		Payouts:       NewPayoutRepository(exec),
		Audit:         NewAuditRepository(exec),
		Events:        NewPartnerEventRepository(exec),
	}
}

func marshalJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.Store = (*Store)(nil)
