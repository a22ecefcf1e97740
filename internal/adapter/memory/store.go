// Package memory is an in-process domain.Store used by sandbox mode and
// tests. Transactions are serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"dreamboard/internal/domain"
)

type state struct {
	campaigns     map[string]domain.Campaign
	contributions map[string]domain.Contribution
	payouts       map[string]domain.Payout
	audit         []domain.AuditEntry
	subscriptions map[string]domain.PartnerSubscription
	events        map[string]domain.PartnerEvent
}

func newState() *state {
	return &state{
		campaigns:     map[string]domain.Campaign{},
		contributions: map[string]domain.Contribution{},
		payouts:       map[string]domain.Payout{},
		subscriptions: map[string]domain.PartnerSubscription{},
		events:        map[string]domain.PartnerEvent{},
	}
}

// clone copies the maps. Values are copied by struct; nested maps and
// pointers are treated as immutable by the repositories.
func (s *state) clone() *state {
	return &state{
		campaigns:     maps.Clone(s.campaigns),
		contributions: maps.Clone(s.contributions),
		payouts:       maps.Clone(s.payouts),
		audit:         append([]domain.AuditEntry(nil), s.audit...),
		subscriptions: maps.Clone(s.subscriptions),
		events:        maps.Clone(s.events),
	}
}

// Store implements domain.Store in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithClock overrides the time source used for row timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() domain.Repositories {
	return s.repos(nil)
}

// WithTx holds the store lock for the whole unit of work and restores the
// snapshot when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(s.repos(s.st)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) repos(tx *state) domain.Repositories {
	b := binding{store: s, tx: tx}
	return domain.Repositories{
		Contributions: contributionRepo{b},
		Campaigns:     campaignRepo{b},
		Payouts:       payoutRepo{b},
		Audit:         auditRepo{b},
		Events:        eventRepo{b},
	}
}

// binding runs repository bodies either inside an open transaction or
// under the store lock.
type binding struct {
	store *Store
	tx    *state
}

func (b binding) do(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b binding) now() time.Time { return b.store.now() }

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(c domain.Campaign) domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
	}
	s.st.campaigns[c.ID] = c
	return c
}

// PutSubscription inserts or replaces a partner subscription.
func (s *Store) PutSubscription(sub domain.PartnerSubscription) domain.PartnerSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.st.subscriptions[sub.ID] = sub
	return sub
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.st.audit...)
}

// Events returns all outbox rows.
func (s *Store) Events() []domain.PartnerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PartnerEvent, 0, len(s.st.events))
	for _, e := range s.st.events {
		out = append(out, e)
	}
	return out
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

var _ domain.Store = (*Store)(nil)
