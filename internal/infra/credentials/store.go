// Package credentials reads payout channel API keys stored in the
// integration_tokens table. Environment variables take precedence; the
// table lets operators rotate keys without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

const (
	ProviderKarri     = "karri"
	ProviderStripe    = "stripe"
	ProviderTakealot  = "takealot_giftcard"
	ProviderGivenGain = "givengain"
)

// Providers lists every provider with a stored credential.
var Providers = []string{ProviderKarri, ProviderStripe, ProviderTakealot, ProviderGivenGain}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token or "" when none exists.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectChannelToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken stores or replaces the token of a known provider.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	if !known(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	return s.upsert(ctx, provider, token, props)
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertChannelToken, provider, token, raw)
	return err
}
