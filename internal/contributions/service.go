// Package contributions starts new pledges: it prices them, opens a payment
// with the chosen provider and records the pending contribution.
package contributions

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dreamboard/internal/domain"
	"dreamboard/internal/payments"
)

// Contribution limits in cents and characters.
const (
	MinAmountCents   = 2000
	MaxAmountCents   = 1_000_000
	MaxNameLength    = 100
	MaxMessageLength = 280
)

// FeePolicy prices the platform fee charged on top of a contribution.
type FeePolicy struct {
	Bps      int64
	MinCents int64
	MaxCents int64
}

// Fee returns Bps of amount rounded half up and clamped to [MinCents, MaxCents].
func (p FeePolicy) Fee(amountCents int64) int64 {
	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(p.Bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
	if fee < p.MinCents {
		fee = p.MinCents
	}
	if p.MaxCents > 0 && fee > p.MaxCents {
		fee = p.MaxCents
	}
	return fee
}

// Options configures the Service.
type Options struct {
	Fees FeePolicy
	// RefPrefix prefixes generated payment references.
	RefPrefix string
	// PublicBaseURL is where providers send notifications.
	PublicBaseURL string
}

// CreateInput is a contribution request.
type CreateInput struct {
	DreamBoardID    string
	ContributorName string
	Message         string
	AmountCents     int64
	Provider        domain.PaymentProvider
	PayerEmail      string
	ReturnURL       string
	CancelURL       string
	IPAddress       string
}

// CreateResult is the stored contribution and the payment to complete.
type CreateResult struct {
	Contribution domain.Contribution
	Intent       payments.Intent
}

// Service creates contributions.
type Service struct {
	store    domain.Store
	registry *payments.Registry
	opts     Options
	logger   zerolog.Logger
}

// NewService wires a Service.
func NewService(store domain.Store, registry *payments.Registry, opts Options, logger zerolog.Logger) *Service {
	if opts.RefPrefix == "" {
		opts.RefPrefix = "CHG"
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Service{store: store, registry: registry, opts: opts, logger: logger}
}

// NewPaymentRef returns "<prefix>-<32 uppercase hex>".
func NewPaymentRef(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func validate(in *CreateInput) error {
	in.ContributorName = strings.TrimSpace(in.ContributorName)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.DreamBoardID == "":
		return fmt.Errorf("dreamBoardId is required: %w", domain.ErrValidation)
	case in.AmountCents < MinAmountCents || in.AmountCents > MaxAmountCents:
		return fmt.Errorf("amountCents must be between %d and %d: %w", MinAmountCents, MaxAmountCents, domain.ErrValidation)
	case utf8.RuneCountInString(in.ContributorName) > MaxNameLength:
		return fmt.Errorf("contributorName must be at most %d characters: %w", MaxNameLength, domain.ErrValidation)
	case utf8.RuneCountInString(in.Message) > MaxMessageLength:
		return fmt.Errorf("message must be at most %d characters: %w", MaxMessageLength, domain.ErrValidation)
	case in.Provider == "":
		return fmt.Errorf("paymentProvider is required: %w", domain.ErrValidation)
	}
	return nil
}

// Create prices the contribution, opens the payment and stores the pending
// contribution. The payment is opened first so a provider failure leaves
// nothing behind.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if err := validate(&in); err != nil {
		return CreateResult{}, err
	}
	campaign, err := s.store.Repos().Campaigns.GetByID(ctx, in.DreamBoardID)
	if err != nil {
		return CreateResult{}, err
	}
	if !campaign.Status.AcceptsContributions() {
		return CreateResult{}, fmt.Errorf("dream board %s is %s: %w", campaign.ID, campaign.Status, domain.ErrBoardClosed)
	}
	adapter, ok := s.registry.Configured(in.Provider)
	if !ok {
		return CreateResult{}, fmt.Errorf("payment provider %q: %w", in.Provider, domain.ErrProviderUnavailable)
	}

	fee := s.opts.Fees.Fee(in.AmountCents)
	ref := NewPaymentRef(s.opts.RefPrefix)
	description := "Dream board contribution"
	if campaign.GiftName != "" {
		description = "Contribution towards " + campaign.GiftName
	}

	intent, err := adapter.CreateIntent(ctx, payments.IntentRequest{
		Reference:   ref,
		AmountCents: in.AmountCents + fee,
		Description: description,
		PayerEmail:  in.PayerEmail,
		ReturnURL:   in.ReturnURL,
		CancelURL:   in.CancelURL,
		NotifyURL:   s.opts.PublicBaseURL + "/webhooks/" + string(in.Provider),
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", string(in.Provider)).
			Str("dream_board_id", campaign.ID).
			Msg("contributions.intent_failed")
		return CreateResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}

	c := domain.Contribution{
		CampaignID:      campaign.ID,
		PartnerID:       campaign.PartnerID,
		ContributorName: in.ContributorName,
		Message:         in.Message,
		AmountCents:     in.AmountCents,
		FeeCents:        fee,
		Provider:        in.Provider,
		PaymentRef:      ref,
		Status:          domain.PaymentPending,
		IPAddress:       in.IPAddress,
	}
	if err := s.store.Repos().Contributions.Create(ctx, &c); err != nil {
		return CreateResult{}, err
	}
	s.logger.Info().
		Str("contribution_id", c.ID).
		Str("dream_board_id", campaign.ID).
		Str("provider", string(in.Provider)).
		Int64("charge_cents", c.ExpectedChargeCents()).
		Msg("contributions.created")
	return CreateResult{Contribution: c, Intent: *intent}, nil
}
