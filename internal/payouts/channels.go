package payouts

import (
	"context"
	"fmt"
	"strings"

	"dreamboard/internal/domain"
	"dreamboard/internal/providers/giftcard"
	"dreamboard/internal/providers/givengain"
	"dreamboard/internal/providers/karri"
	"dreamboard/internal/providers/stripe"
)

// ChannelStatus is the outcome a channel reports for one disbursement.
type ChannelStatus string

const (
	ChannelCompleted ChannelStatus = "completed"
	ChannelPending   ChannelStatus = "pending"
	ChannelFailed    ChannelStatus = "failed"
)

// ChannelRequest is one disbursement handed to a channel.
type ChannelRequest struct {
	Payout      domain.Payout
	Campaign    domain.Campaign
	Description string
}

// ChannelResult is the channel's answer. RecipientData is merged into the
// payout's recipient data.
type ChannelResult struct {
	Status        ChannelStatus
	ExternalRef   string
	Reason        string
	RecipientData map[string]any
}

// Channel disburses one payout type. Transport failures are returned as
// errors; business declines as ChannelFailed results.
type Channel interface {
	Type() domain.PayoutType
	// Enabled reports whether the automation flag is on and credentials exist.
	Enabled() bool
	Send(ctx context.Context, req ChannelRequest) (ChannelResult, error)
}

func recipientString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func parseStatus(s string) ChannelStatus {
	switch ChannelStatus(s) {
	case ChannelCompleted:
		return ChannelCompleted
	case ChannelFailed:
		return ChannelFailed
	}
	return ChannelPending
}

// KarriChannel tops up the recipient's Karri card.
type KarriChannel struct {
	Client *karri.Client
	Flag   bool
}

func (c KarriChannel) Type() domain.PayoutType { return domain.PayoutCardTopUp }
func (c KarriChannel) Enabled() bool {
	return c.Flag && c.Client != nil && c.Client.HasCredentials()
}

func (c KarriChannel) Send(ctx context.Context, req ChannelRequest) (ChannelResult, error) {
	card := recipientString(req.Payout.RecipientData, "cardNumber", "card_number")
	if card == "" {
		return ChannelResult{Status: ChannelFailed, Reason: "missing card number"}, nil
	}
	res, err := c.Client.TopUp(ctx, karri.TopUpRequest{
		CardNumber:  card,
		AmountCents: req.Payout.NetCents,
		Reference:   req.Payout.ID,
		Description: req.Description,
	})
	if err != nil {
		return ChannelResult{}, err
	}
	return ChannelResult{Status: parseStatus(res.Status), ExternalRef: res.TransactionID, Reason: res.ErrorMessage}, nil
}

// BankTransferChannel pays into the recipient's Stripe connected account.
type BankTransferChannel struct {
	Client *stripe.Client
	Flag   bool
}

func (c BankTransferChannel) Type() domain.PayoutType { return domain.PayoutBankTransfer }
func (c BankTransferChannel) Enabled() bool {
	return c.Flag && c.Client != nil && c.Client.HasCredentials()
}

func (c BankTransferChannel) Send(ctx context.Context, req ChannelRequest) (ChannelResult, error) {
	res, err := c.Client.Transfer(ctx, stripe.TransferRequest{
		PayoutID:    req.Payout.ID,
		CampaignID:  req.Payout.CampaignID,
		Destination: recipientString(req.Payout.RecipientData, "stripeAccountId", "stripe_account_id"),
		AmountCents: req.Payout.NetCents,
		Currency:    "zar",
		Description: req.Description,
	})
	if err != nil {
		return ChannelResult{}, err
	}
	if res.Failed {
		return ChannelResult{Status: ChannelFailed, Reason: res.Reason}, nil
	}
	return ChannelResult{Status: ChannelCompleted, ExternalRef: res.TransferID}, nil
}

// GiftCardChannel issues a Takealot gift card to the recipient's email.
type GiftCardChannel struct {
	Client *giftcard.Client
	Flag   bool
}

func (c GiftCardChannel) Type() domain.PayoutType { return domain.PayoutGiftCard }
func (c GiftCardChannel) Enabled() bool {
	return c.Flag && c.Client != nil && c.Client.HasCredentials()
}

func (c GiftCardChannel) Send(ctx context.Context, req ChannelRequest) (ChannelResult, error) {
	email := recipientString(req.Payout.RecipientData, "email")
	if email == "" {
		email = req.Campaign.PayoutEmail
	}
	if email == "" {
		return ChannelResult{Status: ChannelFailed, Reason: "missing recipient email"}, nil
	}
	res, err := c.Client.Issue(ctx, giftcard.IssueRequest{
		AmountCents:    req.Payout.NetCents,
		RecipientEmail: email,
		Reference:      req.Payout.ID,
		Message:        req.Description,
	})
	if err != nil {
		return ChannelResult{}, err
	}
	extra := map[string]any{}
	if res.URL != "" {
		extra["giftCardUrl"] = res.URL
	}
	if res.Code != "" {
		extra["giftCardCode"] = res.Code
	}
	return ChannelResult{Status: parseStatus(res.Status), ExternalRef: res.OrderID, Reason: res.ErrorMessage, RecipientData: extra}, nil
}

// CharityChannel donates the charity share through GivenGain.
type CharityChannel struct {
	Client *givengain.Client
	Flag   bool
}

func (c CharityChannel) Type() domain.PayoutType { return domain.PayoutCharityDonation }
func (c CharityChannel) Enabled() bool {
	return c.Flag && c.Client != nil && c.Client.HasCredentials()
}

func (c CharityChannel) Send(ctx context.Context, req ChannelRequest) (ChannelResult, error) {
	cause := recipientString(req.Payout.RecipientData, "causeId")
	if cause == "" {
		return ChannelResult{Status: ChannelFailed, Reason: "missing charity cause"}, nil
	}
	donor := strings.TrimSpace(req.Campaign.ChildName)
	if donor == "" {
		donor = "Dream Board donor"
	}
	res, err := c.Client.Donate(ctx, givengain.DonationRequest{
		CauseID:     cause,
		AmountCents: req.Payout.NetCents,
		DonorName:   donor,
		DonorEmail:  req.Campaign.PayoutEmail,
		Reference:   req.Payout.ID,
		Message:     req.Description,
	})
	if err != nil {
		return ChannelResult{}, err
	}
	extra := map[string]any{"donationId": res.DonationID}
	if res.ReceiptURL != "" {
		extra["receiptUrl"] = res.ReceiptURL
	}
	if res.CertificateURL != "" {
		extra["certificateUrl"] = res.CertificateURL
	}
	return ChannelResult{Status: parseStatus(res.Status), ExternalRef: res.DonationID, Reason: res.ErrorMessage, RecipientData: extra}, nil
}

// ChannelSet indexes channels by payout type.
type ChannelSet map[domain.PayoutType]Channel

// NewChannelSet indexes the given channels.
func NewChannelSet(channels ...Channel) ChannelSet {
	set := make(ChannelSet, len(channels))
	for _, ch := range channels {
		set[ch.Type()] = ch
	}
	return set
}

// EnabledTypes lists the payout types whose channel is enabled.
func (s ChannelSet) EnabledTypes() []domain.PayoutType {
	var out []domain.PayoutType
	for _, t := range []domain.PayoutType{domain.PayoutCardTopUp, domain.PayoutBankTransfer, domain.PayoutGiftCard, domain.PayoutCharityDonation} {
		if ch, ok := s[t]; ok && ch.Enabled() {
			out = append(out, t)
		}
	}
	return out
}

func (s ChannelSet) lookup(t domain.PayoutType) (Channel, error) {
	ch, ok := s[t]
	if !ok {
		return nil, fmt.Errorf("payout type %s: %w", t, domain.ErrUnsupportedPayoutType)
	}
	if !ch.Enabled() {
		return nil, fmt.Errorf("payout type %s: %w", t, domain.ErrAutomationDisabled)
	}
	return ch, nil
}
