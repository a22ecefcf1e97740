// Package stripe settles bank-transfer payouts as Stripe Connect transfers.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/transfer"

	"dreamboard/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("stripe: secret key is required")

// Options configures the Stripe client.
type Options struct {
	SecretKey string
	// BaseURL overrides the Stripe API host, used by tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client creates transfers to connected accounts.
type Client struct {
	key       string
	transfers *transfer.Client
	logger    *infra.Logger
}

// TransferRequest moves AmountCents to a connected account.
type TransferRequest struct {
	PayoutID    string
	CampaignID  string
	Destination string
	AmountCents int64
	Currency    string
	Description string
}

// TransferResult reports the created transfer. Declined transfers are
// returned as results with Failed set, not as errors.
type TransferResult struct {
	TransferID string
	Failed     bool
	Reason     string
}

// NewClient constructs a client. The Stripe backend retries network errors
// twice on its own.
func NewClient(opts Options) (*Client, error) {
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := zerolog.Nop()
		logger = &l
	}
	cfg := &stripego.BackendConfig{
		HTTPClient:        opts.HTTPClient,
		MaxNetworkRetries: stripego.Int64(2),
		LeveledLogger:     leveledLogger{logger: logger},
	}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cfg.URL = stripego.String(base)
	}
	key := strings.TrimSpace(opts.SecretKey)
	return &Client{
		key:       key,
		transfers: &transfer.Client{B: stripego.GetBackendWithConfig(stripego.APIBackend, cfg), Key: key},
		logger:    logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.key != ""
}

// Transfer creates the transfer, keyed by payout id so retries never pay
// twice.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Destination) == "" {
		return &TransferResult{Failed: true, Reason: "missing connected account"}, nil
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = string(stripego.CurrencyZAR)
	}
	params := &stripego.TransferParams{
		Amount:      stripego.Int64(req.AmountCents),
		Currency:    stripego.String(currency),
		Destination: stripego.String(req.Destination),
		Description: stripego.String(req.Description),
		Metadata: map[string]string{
			"payout_id":      req.PayoutID,
			"dream_board_id": req.CampaignID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.PayoutID)

	t, err := c.transfers.New(params)
	if err != nil {
		var se *stripego.Error
		if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests {
			reason := string(se.Code)
			if reason == "" {
				reason = se.Msg
			}
			c.logger.Warn().Str("payout_id", req.PayoutID).Str("code", string(se.Code)).Msg("stripe.transfer_declined")
			return &TransferResult{Failed: true, Reason: reason}, nil
		}
		return nil, fmt.Errorf("stripe: create transfer: %w", err)
	}
	c.logger.Debug().Str("payout_id", req.PayoutID).Str("transfer_id", t.ID).Msg("stripe.transfer_created")
	return &TransferResult{TransferID: t.ID}, nil
}

type leveledLogger struct {
	logger *infra.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
