// Package karri tops up Karri cards for dream board payouts.
package karri

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/infra"
	"dreamboard/internal/providers/httpretry"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("karri: api key is required")

// Options configures the Karri client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the Karri top-up API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// TopUpRequest loads AmountCents onto a card. Reference is used as the
// idempotency key.
type TopUpRequest struct {
	CardNumber  string
	AmountCents int64
	Reference   string
	Description string
}

// TopUpResult is the normalized Karri response.
type TopUpResult struct {
	TransactionID string
	Status        string
	ErrorMessage  string
}

type topUpBody struct {
	CardNumber  string `json:"cardNumber"`
	AmountCents int64  `json:"amountCents"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type topUpResponse struct {
	TransactionID string `json:"transactionId"`
	ID            string `json:"id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"errorMessage"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := zerolog.Nop()
		logger = &l
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		retry := httpretry.DefaultOptions(*logger)
		if opts.RequestTimeout > 0 {
			retry.RequestTimeout = opts.RequestTimeout
		}
		httpClient = httpretry.NewClient(retry)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.karri.co.za/v1"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// TopUp credits the card.
func (c *Client) TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.CardNumber) == "" {
		return nil, errors.New("karri: card number is required")
	}
	var out topUpResponse
	err := httpretry.PostJSON(ctx, c.httpClient, c.baseURL+"/topups", c.apiKey, req.Reference, topUpBody{
		CardNumber:  req.CardNumber,
		AmountCents: req.AmountCents,
		Reference:   req.Reference,
		Description: req.Description,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("karri: top-up: %w", err)
	}
	id := out.TransactionID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return nil, errors.New("karri: response missing transactionId")
	}
	switch out.Status {
	case "completed", "pending", "failed":
	default:
		return nil, fmt.Errorf("karri: unexpected status %q", out.Status)
	}
	c.logger.Debug().Str("reference", req.Reference).Str("status", out.Status).Msg("karri.topup")
	return &TopUpResult{TransactionID: id, Status: out.Status, ErrorMessage: out.ErrorMessage}, nil
}
