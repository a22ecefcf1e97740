// Package giftcard issues Takealot gift cards for dream board payouts.
package giftcard

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
var ErrMissingAPIKey = errors.New("giftcard: api key is required")

// Options configures the gift card client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the Takealot gift card API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// IssueRequest describes the gift card to issue.
type IssueRequest struct {
	AmountCents    int64
	RecipientEmail string
	Reference      string
	Message        string
}

// IssueResult is the normalized issuance response.
type IssueResult struct {
	Status       string
	Code         string
	URL          string
	OrderID      string
	ErrorMessage string
}

type issueBody struct {
	AmountCents    int64  `json:"amountCents"`
	RecipientEmail string `json:"recipientEmail"`
	Reference      string `json:"reference"`
	Message        string `json:"message,omitempty"`
}

type issueResponse struct {
	Status       string `json:"status"`
	GiftCardCode string `json:"giftCardCode"`
	GiftCardURL  string `json:"giftCardUrl"`
	OrderID      string `json:"orderId"`
	ErrorMessage string `json:"errorMessage"`
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
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Issue orders a gift card delivered to the recipient.
func (c *Client) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return nil, errors.New("giftcard: recipient email is required")
	}
	var out issueResponse
	err := httpretry.PostJSON(ctx, c.httpClient, c.baseURL+"/gift-cards", c.apiKey, req.Reference, issueBody(req), &out)
	if err != nil {
		return nil, fmt.Errorf("giftcard: issue: %w", err)
	}
	switch out.Status {
	case "completed", "pending", "failed":
	default:
		return nil, fmt.Errorf("giftcard: unexpected status %q", out.Status)
	}
	c.logger.Debug().Str("reference", req.Reference).Str("status", out.Status).Msg("giftcard.issue")
	return &IssueResult{
		Status:       out.Status,
		Code:         out.GiftCardCode,
		URL:          out.GiftCardURL,
		OrderID:      out.OrderID,
		ErrorMessage: out.ErrorMessage,
	}, nil
}
