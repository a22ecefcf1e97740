// Package givengain donates charity proceeds through GivenGain.
package givengain

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
var ErrMissingAPIKey = errors.New("givengain: api key is required")

// Options configures the GivenGain client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the GivenGain donations API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// DonationRequest describes one donation to a cause.
type DonationRequest struct {
	CauseID     string
	AmountCents int64
	DonorName   string
	DonorEmail  string
	Reference   string
	Message     string
}

// DonationResult is the normalized donation response.
type DonationResult struct {
	DonationID     string
	Status         string
	ReceiptURL     string
	CertificateURL string
	ErrorMessage   string
}

type donationBody struct {
	CauseID     string `json:"causeId"`
	AmountCents int64  `json:"amountCents"`
	DonorName   string `json:"donorName"`
	DonorEmail  string `json:"donorEmail"`
	Reference   string `json:"reference"`
	Message     string `json:"message,omitempty"`
}

type donationResponse struct {
	DonationID     string `json:"donationId"`
	ID             string `json:"id"`
	Status         string `json:"status"`
	ReceiptURL     string `json:"receiptUrl"`
	CertificateURL string `json:"certificateUrl"`
	ErrorMessage   string `json:"errorMessage"`
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
		baseURL = "https://api.givengain.com/v1"
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

// Donate creates the donation.
func (c *Client) Donate(ctx context.Context, req DonationRequest) (*DonationResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.CauseID) == "" {
		return nil, errors.New("givengain: cause id is required")
	}
	var out donationResponse
	err := httpretry.PostJSON(ctx, c.httpClient, c.baseURL+"/donations", c.apiKey, req.Reference, donationBody(req), &out)
	if err != nil {
		return nil, fmt.Errorf("givengain: donate: %w", err)
	}
	id := out.DonationID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return nil, errors.New("givengain: response missing donationId")
	}
	switch out.Status {
	case "completed", "pending", "failed":
	default:
		return nil, fmt.Errorf("givengain: unexpected status %q", out.Status)
	}
	c.logger.Debug().Str("reference", req.Reference).Str("status", out.Status).Msg("givengain.donate")
	return &DonationResult{
		DonationID:     id,
		Status:         out.Status,
		ReceiptURL:     out.ReceiptURL,
		CertificateURL: out.CertificateURL,
		ErrorMessage:   out.ErrorMessage,
	}, nil
}
