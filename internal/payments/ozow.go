package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra/kv"
	"dreamboard/internal/providers/httpretry"
)

// OzowOptions configures the Ozow adapter.
type OzowOptions struct {
	ClientID      string
	ClientSecret  string
	SiteCode      string
	WebhookSecret string
	BaseURL       string
	TokenURL      string
	Scope         string
	// Tokens caches OAuth access tokens across requests and instances.
	Tokens     kv.Store
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Ozow implements Adapter for Ozow payments with Svix-signed webhooks.
type Ozow struct {
	opts       OzowOptions
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOzow constructs the adapter.
func NewOzow(opts OzowOptions) *Ozow {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.TokenURL == "" && opts.BaseURL != "" {
		opts.TokenURL = opts.BaseURL + "/token"
	}
	if opts.Scope == "" {
		opts.Scope = "payment"
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpretry.NewClient(httpretry.DefaultOptions(opts.Logger))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ozow{opts: opts, httpClient: client, logger: opts.Logger, now: now}
}

func (o *Ozow) Provider() domain.PaymentProvider { return domain.ProviderOzow }

func (o *Ozow) Configured() bool {
	return o.opts.ClientID != "" && o.opts.ClientSecret != "" && o.opts.SiteCode != "" &&
		o.opts.BaseURL != "" && o.opts.WebhookSecret != ""
}

type ozowAmount struct {
	Currency string      `json:"currency"`
	Value    json.Number `json:"value"`
}

type ozowPaymentRequest struct {
	SiteCode          string     `json:"siteCode"`
	Amount            ozowAmount `json:"amount"`
	MerchantReference string     `json:"merchantReference"`
	ReturnURL         string     `json:"returnUrl"`
	ExpireAt          string     `json:"expireAt"`
}

type ozowPaymentResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
}

// CreateIntent registers the payment with Ozow and returns its redirect URL.
func (o *Ozow) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if !o.Configured() {
		return nil, errors.New("ozow: configuration is incomplete")
	}
	token, err := o.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	expires := o.now().Add(time.Hour).UTC()
	body, err := json.Marshal(ozowPaymentRequest{
		SiteCode:          o.opts.SiteCode,
		Amount:            ozowAmount{Currency: "ZAR", Value: json.Number(centsToUnits(req.AmountCents))},
		MerchantReference: req.Reference,
		ReturnURL:         req.ReturnURL,
		ExpireAt:          expires.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ozow: payment request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ozow: payment request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out ozowPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ozow: decode payment response: %w", err)
	}
	if out.RedirectURL == "" {
		return nil, errors.New("ozow: payment response missing redirectUrl")
	}
	return &Intent{RedirectURL: out.RedirectURL, Method: http.MethodGet, ProviderRef: out.ID, ExpiresAt: &expires}, nil
}

func (o *Ozow) tokenKey() string { return "ozow:token:" + o.opts.Scope }

func (o *Ozow) accessToken(ctx context.Context) (string, error) {
	if o.opts.Tokens != nil {
		cached, err := o.opts.Tokens.Get(ctx, o.tokenKey())
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && !errors.Is(err, kv.ErrNil) {
			o.logger.Warn().Err(err).Msg("payments.ozow_token_cache_read_failed")
		}
	}

	form := url.Values{
		"client_id":     {o.opts.ClientID},
		"client_secret": {o.opts.ClientSecret},
		"scope":         {o.opts.Scope},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ozow: token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ozow: token request failed (%d)", resp.StatusCode)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("ozow: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("ozow: token response missing access_token")
	}

	if o.opts.Tokens != nil {
		expiresIn := tok.ExpiresIn
		if expiresIn <= 0 {
			expiresIn = 3600
		}
		ttl := time.Duration(max(60, expiresIn-60)) * time.Second
		if err := o.opts.Tokens.Set(ctx, o.tokenKey(), tok.AccessToken, ttl); err != nil {
			o.logger.Warn().Err(err).Msg("payments.ozow_token_cache_write_failed")
		}
	}
	return tok.AccessToken, nil
}

// Verify authenticates the Svix headers. The Svix timestamp doubles as the
// freshness timestamp.
func (o *Ozow) Verify(_ context.Context, body []byte, meta RequestMeta) (*Payload, error) {
	if o.opts.WebhookSecret == "" {
		return nil, domain.ErrInvalidSignature
	}
	wh, err := svix.NewWebhook(o.opts.WebhookSecret)
	if err != nil {
		o.logger.Error().Err(err).Msg("payments.ozow_webhook_secret_invalid")
		return nil, domain.ErrInvalidSignature
	}
	if err := wh.Verify(body, meta.Header); err != nil {
		o.logger.Warn().Err(err).Msg("payments.ozow_invalid_signature")
		return nil, domain.ErrInvalidSignature
	}
	fields, err := decodeJSONObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	var ts any
	if h := strings.TrimSpace(meta.Header.Get("svix-timestamp")); h != "" {
		ts = h
	}
	return &Payload{Fields: fields, Timestamp: ts}, nil
}

func (o *Ozow) data(pl *Payload) map[string]any {
	d, _ := pl.Fields["data"].(map[string]any)
	if d == nil {
		return map[string]any{}
	}
	return d
}

func (o *Ozow) Reference(pl *Payload) string {
	if ref := stringField(o.data(pl), "merchantReference", "merchant_reference"); ref != "" {
		return ref
	}
	return stringField(pl.Fields, "merchantReference", "merchant_reference")
}

func (o *Ozow) AmountCents(pl *Payload) (int64, bool) {
	data := o.data(pl)
	var raw any
	if nested, ok := data["amount"].(map[string]any); ok {
		raw = nested["value"]
	}
	if raw == nil {
		raw = firstValue(data, "amount")
	}
	if raw == nil {
		raw = firstValue(pl.Fields, "amount")
	}
	if raw == nil {
		return 0, false
	}
	return amountFromUnits(raw)
}

func (o *Ozow) Status(pl *Payload) domain.PaymentStatus {
	raw := stringField(o.data(pl), "status", "transactionStatus")
	if raw == "" {
		raw = stringField(pl.Fields, "status")
	}
	return statusFromKeywords(raw)
}

var (
	completedKeywords = []string{"paid", "complete", "success"}
	failedKeywords    = []string{"failed", "cancelled", "canceled", "expired", "rejected"}
)

// statusFromKeywords maps free-form provider statuses by substring.
func statusFromKeywords(raw string) domain.PaymentStatus {
	return matchKeywords(raw, completedKeywords, failedKeywords)
}

// matchKeywords maps raw to completed or failed when it contains one of the
// keywords. Empty and unmatched statuses are still processing.
func matchKeywords(raw string, completed, failed []string) domain.PaymentStatus {
	s := strings.ToLower(raw)
	if s == "" {
		return domain.PaymentProcessing
	}
	for _, k := range completed {
		if strings.Contains(s, k) {
			return domain.PaymentCompleted
		}
	}
	for _, k := range failed {
		if strings.Contains(s, k) {
			return domain.PaymentFailed
		}
	}
	return domain.PaymentProcessing
}

func decodeJSONObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("payload is not an object")
	}
	return out, nil
}
