package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
	"dreamboard/internal/providers/httpretry"
)

var snapScanAuthPattern = regexp.MustCompile(`(?i)snapscan\s+signature=([^,\s]+)`)

// SnapScanOptions configures the SnapScan adapter.
type SnapScanOptions struct {
	SnapCode       string
	WebhookAuthKey string
	// APIKey authenticates merchant API calls such as payment listings.
	APIKey string
	// BaseURL overrides the QR and merchant API host, used by tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// SnapScan implements Adapter for SnapScan QR payments.
type SnapScan struct {
	opts       SnapScanOptions
	httpClient *http.Client
}

// NewSnapScan constructs the adapter.
func NewSnapScan(opts SnapScanOptions) *SnapScan {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = "https://pos.snapscan.io"
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpretry.NewClient(httpretry.DefaultOptions(opts.Logger))
	}
	return &SnapScan{opts: opts, httpClient: client}
}

func (s *SnapScan) Provider() domain.PaymentProvider { return domain.ProviderSnapScan }

func (s *SnapScan) Configured() bool {
	return s.opts.SnapCode != "" && s.opts.WebhookAuthKey != ""
}

// CreateIntent returns the strict-amount QR code links for the payment.
func (s *SnapScan) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if s.opts.SnapCode == "" {
		return nil, errors.New("snapscan: snap code is missing")
	}
	q := url.Values{}
	q.Set("id", req.Reference)
	q.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	q.Set("strict", "true")
	qrURL := fmt.Sprintf("%s/qr/%s?%s", s.opts.BaseURL, url.PathEscape(s.opts.SnapCode), q.Encode())
	q.Set("snap_code_size", "200")
	imageURL := fmt.Sprintf("%s/qr/%s.svg?%s", s.opts.BaseURL, url.PathEscape(s.opts.SnapCode), q.Encode())
	return &Intent{RedirectURL: qrURL, Method: http.MethodGet, QRImageURL: imageURL}, nil
}

// Verify checks the HMAC in the Authorization header over the raw body.
func (s *SnapScan) Verify(_ context.Context, body []byte, meta RequestMeta) (*Payload, error) {
	match := snapScanAuthPattern.FindStringSubmatch(meta.Header.Get("Authorization"))
	if match == nil || s.opts.WebhookAuthKey == "" {
		s.opts.Logger.Warn().Msg("payments.snapscan_invalid_signature")
		return nil, domain.ErrInvalidSignature
	}
	got, err := hex.DecodeString(match[1])
	if err != nil || !hmac.Equal(got, snapScanSignature(body, s.opts.WebhookAuthKey)) {
		s.opts.Logger.Warn().Msg("payments.snapscan_invalid_signature")
		return nil, domain.ErrInvalidSignature
	}

	form, err := url.ParseQuery(string(body))
	if err != nil || form.Get("payload") == "" {
		return nil, fmt.Errorf("%w: missing payload field", domain.ErrInvalidPayload)
	}
	fields, err := decodeJSONObject([]byte(form.Get("payload")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	ts := firstValue(fields, "timestamp", "payment_date", "paymentDate", "created_at", "createdAt", "event_time", "eventTime")
	return &Payload{Fields: fields, Timestamp: ts}, nil
}

func (s *SnapScan) Reference(pl *Payload) string {
	return stringField(pl.Fields, "id", "reference", "merchantReference", "merchant_reference")
}

func (s *SnapScan) AmountCents(pl *Payload) (int64, bool) {
	raw := firstValue(pl.Fields, "amountCents", "amount_cents", "amount")
	if raw == nil {
		return 0, false
	}
	return amountFromMixed(raw)
}

func (s *SnapScan) Status(pl *Payload) domain.PaymentStatus {
	return statusFromKeywords(stringField(pl.Fields, "status"))
}

func snapScanSignature(body []byte, key string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return mac.Sum(nil)
}
