package payments

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"dreamboard/internal/domain"
	"dreamboard/internal/providers/httpretry"
)

const (
	payFastLiveHost    = "https://www.payfast.co.za"
	payFastSandboxHost = "https://sandbox.payfast.co.za"
)

// payFastSources are the published PayFast notification origins.
var payFastSources = mustParseNetworks(
	"197.97.145.144/28",
	"41.74.179.192/27",
	"102.216.36.0/28",
	"102.216.36.128/28",
	"144.126.193.139/32",
)

// PayFastOptions configures the PayFast adapter.
type PayFastOptions struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Sandbox     bool
	// ValidateITN posts every notification back to PayFast for confirmation.
	ValidateITN bool
	// EnforceSource restricts notifications to PayFast's address ranges.
	EnforceSource bool
	// BaseURL overrides the PayFast host, used by tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// PayFast implements Adapter for PayFast ITN notifications.
type PayFast struct {
	opts       PayFastOptions
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPayFast constructs the adapter.
func NewPayFast(opts PayFastOptions) *PayFast {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = payFastLiveHost
		if opts.Sandbox {
			base = payFastSandboxHost
		}
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpretry.NewClient(httpretry.DefaultOptions(opts.Logger))
	}
	return &PayFast{opts: opts, baseURL: base, httpClient: client, logger: opts.Logger}
}

func (p *PayFast) Provider() domain.PaymentProvider { return domain.ProviderPayFast }

func (p *PayFast) Configured() bool {
	return p.opts.MerchantID != "" && p.opts.MerchantKey != ""
}

// CreateIntent builds the signed hosted-checkout form.
func (p *PayFast) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("payfast: credentials are missing")
	}
	candidates := []FormField{
		{"merchant_id", p.opts.MerchantID},
		{"merchant_key", p.opts.MerchantKey},
		{"return_url", req.ReturnURL},
		{"cancel_url", req.CancelURL},
		{"notify_url", req.NotifyURL},
		{"email_address", req.PayerEmail},
		{"m_payment_id", req.Reference},
		{"amount", centsToUnits(req.AmountCents)},
		{"item_name", req.Description},
	}
	fields := make([]FormField, 0, len(candidates)+1)
	for _, f := range candidates {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	fields = append(fields, FormField{"signature", payFastSignature(fields, p.opts.Passphrase)})
	return &Intent{RedirectURL: p.baseURL + "/eng/process", Method: http.MethodPost, Fields: fields}, nil
}

// Verify checks the signature, source address, merchant and, when enabled,
// confirms the notification with PayFast.
func (p *PayFast) Verify(ctx context.Context, body []byte, meta RequestMeta) (*Payload, error) {
	fields, signature, err := parsePayFastBody(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	expected := payFastSignature(fields, p.opts.Passphrase)
	if signature == "" || subtle.ConstantTimeCompare([]byte(strings.ToLower(signature)), []byte(expected)) != 1 {
		p.logger.Warn().Msg("payments.payfast_invalid_signature")
		return nil, domain.ErrInvalidSignature
	}

	if p.opts.EnforceSource && !ipInNetworks(meta.RemoteIP, payFastSources) {
		p.logger.Warn().Str("ip", meta.RemoteIP).Msg("payments.payfast_invalid_source")
		return nil, domain.ErrInvalidSource
	}

	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}
	if values["merchant_id"] != p.opts.MerchantID || values["merchant_key"] != p.opts.MerchantKey || !p.Configured() {
		p.logger.Warn().
			Interface("merchant_id", values["merchant_id"]).
			Bool("merchant_key_present", values["merchant_key"] != nil).
			Msg("payments.payfast_merchant_mismatch")
		return nil, fmt.Errorf("%w: merchant mismatch", domain.ErrInvalidPayload)
	}

	if p.opts.ValidateITN {
		if err := p.validateITN(ctx, fields); err != nil {
			p.logger.Warn().Err(err).Msg("payments.payfast_itn_invalid")
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	return &Payload{Fields: values, Timestamp: firstValue(values, "timestamp", "payment_date")}, nil
}

func (p *PayFast) Reference(pl *Payload) string {
	if stringField(pl.Fields, "pf_payment_id") == "" {
		return ""
	}
	return stringField(pl.Fields, "m_payment_id")
}

func (p *PayFast) AmountCents(pl *Payload) (int64, bool) {
	raw := stringField(pl.Fields, "amount_gross")
	if raw == "" {
		return 0, false
	}
	return unitsToCents(raw)
}

func (p *PayFast) Status(pl *Payload) domain.PaymentStatus {
	switch stringField(pl.Fields, "payment_status") {
	case "COMPLETE":
		return domain.PaymentCompleted
	case "CANCELLED", "FAILED":
		return domain.PaymentFailed
	}
	return domain.PaymentProcessing
}

func (p *PayFast) validateITN(ctx context.Context, fields []FormField) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/eng/query/validate",
		strings.NewReader(payFastParamString(fields)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payfast: validate request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return fmt.Errorf("payfast: read validate response: %w", err)
	}
	if strings.TrimSpace(string(raw)) != "VALID" {
		return fmt.Errorf("payfast: notification not confirmed (status %d)", resp.StatusCode)
	}
	return nil
}

// parsePayFastBody keeps field order and stops at the signature field; any
// trailing fields are not covered by the signature.
func parsePayFastBody(body string) ([]FormField, string, error) {
	var fields []FormField
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, "", err
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, "", err
		}
		if key == "signature" {
			return fields, value, nil
		}
		fields = append(fields, FormField{key, value})
	}
	return fields, "", nil
}

func payFastSignature(fields []FormField, passphrase string) string {
	s := payFastParamString(fields)
	if passphrase != "" {
		s += "&passphrase=" + payFastEncode(passphrase)
	}
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func payFastParamString(fields []FormField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"="+payFastEncode(f.Value))
	}
	return strings.Join(parts, "&")
}

// payFastEncode matches the encoding PayFast signs with: RFC 3986 component
// escaping that also leaves !*'() intact, spaces as '+', uppercase hex.
func payFastEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("-_.!~*'()", c) >= 0:
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

func mustParseNetworks(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func ipInNetworks(raw string, networks []*net.IPNet) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return false
	}
	for _, n := range networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
