package payments

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	svix "github.com/svix/svix-webhooks/go"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra/kv"
)

const (
	testMerchantID  = "10000100"
	testMerchantKey = "46f0cd694581a"
	testPassphrase  = "jt7NOE43FZPn"
)

func signedPayFastBody(params, passphrase string) string {
	s := params
	if passphrase != "" {
		s += "&passphrase=" + passphrase
	}
	sum := md5.Sum([]byte(s))
	return params + "&signature=" + hex.EncodeToString(sum[:])
}

func payFastParams(merchantID string) string {
	return "m_payment_id=REF-1&pf_payment_id=1089250&payment_status=COMPLETE&item_name=Gift+for+Lerato" +
		"&amount_gross=250.00&merchant_id=" + merchantID + "&merchant_key=" + testMerchantKey
}

func newTestPayFast(opts PayFastOptions) *PayFast {
	if opts.MerchantID == "" {
		opts.MerchantID = testMerchantID
	}
	opts.MerchantKey = testMerchantKey
	opts.Passphrase = testPassphrase
	opts.Logger = zerolog.Nop()
	return NewPayFast(opts)
}

func TestPayFastEncode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Gift for Lerato", "Gift+for+Lerato"},
		{"a&b/c", "a%26b%2Fc"},
		{"keep-_.!~*'()", "keep-_.!~*'()"},
		{"café", "caf%C3%A9"},
		{"https://example.com/return?x=1", "https%3A%2F%2Fexample.com%2Freturn%3Fx%3D1"},
	}
	for _, tt := range tests {
		if got := payFastEncode(tt.in); got != tt.want {
			t.Fatalf("payFastEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPayFastVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newTestPayFast(PayFastOptions{})
	body := signedPayFastBody(payFastParams(testMerchantID), testPassphrase)

	payload, err := adapter.Verify(context.Background(), []byte(body), RequestMeta{})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ref := adapter.Reference(payload); ref != "REF-1" {
		t.Fatalf("Reference = %q, want REF-1", ref)
	}
	if amount, ok := adapter.AmountCents(payload); !ok || amount != 25000 {
		t.Fatalf("AmountCents = %d, %v, want 25000", amount, ok)
	}
	if status := adapter.Status(payload); status != domain.PaymentCompleted {
		t.Fatalf("Status = %s, want completed", status)
	}
	if payload.Timestamp != nil {
		t.Fatalf("Timestamp = %v, want nil", payload.Timestamp)
	}
}

func TestPayFastVerifyRejectsBadSignature(t *testing.T) {
	adapter := newTestPayFast(PayFastOptions{})
	tests := map[string]string{
		"wrong passphrase": signedPayFastBody(payFastParams(testMerchantID), "other"),
		"tampered amount":  strings.Replace(signedPayFastBody(payFastParams(testMerchantID), testPassphrase), "250.00", "2.50", 1),
		"missing":          payFastParams(testMerchantID),
	}
	for name, body := range tests {
		_, err := adapter.Verify(context.Background(), []byte(body), RequestMeta{})
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("%s: err = %v, want invalid signature", name, err)
		}
	}
}

func TestPayFastVerifyRejectsMerchantMismatch(t *testing.T) {
	adapter := newTestPayFast(PayFastOptions{})
	body := signedPayFastBody(payFastParams("99999999"), testPassphrase)

	_, err := adapter.Verify(context.Background(), []byte(body), RequestMeta{})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v, want invalid payload", err)
	}
}

func TestPayFastVerifyEnforcesSource(t *testing.T) {
	adapter := newTestPayFast(PayFastOptions{EnforceSource: true})
	body := []byte(signedPayFastBody(payFastParams(testMerchantID), testPassphrase))

	if _, err := adapter.Verify(context.Background(), body, RequestMeta{RemoteIP: "8.8.8.8"}); !errors.Is(err, domain.ErrInvalidSource) {
		t.Fatalf("err = %v, want invalid source", err)
	}
	if _, err := adapter.Verify(context.Background(), body, RequestMeta{RemoteIP: "197.97.145.150"}); err != nil {
		t.Fatalf("Verify from PayFast range error: %v", err)
	}
}

func TestPayFastValidateITN(t *testing.T) {
	var invalid atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eng/query/validate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), "m_payment_id=REF-1") {
			t.Errorf("validate body = %s", raw)
		}
		if invalid.Load() {
			_, _ = w.Write([]byte("INVALID"))
			return
		}
		_, _ = w.Write([]byte("VALID"))
	}))
	defer server.Close()

	adapter := newTestPayFast(PayFastOptions{ValidateITN: true, BaseURL: server.URL, HTTPClient: server.Client()})
	body := []byte(signedPayFastBody(payFastParams(testMerchantID), testPassphrase))

	if _, err := adapter.Verify(context.Background(), body, RequestMeta{}); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	invalid.Store(true)
	if _, err := adapter.Verify(context.Background(), body, RequestMeta{}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v, want invalid payload", err)
	}
}

func TestPayFastCreateIntentSignsFields(t *testing.T) {
	adapter := newTestPayFast(PayFastOptions{Sandbox: true})
	intent, err := adapter.CreateIntent(context.Background(), IntentRequest{
		Reference:   "REF-2",
		AmountCents: 10300,
		Description: "Gift for Lerato",
		NotifyURL:   "https://api.example.com/webhooks/payfast",
	})
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}
	if intent.RedirectURL != payFastSandboxHost+"/eng/process" {
		t.Fatalf("RedirectURL = %s", intent.RedirectURL)
	}
	last := intent.Fields[len(intent.Fields)-1]
	if last.Name != "signature" {
		t.Fatalf("last field = %s, want signature", last.Name)
	}
	if got := payFastSignature(intent.Fields[:len(intent.Fields)-1], testPassphrase); got != last.Value {
		t.Fatalf("signature = %s, want %s", last.Value, got)
	}
	for _, f := range intent.Fields {
		if f.Name == "amount" && f.Value != "103.00" {
			t.Fatalf("amount = %s, want 103.00", f.Value)
		}
		if f.Value == "" {
			t.Fatalf("field %s is empty", f.Name)
		}
	}
}

func snapScanRequest(payload, key string) ([]byte, RequestMeta) {
	body := []byte("payload=" + url.QueryEscape(payload))
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	header := http.Header{}
	header.Set("Authorization", "SnapScan signature="+hex.EncodeToString(mac.Sum(nil)))
	return body, RequestMeta{Header: header}
}

func TestSnapScanVerify(t *testing.T) {
	adapter := NewSnapScan(SnapScanOptions{SnapCode: "dreamboard", WebhookAuthKey: "secret", Logger: zerolog.Nop()})

	tests := []struct {
		name    string
		payload string
		amount  int64
		status  domain.PaymentStatus
	}{
		{"integer cents", `{"id":"REF-9","amount":12500,"status":"completed"}`, 12500, domain.PaymentCompleted},
		{"decimal units", `{"merchantReference":"REF-9","amount":"125.00","status":"error"}`, 12500, domain.PaymentProcessing},
		{"cents key", `{"reference":"REF-9","amountCents":"300","status":"Cancelled"}`, 300, domain.PaymentFailed},
	}
	for _, tt := range tests {
		body, meta := snapScanRequest(tt.payload, "secret")
		payload, err := adapter.Verify(context.Background(), body, meta)
		if err != nil {
			t.Fatalf("%s: Verify error: %v", tt.name, err)
		}
		if ref := adapter.Reference(payload); ref != "REF-9" {
			t.Fatalf("%s: Reference = %q", tt.name, ref)
		}
		if amount, ok := adapter.AmountCents(payload); !ok || amount != tt.amount {
			t.Fatalf("%s: AmountCents = %d, %v, want %d", tt.name, amount, ok, tt.amount)
		}
		if status := adapter.Status(payload); status != tt.status {
			t.Fatalf("%s: Status = %s, want %s", tt.name, status, tt.status)
		}
	}
}

func TestSnapScanVerifyRejectsBadSignature(t *testing.T) {
	adapter := NewSnapScan(SnapScanOptions{SnapCode: "dreamboard", WebhookAuthKey: "secret", Logger: zerolog.Nop()})

	body, meta := snapScanRequest(`{"id":"REF-9","amount":100}`, "other")
	if _, err := adapter.Verify(context.Background(), body, meta); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want invalid signature", err)
	}
	if _, err := adapter.Verify(context.Background(), body, RequestMeta{Header: http.Header{}}); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("missing header err = %v, want invalid signature", err)
	}
}

func TestSnapScanCreateIntent(t *testing.T) {
	adapter := NewSnapScan(SnapScanOptions{SnapCode: "dreamboard", WebhookAuthKey: "secret"})
	intent, err := adapter.CreateIntent(context.Background(), IntentRequest{Reference: "REF-3", AmountCents: 5150})
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}
	want := "https://pos.snapscan.io/qr/dreamboard?amount=5150&id=REF-3&strict=true"
	if intent.RedirectURL != want {
		t.Fatalf("RedirectURL = %s, want %s", intent.RedirectURL, want)
	}
	if !strings.Contains(intent.QRImageURL, ".svg?") || !strings.Contains(intent.QRImageURL, "snap_code_size=200") {
		t.Fatalf("QRImageURL = %s", intent.QRImageURL)
	}
}

func ozowSecret() string {
	return "whsec_" + base64.StdEncoding.EncodeToString([]byte("ozow-webhook-test-secret-123456"))
}

func signOzow(t *testing.T, body []byte, ts time.Time) RequestMeta {
	t.Helper()
	wh, err := svix.NewWebhook(ozowSecret())
	if err != nil {
		t.Fatalf("NewWebhook error: %v", err)
	}
	sig, err := wh.Sign("msg_1", ts, body)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	header := http.Header{}
	header.Set("svix-id", "msg_1")
	header.Set("svix-timestamp", strconv.FormatInt(ts.Unix(), 10))
	header.Set("svix-signature", sig)
	return RequestMeta{Header: header}
}

func TestOzowVerify(t *testing.T) {
	adapter := NewOzow(OzowOptions{WebhookSecret: ozowSecret(), Logger: zerolog.Nop()})
	body := []byte(`{"type":"payment.paid","data":{"merchantReference":"REF-4","status":"Complete","amount":{"value":"250.50","currency":"ZAR"}}}`)
	now := time.Now()

	payload, err := adapter.Verify(context.Background(), body, signOzow(t, body, now))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ref := adapter.Reference(payload); ref != "REF-4" {
		t.Fatalf("Reference = %q", ref)
	}
	if amount, ok := adapter.AmountCents(payload); !ok || amount != 25050 {
		t.Fatalf("AmountCents = %d, %v, want 25050", amount, ok)
	}
	if status := adapter.Status(payload); status != domain.PaymentCompleted {
		t.Fatalf("Status = %s", status)
	}
	if payload.Timestamp != strconv.FormatInt(now.Unix(), 10) {
		t.Fatalf("Timestamp = %v", payload.Timestamp)
	}

	tampered := []byte(strings.Replace(string(body), "250.50", "2.50", 1))
	if _, err := adapter.Verify(context.Background(), tampered, signOzow(t, body, now)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("tampered err = %v, want invalid signature", err)
	}
}

func TestOzowCreateIntentCachesToken(t *testing.T) {
	var tokenCalls, paymentCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls.Add(1)
			_ = r.ParseForm()
			if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("scope") != "payment" {
				t.Errorf("token form = %v", r.PostForm)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
		case "/payments":
			paymentCalls.Add(1)
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.Header.Get("Idempotency-Key"); got != "REF-5" {
				t.Errorf("Idempotency-Key = %q", got)
			}
			var req ozowPaymentRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Amount.Value.String() != "99.00" || req.SiteCode != "SITE" {
				t.Errorf("payment request = %+v", req)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "oz-1", "redirectUrl": "https://pay.ozow.test/oz-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tokens := kv.NewMemoryStore()
	adapter := NewOzow(OzowOptions{
		ClientID:      "client",
		ClientSecret:  "secret",
		SiteCode:      "SITE",
		WebhookSecret: ozowSecret(),
		BaseURL:       server.URL,
		Tokens:        tokens,
		HTTPClient:    server.Client(),
		Logger:        zerolog.Nop(),
	})

	for i := 0; i < 2; i++ {
		intent, err := adapter.CreateIntent(context.Background(), IntentRequest{Reference: "REF-5", AmountCents: 9900})
		if err != nil {
			t.Fatalf("CreateIntent error: %v", err)
		}
		if intent.RedirectURL != "https://pay.ozow.test/oz-1" || intent.ProviderRef != "oz-1" {
			t.Fatalf("intent = %+v", intent)
		}
	}
	if tokenCalls.Load() != 1 || paymentCalls.Load() != 2 {
		t.Fatalf("token calls = %d, payment calls = %d", tokenCalls.Load(), paymentCalls.Load())
	}
	ttl, err := tokens.TTL(context.Background(), "ozow:token:payment")
	if err != nil || ttl <= 0 || ttl > 3540*time.Second {
		t.Fatalf("token ttl = %s, %v", ttl, err)
	}
}

func TestSandboxAdapter(t *testing.T) {
	adapter := NewSandbox("http://localhost:8080/")
	payload, err := adapter.Verify(context.Background(), []byte(`{"reference":"REF-6","amountCents":10300,"status":"completed"}`), RequestMeta{})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if adapter.Reference(payload) != "REF-6" || adapter.Status(payload) != domain.PaymentCompleted {
		t.Fatalf("payload = %+v", payload.Fields)
	}
	if amount, ok := adapter.AmountCents(payload); !ok || amount != 10300 {
		t.Fatalf("AmountCents = %d, %v", amount, ok)
	}
	if _, err := adapter.Verify(context.Background(), []byte(`[1,2]`), RequestMeta{}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v, want invalid payload", err)
	}
	intent, _ := adapter.CreateIntent(context.Background(), IntentRequest{Reference: "REF-6", AmountCents: 10300})
	if intent.RedirectURL != "http://localhost:8080/sandbox/pay?amountCents=10300&reference=REF-6" {
		t.Fatalf("RedirectURL = %s", intent.RedirectURL)
	}
}

func TestAmountParsing(t *testing.T) {
	units := []struct {
		in   any
		want int64
	}{
		{json.Number("250.50"), 25050},
		{"0.005", 1},
		{"100", 10000},
		{float64(19.99), 1999},
	}
	for _, tt := range units {
		if got, ok := amountFromUnits(tt.in); !ok || got != tt.want {
			t.Fatalf("amountFromUnits(%v) = %d, %v, want %d", tt.in, got, ok, tt.want)
		}
	}
	mixed := []struct {
		in   any
		want int64
	}{
		{json.Number("12500"), 12500},
		{"125.00", 12500},
		{json.Number("1.25e2"), 12500},
		{"300", 300},
	}
	for _, tt := range mixed {
		if got, ok := amountFromMixed(tt.in); !ok || got != tt.want {
			t.Fatalf("amountFromMixed(%v) = %d, %v, want %d", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := amountFromMixed("abc"); ok {
		t.Fatalf("amountFromMixed(abc) should fail")
	}
	if got := centsToUnits(5); got != "0.05" {
		t.Fatalf("centsToUnits(5) = %s", got)
	}
}

func TestTimestampPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := TimestampPolicy{Now: func() time.Time { return now }}

	accepted := []any{
		strconv.FormatInt(now.Unix(), 10),
		strconv.FormatInt(now.Add(-10*time.Minute).UnixMilli(), 10),
		json.Number(strconv.FormatInt(now.Unix(), 10)),
		json.Number(strconv.FormatInt(now.UnixMilli(), 10)),
		"2026-03-01T14:20:00+02:00",
		"2026-03-01 11:45:00",
		"2026-03-01T12:05:00.123Z",
	}
	for _, v := range accepted {
		if _, err := policy.Check(v); err != nil {
			t.Fatalf("Check(%v) error: %v", v, err)
		}
	}

	rejected := []any{
		"2026-03-01 11:00:00",
		strconv.FormatInt(now.Add(time.Hour).Unix(), 10),
		"12345",
		"yesterday",
		true,
	}
	for _, v := range rejected {
		if _, err := policy.Check(v); !errors.Is(err, domain.ErrInvalidTimestamp) {
			t.Fatalf("Check(%v) err = %v, want invalid timestamp", v, err)
		}
	}

	wide := TimestampPolicy{Tolerance: 2 * time.Hour, Now: policy.Now}
	if _, err := wide.Check("2026-03-01 11:00:00"); err != nil {
		t.Fatalf("wide Check error: %v", err)
	}
}

func TestReconcileChecksInOrder(t *testing.T) {
	adapter := NewSandbox("")
	policy := TimestampPolicy{}
	tests := []struct {
		body string
		want error
	}{
		{`not json`, domain.ErrInvalidPayload},
		{`{"reference":"R","amountCents":1,"timestamp":"2001-01-01 00:00:00"}`, domain.ErrInvalidTimestamp},
		{`{"amountCents":1}`, domain.ErrMissingReference},
		{`{"reference":"R"}`, domain.ErrAmountMissing},
	}
	for _, tt := range tests {
		if _, err := Reconcile(context.Background(), adapter, []byte(tt.body), RequestMeta{}, policy); !errors.Is(err, tt.want) {
			t.Fatalf("Reconcile(%s) err = %v, want %v", tt.body, err, tt.want)
		}
	}

	n, err := Reconcile(context.Background(), adapter, []byte(`{"reference":"R","amountCents":500,"status":"failed"}`), RequestMeta{}, policy)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if n.Timestamp != nil || n.Status != domain.PaymentFailed || n.AmountCents != 500 {
		t.Fatalf("notification = %+v", n)
	}
}

func TestAdaptersDefaultToRetryingClient(t *testing.T) {
	clients := map[string]*http.Client{
		"payfast":  NewPayFast(PayFastOptions{Logger: zerolog.Nop()}).httpClient,
		"ozow":     NewOzow(OzowOptions{Logger: zerolog.Nop()}).httpClient,
		"snapscan": NewSnapScan(SnapScanOptions{Logger: zerolog.Nop()}).httpClient,
	}
	for name, c := range clients {
		if c == nil || c == http.DefaultClient {
			t.Fatalf("%s uses the default client", name)
		}
		if _, ok := c.Transport.(*retryablehttp.RoundTripper); !ok {
			t.Fatalf("%s transport = %T, want a retrying round tripper", name, c.Transport)
		}
	}
}
