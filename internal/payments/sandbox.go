package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"dreamboard/internal/domain"
)

// Sandbox is an unsigned provider for local development. It is only
// registered when sandbox mode is on.
type Sandbox struct {
	baseURL string
}

// NewSandbox points intents at the local payment simulator under baseURL.
func NewSandbox(baseURL string) *Sandbox {
	return &Sandbox{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Sandbox) Provider() domain.PaymentProvider { return domain.ProviderSandbox }

func (s *Sandbox) Configured() bool { return true }

func (s *Sandbox) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	q := url.Values{"reference": {req.Reference}, "amountCents": {fmt.Sprint(req.AmountCents)}}
	return &Intent{RedirectURL: s.baseURL + "/sandbox/pay?" + q.Encode(), Method: http.MethodGet}, nil
}

func (s *Sandbox) Verify(_ context.Context, body []byte, _ RequestMeta) (*Payload, error) {
	fields, err := decodeJSONObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return &Payload{Fields: fields, Timestamp: firstValue(fields, "timestamp")}, nil
}

func (s *Sandbox) Reference(pl *Payload) string { return stringField(pl.Fields, "reference") }

func (s *Sandbox) AmountCents(pl *Payload) (int64, bool) {
	raw := firstValue(pl.Fields, "amountCents")
	if raw == nil {
		return 0, false
	}
	return amountFromMixed(raw)
}

func (s *Sandbox) Status(pl *Payload) domain.PaymentStatus {
	switch domain.PaymentStatus(stringField(pl.Fields, "status")) {
	case domain.PaymentCompleted:
		return domain.PaymentCompleted
	case domain.PaymentFailed:
		return domain.PaymentFailed
	}
	return domain.PaymentProcessing
}
