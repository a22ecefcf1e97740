// Package payments authenticates provider notifications and turns them into
// canonical payment updates. It also starts payments for new contributions.
package payments

import (
	"context"
	"net/http"
	"sort"
	"time"

	"dreamboard/internal/domain"
)

// RequestMeta carries transport details some providers authenticate against.
type RequestMeta struct {
	Header   http.Header
	RemoteIP string
}

// Payload is a verified provider notification.
type Payload struct {
	Fields map[string]any
	// Timestamp is the raw freshness value, nil when the provider sent none.
	Timestamp any
}

// IntentRequest describes a payment to start.
type IntentRequest struct {
	Reference   string
	AmountCents int64
	Description string
	PayerEmail  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// FormField is one ordered field of a hosted payment form.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Intent tells the client how to complete a payment.
type Intent struct {
	RedirectURL string      `json:"redirectUrl"`
	Method      string      `json:"method"`
	Fields      []FormField `json:"fields,omitempty"`
	QRImageURL  string      `json:"qrImageUrl,omitempty"`
	ProviderRef string      `json:"providerRef,omitempty"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
}

// Adapter is the per-provider contract.
type Adapter interface {
	Provider() domain.PaymentProvider
	Configured() bool
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// Verify authenticates and parses a notification. It fails with
	// domain.ErrInvalidSignature, domain.ErrInvalidPayload or
	// domain.ErrInvalidSource.
	Verify(ctx context.Context, body []byte, meta RequestMeta) (*Payload, error)
	Reference(p *Payload) string
	AmountCents(p *Payload) (int64, bool)
	Status(p *Payload) domain.PaymentStatus
}

// Registry resolves adapters by provider name.
type Registry struct {
	adapters map[domain.PaymentProvider]Adapter
}

// NewRegistry indexes the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.PaymentProvider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter for provider.
func (r *Registry) Get(provider domain.PaymentProvider) (Adapter, bool) {
	a, ok := r.adapters[provider]
	return a, ok
}

// Configured returns the adapter only when it has credentials.
func (r *Registry) Configured(provider domain.PaymentProvider) (Adapter, bool) {
	a, ok := r.adapters[provider]
	if !ok || !a.Configured() {
		return nil, false
	}
	return a, true
}

// Available lists configured providers in name order.
func (r *Registry) Available() []domain.PaymentProvider {
	var out []domain.PaymentProvider
	for name, a := range r.adapters {
		if a.Configured() {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
