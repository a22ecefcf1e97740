package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dreamboard/internal/domain"
	"dreamboard/internal/middleware"
	"dreamboard/internal/payments"
)

// SandboxPay simulates the hosted checkout of the sandbox provider: it feeds
// a notification for ?reference and ?amountCents through the same webhook
// pipeline real providers use. ?status defaults to completed.
func (a *App) SandboxPay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	if status == "" {
		status = string(domain.PaymentCompleted)
	}
	body, err := json.Marshal(map[string]string{
		"reference":   q.Get("reference"),
		"amountCents": q.Get("amountCents"),
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out, err := a.Webhooks.Handle(r.Context(), string(domain.ProviderSandbox), body, payments.RequestMeta{
		Header:   http.Header{},
		RemoteIP: middleware.ClientIP(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"contributionId": out.ContributionID,
		"status":         out.Status,
		"duplicate":      out.Duplicate,
	})
}
