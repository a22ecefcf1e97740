package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dreamboard/internal/domain"
	"dreamboard/internal/middleware"
	"dreamboard/internal/payments"
)

// Webhook accepts a provider notification. Errors carry only the code so
// senders learn nothing beyond the failed check.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": domain.ErrInvalidPayload.Code})
		return
	}

	out, err := a.Webhooks.Handle(r.Context(), provider, body, payments.RequestMeta{
		Header:   r.Header,
		RemoteIP: middleware.ClientIP(r),
	})
	if err != nil {
		status, code := statusOf(err)
		if status >= http.StatusInternalServerError {
			a.Logger.Error().Err(err).Str("provider", provider).Msg("payments.webhook_failed")
		}
		a.json(w, status, map[string]string{"error": code})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"received": true, "duplicate": out.Duplicate})
}
