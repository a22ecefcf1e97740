// Package handlers holds the HTTP endpoints. Handlers decode requests, call
// one service and translate domain errors with writeError.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"dreamboard/internal/campaigns"
	"dreamboard/internal/contributions"
	"dreamboard/internal/domain"
	"dreamboard/internal/middleware"
	"dreamboard/internal/payments"
	"dreamboard/internal/payouts"
)

const maxBodyBytes = 1 << 20

type App struct {
	Logger        zerolog.Logger
	Webhooks      *payments.Processor
	Contributions *contributions.Service
	Campaigns     *campaigns.Service
	Payouts       *payouts.Executor
	// ContributionLimiter throttles pledges per client and dream board.
	ContributionLimiter middleware.Limiter
	// Ready checks backing storage for the health endpoint. Nil means always ready.
	Ready func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}

var statusByCode = map[string]int{
	domain.ErrValidation.Code:            http.StatusBadRequest,
	domain.ErrInvalidSignature.Code:      http.StatusBadRequest,
	domain.ErrInvalidPayload.Code:        http.StatusBadRequest,
	domain.ErrMissingReference.Code:      http.StatusBadRequest,
	domain.ErrAmountMissing.Code:         http.StatusBadRequest,
	domain.ErrAmountMismatch.Code:        http.StatusBadRequest,
	domain.ErrInvalidTimestamp.Code:      http.StatusBadRequest,
	domain.ErrProviderUnavailable.Code:   http.StatusBadRequest,
	domain.ErrInvalidSource.Code:         http.StatusForbidden,
	domain.ErrUnauthorized.Code:          http.StatusUnauthorized,
	domain.ErrNotFound.Code:              http.StatusNotFound,
	domain.ErrConflict.Code:              http.StatusConflict,
	domain.ErrBoardClosed.Code:           http.StatusConflict,
	domain.ErrNotReadyForPayout.Code:     http.StatusConflict,
	domain.ErrAutomationDisabled.Code:    http.StatusUnprocessableEntity,
	domain.ErrUnsupportedPayoutType.Code: http.StatusUnprocessableEntity,
	domain.ErrRateLimited.Code:           http.StatusTooManyRequests,
}

func statusOf(err error) (int, string) {
	code := domain.CodeOf(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, code
}

// writeError maps err to its status. 5xx details are logged, not returned.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http.internal_error")
		message := "internal error"
		var de *domain.Error
		if errors.As(err, &de) {
			message = de.Message
		}
		a.error(w, status, code, message)
		return
	}
	a.error(w, status, code, err.Error())
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, domain.ErrValidation.Code, "invalid JSON body")
		return false
	}
	return true
}
