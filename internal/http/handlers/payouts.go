package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dreamboard/internal/middleware"
	"dreamboard/internal/payouts"
)

type executionResponse struct {
	Payout         payoutView `json:"payout"`
	Reason         string     `json:"reason,omitempty"`
	Retryable      bool       `json:"retryable"`
	DreamBoardPaid bool       `json:"dreamBoardPaidOut"`
}

func (a *App) writeExecution(w http.ResponseWriter, res payouts.ExecutionResult) {
	a.json(w, http.StatusOK, executionResponse{
		Payout:         newPayoutView(res.Payout),
		Reason:         res.Reason,
		Retryable:      res.Retryable,
		DreamBoardPaid: res.CampaignPaidOut,
	})
}

func (a *App) ExecutePayout(w http.ResponseWriter, r *http.Request) {
	res, err := a.Payouts.Execute(r.Context(), chi.URLParam(r, "id"), middleware.ActorFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeExecution(w, res)
}

func (a *App) ConfirmPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalRef string `json:"externalRef"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Payouts.Confirm(r.Context(), chi.URLParam(r, "id"), req.ExternalRef, middleware.ActorFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeExecution(w, res)
}

func (a *App) FailPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Payouts.Fail(r.Context(), chi.URLParam(r, "id"), req.Reason, middleware.ActorFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeExecution(w, res)
}
