package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dreamboard/internal/campaigns"
	"dreamboard/internal/domain"
	"dreamboard/internal/middleware"
)

type closeRequest struct {
	Reason string `json:"reason"`
}

type payoutView struct {
	ID            string              `json:"id"`
	DreamBoardID  string              `json:"dreamBoardId"`
	Type          domain.PayoutType   `json:"type"`
	Status        domain.PayoutStatus `json:"status"`
	GrossCents    int64               `json:"grossCents"`
	FeeCents      int64               `json:"feeCents"`
	CharityCents  int64               `json:"charityCents"`
	NetCents      int64               `json:"netCents"`
	ExternalRef   *string             `json:"externalRef,omitempty"`
	ErrorMessage  *string             `json:"errorMessage,omitempty"`
	RecipientData map[string]any      `json:"recipientData,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
}

func newPayoutView(p domain.Payout) payoutView {
	return payoutView{
		ID:            p.ID,
		DreamBoardID:  p.CampaignID,
		Type:          p.Type,
		Status:        p.Status,
		GrossCents:    p.GrossCents,
		FeeCents:      p.FeeCents,
		CharityCents:  p.CharityCents,
		NetCents:      p.NetCents,
		ExternalRef:   p.ExternalRef,
		ErrorMessage:  p.ErrorMessage,
		RecipientData: p.RecipientData,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

// DreamBoardSummary is the public, cached view of a board.
func (a *App) DreamBoardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Campaigns.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, summary)
}

func (a *App) CloseDreamBoard(w http.ResponseWriter, r *http.Request) {
	req := closeRequest{Reason: campaigns.ReasonManual}
	if r.ContentLength != 0 && !a.decode(w, r, &req) {
		return
	}
	res, err := a.Campaigns.Close(r.Context(), chi.URLParam(r, "id"), req.Reason, middleware.ActorFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":          res.Campaign.ID,
		"status":      res.Campaign.Status,
		"raisedCents": res.Totals.RaisedCents,
		"payouts":     res.Payouts,
	})
}

func (a *App) ListDreamBoardPayouts(w http.ResponseWriter, r *http.Request) {
	list, err := a.Campaigns.Payouts(r.Context(), chi.URLParam(r, "id"), middleware.ActorFromContext(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items := make([]payoutView, 0, len(list))
	for _, p := range list {
		items = append(items, newPayoutView(p))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
