package handlers

import (
	"net/http"

	"dreamboard/internal/contributions"
	"dreamboard/internal/domain"
	"dreamboard/internal/middleware"
	"dreamboard/internal/payments"
)

type createContributionRequest struct {
	DreamBoardID    string `json:"dreamBoardId"`
	ContributorName string `json:"contributorName"`
	Message         string `json:"message"`
	AmountCents     int64  `json:"amountCents"`
	PaymentProvider string `json:"paymentProvider"`
	PayerEmail      string `json:"payerEmail"`
	ReturnURL       string `json:"returnUrl"`
	CancelURL       string `json:"cancelUrl"`
}

type contributionResponse struct {
	ID          string                 `json:"id"`
	PaymentRef  string                 `json:"paymentRef"`
	AmountCents int64                  `json:"amountCents"`
	FeeCents    int64                  `json:"feeCents"`
	ChargeCents int64                  `json:"chargeCents"`
	Status      domain.PaymentStatus   `json:"status"`
	Provider    domain.PaymentProvider `json:"paymentProvider"`
	Payment     payments.Intent        `json:"payment"`
}

func (a *App) CreateContribution(w http.ResponseWriter, r *http.Request) {
	var req createContributionRequest
	if !a.decode(w, r, &req) {
		return
	}
	ip := middleware.ClientIP(r)

	if a.ContributionLimiter != nil && req.DreamBoardID != "" {
		key := "ratelimit:contribution:" + ip + ":" + req.DreamBoardID
		d, err := a.ContributionLimiter.Allow(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("ratelimit.store_failed")
		}
		if !d.Allowed {
			middleware.WriteRateLimited(w, d.RetryAfter)
			return
		}
	}

	res, err := a.Contributions.Create(r.Context(), contributions.CreateInput{
		DreamBoardID:    req.DreamBoardID,
		ContributorName: req.ContributorName,
		Message:         req.Message,
		AmountCents:     req.AmountCents,
		Provider:        domain.PaymentProvider(req.PaymentProvider),
		PayerEmail:      req.PayerEmail,
		ReturnURL:       req.ReturnURL,
		CancelURL:       req.CancelURL,
		IPAddress:       ip,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	c := res.Contribution
	a.json(w, http.StatusCreated, contributionResponse{
		ID:          c.ID,
		PaymentRef:  c.PaymentRef,
		AmountCents: c.AmountCents,
		FeeCents:    c.FeeCents,
		ChargeCents: c.ExpectedChargeCents(),
		Status:      c.Status,
		Provider:    c.Provider,
		Payment:     res.Intent,
	})
}
