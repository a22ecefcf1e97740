package main

import (
	"time"

	"dreamboard/internal/campaigns"
	"dreamboard/internal/domain"
	"dreamboard/internal/events"
	"dreamboard/internal/payments"
	"dreamboard/internal/payouts"
)

type payoutView struct {
	ID           string `json:"id" yaml:"id"`
	DreamBoard   string `json:"dreamBoardId" yaml:"dream_board_id"`
	Type         string `json:"type" yaml:"type"`
	Status       string `json:"status" yaml:"status"`
	GrossCents   int64  `json:"grossCents" yaml:"gross_cents"`
	FeeCents     int64  `json:"feeCents" yaml:"fee_cents"`
	CharityCents int64  `json:"charityCents" yaml:"charity_cents"`
	NetCents     int64  `json:"netCents" yaml:"net_cents"`
	ExternalRef  string `json:"externalRef,omitempty" yaml:"external_ref,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

func newPayoutView(p domain.Payout) payoutView {
	v := payoutView{
		ID:           p.ID,
		DreamBoard:   p.CampaignID,
		Type:         string(p.Type),
		Status:       string(p.Status),
		GrossCents:   p.GrossCents,
		FeeCents:     p.FeeCents,
		CharityCents: p.CharityCents,
		NetCents:     p.NetCents,
	}
	if p.ExternalRef != nil {
		v.ExternalRef = *p.ExternalRef
	}
	if p.ErrorMessage != nil {
		v.Error = *p.ErrorMessage
	}
	if !p.UpdatedAt.IsZero() {
		v.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return v
}

type summaryView struct {
	ID       string `json:"id" yaml:"id"`
	Type     string `json:"type" yaml:"type"`
	Status   string `json:"status" yaml:"status"`
	NetCents int64  `json:"netCents" yaml:"net_cents"`
}

type closeView struct {
	DreamBoard   string        `json:"dreamBoardId" yaml:"dream_board_id"`
	Status       string        `json:"status" yaml:"status"`
	RaisedCents  int64         `json:"raisedCents" yaml:"raised_cents"`
	Transitioned bool          `json:"transitioned" yaml:"transitioned"`
	Payouts      []summaryView `json:"payouts" yaml:"payouts"`
}

func newCloseView(res campaigns.CloseResult) closeView {
	v := closeView{
		DreamBoard:   res.Campaign.ID,
		Status:       string(res.Campaign.Status),
		RaisedCents:  res.Totals.RaisedCents,
		Transitioned: res.Transitioned,
		Payouts:      make([]summaryView, 0, len(res.Payouts)),
	}
	for _, p := range res.Payouts {
		v.Payouts = append(v.Payouts, summaryView{ID: p.ID, Type: string(p.Type), Status: string(p.Status), NetCents: p.NetCents})
	}
	return v
}

type executionView struct {
	Payout            payoutView `json:"payout" yaml:"payout"`
	Reason            string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	Retryable         bool       `json:"retryable" yaml:"retryable"`
	DreamBoardPaidOut bool       `json:"dreamBoardPaidOut" yaml:"dream_board_paid_out"`
}

func newExecutionView(res payouts.ExecutionResult) executionView {
	return executionView{
		Payout:            newPayoutView(res.Payout),
		Reason:            res.Reason,
		Retryable:         res.Retryable,
		DreamBoardPaidOut: res.CampaignPaidOut,
	}
}

type flushView struct {
	Claimed   int `json:"claimed" yaml:"claimed"`
	Delivered int `json:"delivered" yaml:"delivered"`
	Retrying  int `json:"retrying" yaml:"retrying"`
	Failed    int `json:"failed" yaml:"failed"`
}

func newFlushView(s events.Stats) flushView {
	return flushView{Claimed: s.Claimed, Delivered: s.Delivered, Retrying: s.Retrying, Failed: s.Failed}
}

type passView struct {
	Scanned    int `json:"scanned" yaml:"scanned"`
	Updated    int `json:"updated" yaml:"updated"`
	Failed     int `json:"failed" yaml:"failed"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
	Mismatches int `json:"mismatches" yaml:"mismatches"`
}

func newPassView(p payments.PassResult) passView {
	return passView{Scanned: p.Scanned, Updated: p.Updated, Failed: p.Failed, Unresolved: p.Unresolved, Mismatches: len(p.Mismatches)}
}

type reconcileView struct {
	Total         passView                          `json:"total" yaml:"total"`
	LookbackStart time.Time                         `json:"lookbackStart" yaml:"lookback_start"`
	Cutoff        time.Time                         `json:"cutoff" yaml:"cutoff"`
	LongTailStart time.Time                         `json:"longTailStart" yaml:"long_tail_start"`
	LongTail      passView                          `json:"longTail" yaml:"long_tail"`
	Mismatched    []payments.ReconcileMismatchEntry `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
}

func newReconcileView(res payments.ReconcileResult) reconcileView {
	total := res.Total()
	return reconcileView{
		Total:         newPassView(total),
		LookbackStart: res.LookbackStart,
		Cutoff:        res.Cutoff,
		LongTailStart: res.LongTailStart,
		LongTail:      newPassView(res.LongTail),
		Mismatched:    total.Mismatches,
	}
}
