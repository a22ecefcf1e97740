package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dreamboard/internal/domain"
)

// ProviderTransaction is a provider's own record of one payment.
type ProviderTransaction struct {
	Reference string
	Status    domain.PaymentStatus
	// AmountCents is nil when the provider did not report an amount.
	AmountCents *int64
}

// TransactionLister reads a provider's transaction history.
type TransactionLister interface {
	Provider() domain.PaymentProvider
	ListTransactions(ctx context.Context, from, to time.Time) ([]ProviderTransaction, error)
}

const (
	ozowPageLimit = 100
	ozowMaxPages  = 20
)

var (
	ozowListingCompleted     = []string{"successful", "success", "paid", "completed"}
	ozowListingFailed        = []string{"error", "failed", "cancelled", "canceled", "expired", "refunded"}
	snapScanListingCompleted = []string{"completed", "paid", "success", "successful"}
	snapScanListingFailed    = []string{"error", "failed", "cancelled", "canceled", "expired"}
)

// CanList reports whether transaction listings can be requested.
func (o *Ozow) CanList() bool {
	return o.opts.ClientID != "" && o.opts.ClientSecret != "" && o.opts.BaseURL != ""
}

// ListTransactions pages through Ozow's transactions between from and to.
// Paging stops after a short page or the page cap.
func (o *Ozow) ListTransactions(ctx context.Context, from, to time.Time) ([]ProviderTransaction, error) {
	if !o.CanList() {
		return nil, errors.New("ozow: configuration is incomplete")
	}
	token, err := o.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var out []ProviderTransaction
	pages := 0
	for offset := 0; pages < ozowMaxPages; offset += ozowPageLimit {
		q := url.Values{}
		q.Set("fromDate", isoTime(from))
		q.Set("toDate", isoTime(to))
		if o.opts.SiteCode != "" {
			q.Set("siteCode", o.opts.SiteCode)
		}
		q.Set("limit", strconv.Itoa(ozowPageLimit))
		q.Set("offset", strconv.Itoa(offset))

		var payload any
		if err := o.getJSON(ctx, o.opts.BaseURL+"/transactions?"+q.Encode(), token, &payload); err != nil {
			return nil, err
		}
		items := listItems(payload, "data", "transactions", "items", "results", "records")
		for _, item := range items {
			out = append(out, ProviderTransaction{
				Reference:   ozowTransactionReference(item),
				Status:      matchKeywords(stringField(item, "status"), ozowListingCompleted, ozowListingFailed),
				AmountCents: ozowTransactionAmount(item),
			})
		}
		pages++
		if len(items) < ozowPageLimit {
			return out, nil
		}
	}
	o.logger.Warn().Int("pages", pages).Msg("payments.ozow_paging_incomplete")
	return out, nil
}

func (o *Ozow) getJSON(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ozow: transactions request: %w", err)
	}
	defer resp.Body.Close()
	return decodeListing(resp, "ozow: transactions", out)
}

func ozowTransactionReference(item map[string]any) string {
	if ref := stringField(item, "merchantReference"); ref != "" {
		return ref
	}
	if req, ok := item["paymentRequest"].(map[string]any); ok {
		if ref := stringField(req, "merchantReference"); ref != "" {
			return ref
		}
	}
	return stringField(item, "merchant_reference")
}

func ozowTransactionAmount(item map[string]any) *int64 {
	var raw any
	if nested, ok := item["amount"].(map[string]any); ok {
		raw = nested["value"]
	} else {
		raw = item["amount"]
	}
	if raw == nil {
		if req, ok := item["paymentRequest"].(map[string]any); ok {
			if nested, ok := req["amount"].(map[string]any); ok {
				raw = nested["value"]
			}
		}
	}
	if raw == nil {
		return nil
	}
	cents, ok := amountFromUnits(raw)
	if !ok {
		return nil
	}
	return &cents
}

// CanList reports whether transaction listings can be requested.
func (s *SnapScan) CanList() bool { return s.opts.APIKey != "" }

// ListTransactions returns SnapScan payments created between from and to.
func (s *SnapScan) ListTransactions(ctx context.Context, from, to time.Time) ([]ProviderTransaction, error) {
	if !s.CanList() {
		return nil, errors.New("snapscan: api key is missing")
	}
	q := url.Values{}
	q.Set("startDate", isoTime(from))
	q.Set("endDate", isoTime(to))
	q.Set("status", "completed,pending,error")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"/merchant/api/v1/payments?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.opts.APIKey, "")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapscan: payments request: %w", err)
	}
	defer resp.Body.Close()

	var payload any
	if err := decodeListing(resp, "snapscan: payments", &payload); err != nil {
		return nil, err
	}
	items := listItems(payload, "data", "payments", "items", "results")
	out := make([]ProviderTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, ProviderTransaction{
			Reference:   stringField(item, "merchantReference"),
			Status:      matchKeywords(stringField(item, "status"), snapScanListingCompleted, snapScanListingFailed),
			AmountCents: snapScanPaymentAmount(item),
		})
	}
	return out, nil
}

// snapScanPaymentAmount reads requiredAmount or totalAmount, both in cents.
func snapScanPaymentAmount(item map[string]any) *int64 {
	raw := firstValue(item, "requiredAmount", "totalAmount")
	n, ok := raw.(json.Number)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil
	}
	cents := d.Round(0).IntPart()
	return &cents
}

func decodeListing(resp *http.Response, what string, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", what, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s failed (%d): %s", what, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", what, err)
	}
	return nil
}

// listItems returns the records of a listing that is either a bare array or
// an object holding the array under one of keys.
func listItems(payload any, keys ...string) []map[string]any {
	list, ok := payload.([]any)
	if !ok {
		obj, _ := payload.(map[string]any)
		for _, k := range keys {
			if l, ok := obj[k].([]any); ok {
				list = l
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
