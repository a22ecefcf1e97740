package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTransferUsesPayoutIDAsIdempotencyKey(t *testing.T) {
	var gotKey, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotBody = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tr_123","object":"transfer","amount":13400,"currency":"zar"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{SecretKey: "sk_test_123", BaseURL: srv.URL, HTTPClient: srv.Client()})
	res, err := c.Transfer(context.Background(), TransferRequest{
		PayoutID:    "payout-1",
		CampaignID:  "board-1",
		Destination: "acct_1",
		AmountCents: 13400,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TransferID != "tr_123" || res.Failed {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotKey != "payout-1" || gotPath != "/v1/transfers" {
		t.Fatalf("unexpected request key=%q path=%q", gotKey, gotPath)
	}
	if !strings.Contains(gotBody, "amount=13400") || !strings.Contains(gotBody, "currency=zar") {
		t.Fatalf("unexpected form %q", gotBody)
	}
}

func TestTransferDeclineIsAResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"balance_insufficient","message":"no funds"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{SecretKey: "sk_test_123", BaseURL: srv.URL, HTTPClient: srv.Client()})
	res, err := c.Transfer(context.Background(), TransferRequest{PayoutID: "p", Destination: "acct_1", AmountCents: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Failed || res.Reason != "balance_insufficient" {
		t.Fatalf("expected declined result, got %+v", res)
	}
}

func TestTransferWithoutDestinationFails(t *testing.T) {
	c, _ := NewClient(Options{SecretKey: "sk_test_123"})
	res, err := c.Transfer(context.Background(), TransferRequest{PayoutID: "p", AmountCents: 100})
	if err != nil || !res.Failed {
		t.Fatalf("expected failed result, got %+v %v", res, err)
	}
}
