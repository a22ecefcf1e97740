package givengain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDonateReturnsReceipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body donationBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.CauseID != "cause-1" || body.AmountCents != 600 {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"id":"d-1","status":"pending","receiptUrl":"https://r.example/1","certificateUrl":"https://c.example/1"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	res, err := c.Donate(context.Background(), DonationRequest{CauseID: "cause-1", AmountCents: 600, Reference: "p-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DonationID != "d-1" || res.Status != "pending" || res.ReceiptURL == "" || res.CertificateURL == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDonateRequiresCause(t *testing.T) {
	c, _ := NewClient(Options{APIKey: "k"})
	if _, err := c.Donate(context.Background(), DonationRequest{AmountCents: 1}); err == nil {
		t.Fatalf("expected error without cause")
	}
}
