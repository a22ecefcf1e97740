package giftcard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dreamboard/internal/providers/httpretry"
)

func TestIssueReturnsCardDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gift-cards" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"completed","giftCardCode":"ABC","giftCardUrl":"https://gc.example/ABC","orderId":"o-1"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	res, err := c.Issue(context.Background(), IssueRequest{AmountCents: 5000, RecipientEmail: "a@b.c", Reference: "p-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OrderID != "o-1" || res.Code != "ABC" || res.Status != "completed" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIssueSurfacesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad email"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Issue(context.Background(), IssueRequest{AmountCents: 5000, RecipientEmail: "a@b.c", Reference: "p-1"})
	var se *httpretry.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status error, got %v", err)
	}
	if httpretry.Retryable(err) {
		t.Fatalf("422 must not be retryable")
	}
}

func TestIssueRequiresBaseURL(t *testing.T) {
	c, _ := NewClient(Options{APIKey: "k"})
	if c.HasCredentials() {
		t.Fatalf("expected missing base url to disable the client")
	}
}
