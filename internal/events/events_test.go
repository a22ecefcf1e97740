package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/adapter/memory"
	"dreamboard/internal/domain"
)

const partnerID = "7b0d3a52-0d6c-4c38-9a43-9fd0b1f1c0aa"

func TestEmitFansOutToInterestedSubscriptions(t *testing.T) {
	store := memory.NewStore()
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: "https://a.example", Secret: "s1", EventTypes: []string{domain.EventCampaignFunded}, Active: true})
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: "https://b.example", Secret: "s2", EventTypes: []string{"*"}, Active: true})
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: "https://c.example", Secret: "s3", EventTypes: []string{domain.EventContributionReceived}, Active: true})
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: "https://d.example", Secret: "s4", EventTypes: []string{"*"}, Active: false})

	NewEmitter(store, zerolog.Nop()).Emit(context.Background(), partnerID, domain.EventCampaignFunded, map[string]string{"id": "board"})

	rows := store.Events()
	if len(rows) != 2 {
		t.Fatalf("expected 2 outbox rows, got %d", len(rows))
	}
	for _, row := range rows {
		var env Envelope
		if err := json.Unmarshal(row.Payload, &env); err != nil {
			t.Fatalf("payload is not json: %v", err)
		}
		if env.ID != row.ID || env.Type != domain.EventCampaignFunded {
			t.Fatalf("unexpected envelope %+v for row %s", env, row.ID)
		}
		if row.Status != domain.EventPending {
			t.Fatalf("expected pending row, got %s", row.Status)
		}
	}
}

func TestEmitMatchesPartnerVocabulary(t *testing.T) {
	store := memory.NewStore()
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: "https://a.example", Secret: "s1",
		EventTypes: []string{"pot.funded", "pot.closed", "payout.completed"}, Active: true})
	emitter := NewEmitter(store, zerolog.Nop())

	for _, eventType := range []string{domain.EventCampaignFunded, domain.EventCampaignClosed, domain.EventPayoutCompleted, domain.EventPayoutFailed} {
		emitter.Emit(context.Background(), partnerID, eventType, nil)
	}
	if got := len(store.Events()); got != 3 {
		t.Fatalf("expected 3 rows for the subscribed pot/payout events, got %d", got)
	}
}

func TestEmitWithoutSubscriptionsIsNoop(t *testing.T) {
	store := memory.NewStore()
	NewEmitter(store, zerolog.Nop()).Emit(context.Background(), partnerID, domain.EventCampaignClosed, nil)
	if n := len(store.Events()); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestNextAttemptDelay(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
		ok       bool
	}{
		{1, time.Minute, true},
		{2, 5 * time.Minute, true},
		{3, 30 * time.Minute, true},
		{4, 2 * time.Hour, true},
		{5, 6 * time.Hour, true},
		{6, 0, false},
	}
	for _, tc := range cases {
		got, ok := NextAttemptDelay(tc.attempts)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("attempts %d: got %s %v, want %s %v", tc.attempts, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSignIsStable(t *testing.T) {
	a := Sign("secret", 1700000000, []byte(`{"a":1}`))
	b := Sign("secret", 1700000000, []byte(`{"a":1}`))
	if a != b || len(a) != len("sha256=")+64 {
		t.Fatalf("unexpected signature %q", a)
	}
	if a == Sign("secret", 1700000001, []byte(`{"a":1}`)) {
		t.Fatalf("signature must cover the timestamp")
	}
}

func TestProcessDueDeliversSignedRequests(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts := r.Header.Get("X-Webhook-Timestamp")
		var tsInt int64
		if err := json.Unmarshal([]byte(ts), &tsInt); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Webhook-Signature") != Sign("whsec", tsInt, body) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		got.Store(r.Header.Get("X-Webhook-Id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := memory.NewStore()
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: srv.URL, Secret: "whsec", EventTypes: []string{"*"}, Active: true})
	NewEmitter(store, zerolog.Nop()).Emit(context.Background(), partnerID, domain.EventCampaignPaidOut, map[string]int{"n": 1})

	d := NewDispatcher(store.Repos().Events, DispatcherOptions{Logger: zerolog.Nop()})
	stats, err := d.ProcessDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if stats.Claimed != 1 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	row := store.Events()[0]
	if row.Status != domain.EventDelivered || got.Load() != row.ID {
		t.Fatalf("expected delivered row %s, got %+v", got.Load(), row)
	}
}

func TestProcessDueSchedulesRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	store := memory.NewStore()
	store.PutSubscription(domain.PartnerSubscription{PartnerID: partnerID, URL: srv.URL, Secret: "whsec", EventTypes: []string{"*"}, Active: true})
	NewEmitter(store, zerolog.Nop()).Emit(context.Background(), partnerID, domain.EventCampaignClosed, nil)

	clock := time.Now()
	d := NewDispatcher(store.Repos().Events, DispatcherOptions{Logger: zerolog.Nop(), Now: func() time.Time { return clock }})

	stats, err := d.ProcessDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if stats.Retrying != 1 {
		t.Fatalf("expected a retry, got %+v", stats)
	}
	row := store.Events()[0]
	if row.Attempts != 1 || row.LastStatusCode == nil || *row.LastStatusCode != 500 {
		t.Fatalf("unexpected row after first failure: %+v", row)
	}
	if !row.NextAttemptAt.Equal(clock.Add(time.Minute)) {
		t.Fatalf("expected retry in one minute, got %s", row.NextAttemptAt.Sub(clock))
	}

	for i := 0; i < 10; i++ {
		clock = clock.Add(7 * time.Hour)
		if _, err := d.ProcessDue(context.Background(), 10); err != nil {
			t.Fatalf("process due: %v", err)
		}
	}
	row = store.Events()[0]
	if row.Status != domain.EventFailed || row.Attempts != MaxAttempts {
		t.Fatalf("expected failed after %d attempts, got %+v", MaxAttempts, row)
	}
}
