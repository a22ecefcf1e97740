package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dreamboard/internal/adapter/memory"
	"dreamboard/internal/domain"
	"dreamboard/internal/infra/lock"
	"dreamboard/internal/settlement"
)

func TestDecideReconciliation(t *testing.T) {
	cents := func(v int64) *int64 { return &v }
	tests := []struct {
		name     string
		status   domain.PaymentStatus
		received *int64
		want     ReconcileDecision
	}{
		{"completed match", domain.PaymentCompleted, cents(10300), ReconcileDecision{Action: ReconcileUpdate, Status: domain.PaymentCompleted}},
		{"completed short", domain.PaymentCompleted, cents(10000), ReconcileDecision{Action: ReconcileMismatch, Status: domain.PaymentCompleted}},
		{"completed without amount", domain.PaymentCompleted, nil, ReconcileDecision{Action: ReconcileMismatch, Status: domain.PaymentCompleted}},
		{"failed", domain.PaymentFailed, nil, ReconcileDecision{Action: ReconcileUpdate, Status: domain.PaymentFailed}},
		{"processing", domain.PaymentProcessing, cents(10300), ReconcileDecision{Action: ReconcileSkip, Reason: "pending"}},
		{"unknown", domain.PaymentPending, nil, ReconcileDecision{Action: ReconcileSkip, Reason: "unknown"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecideReconciliation(tc.status, 10300, tc.received); got != tc.want {
				t.Fatalf("DecideReconciliation() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

type fakeLister struct {
	provider domain.PaymentProvider
	txs      []ProviderTransaction
	err      error
	from, to time.Time
	calls    int
}

func (f *fakeLister) Provider() domain.PaymentProvider { return f.provider }

func (f *fakeLister) ListTransactions(_ context.Context, from, to time.Time) ([]ProviderTransaction, error) {
	f.calls++
	f.from, f.to = from, to
	return f.txs, f.err
}

type reconcileFixture struct {
	store     *memory.Store
	clock     *time.Time
	processor *Processor
	emitter   *recordingEmitter
	campaign  domain.Campaign
}

func newReconcileFixture() reconcileFixture {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := reconcileFixture{clock: &clock, emitter: &recordingEmitter{}}
	f.store = memory.NewStore().WithClock(func() time.Time { return *f.clock })
	f.campaign = f.store.PutCampaign(domain.Campaign{
		PartnerID:    "partner-1",
		GoalCents:    500000,
		Status:       domain.CampaignActive,
		PayoutMethod: domain.PayoutGiftCard,
	})
	completer := settlement.NewCompleter(f.store, lock.NewLocalMutex(), zerolog.Nop())
	f.processor = NewProcessor(NewRegistry(), f.store, completer, &fakeHooks{}, f.emitter, TimestampPolicy{}, zerolog.Nop())
	return f
}

// contribution creates a pending R100 contribution with a R3 fee, age old.
func (f reconcileFixture) contribution(t *testing.T, provider domain.PaymentProvider, ref string, age time.Duration) string {
	t.Helper()
	now := *f.clock
	*f.clock = now.Add(-age)
	defer func() { *f.clock = now }()
	c := &domain.Contribution{
		CampaignID:  f.campaign.ID,
		PartnerID:   f.campaign.PartnerID,
		AmountCents: 10000,
		FeeCents:    300,
		Provider:    provider,
		PaymentRef:  ref,
		Status:      domain.PaymentPending,
	}
	if err := f.store.Repos().Contributions.Create(context.Background(), c); err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	return c.ID
}

func (f reconcileFixture) status(t *testing.T, id string) domain.PaymentStatus {
	t.Helper()
	c, err := f.store.Repos().Contributions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return c.Status
}

func TestReconcilerSettlesFromListings(t *testing.T) {
	f := newReconcileFixture()
	paid := f.contribution(t, domain.ProviderOzow, "DB-PAID", 2*time.Hour)
	failed := f.contribution(t, domain.ProviderOzow, "DB-FAILED", 3*time.Hour)
	short := f.contribution(t, domain.ProviderOzow, "DB-SHORT", 4*time.Hour)
	missing := f.contribution(t, domain.ProviderOzow, "DB-MISSING", time.Hour)
	itn := f.contribution(t, domain.ProviderPayFast, "DB-ITN", time.Hour)
	young := f.contribution(t, domain.ProviderOzow, "DB-YOUNG", 5*time.Minute)
	old := f.contribution(t, domain.ProviderSnapScan, "DB-OLD", 72*time.Hour)

	cents := func(v int64) *int64 { return &v }
	ozow := &fakeLister{provider: domain.ProviderOzow, txs: []ProviderTransaction{
		{Reference: "DB-PAID", Status: domain.PaymentCompleted, AmountCents: cents(10300)},
		{Reference: "DB-FAILED", Status: domain.PaymentFailed},
		{Reference: "DB-SHORT", Status: domain.PaymentCompleted, AmountCents: cents(5000)},
		{Reference: "DB-YOUNG", Status: domain.PaymentCompleted, AmountCents: cents(10300)},
	}}
	snapscan := &fakeLister{provider: domain.ProviderSnapScan, txs: []ProviderTransaction{
		{Reference: "DB-OLD", Status: domain.PaymentCompleted, AmountCents: cents(10300)},
	}}
	r := NewReconciler(f.store, f.processor, []TransactionLister{ozow, snapscan}, ReconcilerOptions{
		Now:    func() time.Time { return *f.clock },
		Logger: zerolog.Nop(),
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := res.Primary
	if p.Scanned != 5 || p.Updated != 1 || p.Failed != 1 || p.Unresolved != 3 || len(p.Mismatches) != 1 {
		t.Fatalf("primary = %+v", p)
	}
	if m := p.Mismatches[0]; m.PaymentRef != "DB-SHORT" || m.ExpectedCents != 10300 || m.ReceivedCents == nil || *m.ReceivedCents != 5000 {
		t.Fatalf("mismatch = %+v", m)
	}
	if lt := res.LongTail; lt.Scanned != 1 || lt.Updated != 1 {
		t.Fatalf("long tail = %+v", lt)
	}
	if total := res.Total(); total.Scanned != 6 || total.Updated != 2 {
		t.Fatalf("total = %+v", total)
	}

	want := map[string]domain.PaymentStatus{
		paid:    domain.PaymentCompleted,
		failed:  domain.PaymentFailed,
		short:   domain.PaymentPending,
		missing: domain.PaymentPending,
		itn:     domain.PaymentPending,
		young:   domain.PaymentPending,
		old:     domain.PaymentCompleted,
	}
	for id, status := range want {
		if got := f.status(t, id); got != status {
			t.Fatalf("contribution %s status = %s, want %s", id, got, status)
		}
	}

	// The listing window starts at the oldest pending contribution.
	if !ozow.from.Equal(f.clock.Add(-4*time.Hour)) || !ozow.to.Equal(*f.clock) {
		t.Fatalf("ozow window = %s..%s", ozow.from, ozow.to)
	}

	completed := 0
	for _, e := range f.emitter.events {
		if e.eventType == domain.EventContributionReceived {
			completed++
		}
	}
	if completed != 2 {
		t.Fatalf("contribution.received events = %d, want 2", completed)
	}
}

func TestReconcilerListingFailureLeavesContributions(t *testing.T) {
	f := newReconcileFixture()
	id := f.contribution(t, domain.ProviderOzow, "DB-1", time.Hour)
	ozow := &fakeLister{provider: domain.ProviderOzow, err: errors.New("ozow: transactions request failed (503)")}
	r := NewReconciler(f.store, f.processor, []TransactionLister{ozow}, ReconcilerOptions{
		Now:    func() time.Time { return *f.clock },
		Logger: zerolog.Nop(),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Primary.Scanned != 1 || res.Primary.Unresolved != 1 {
		t.Fatalf("primary = %+v", res.Primary)
	}
	if f.status(t, id) != domain.PaymentPending {
		t.Fatalf("status changed after a listing failure")
	}
}

func TestReconcilerSkipsLongTailInsideLookback(t *testing.T) {
	f := newReconcileFixture()
	f.contribution(t, domain.ProviderOzow, "DB-1", 30*time.Hour)
	ozow := &fakeLister{provider: domain.ProviderOzow}
	r := NewReconciler(f.store, f.processor, []TransactionLister{ozow}, ReconcilerOptions{
		Lookback: 24 * time.Hour,
		LongTail: 12 * time.Hour,
		Now:      func() time.Time { return *f.clock },
		Logger:   zerolog.Nop(),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Primary.Scanned != 0 || res.LongTail.Scanned != 0 || ozow.calls != 0 {
		t.Fatalf("result = %+v, calls = %d", res, ozow.calls)
	}
}

func TestOzowListTransactionsPages(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
		case "/transactions":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("Authorization = %q", got)
			}
			q := r.URL.Query()
			if q.Get("siteCode") != "SITE" || q.Get("limit") != "100" || q.Get("fromDate") != "2026-03-01T08:00:00.000Z" {
				t.Errorf("query = %v", q)
			}
			offsets = append(offsets, q.Get("offset"))
			var items []map[string]any
			if q.Get("offset") == "0" {
				for i := range ozowPageLimit {
					items = append(items, map[string]any{
						"merchantReference": fmt.Sprintf("DB-%d", i),
						"status":            "Successful",
						"amount":            map[string]any{"value": "103.00"},
					})
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"data": items})
				return
			}
			items = append(items, map[string]any{
				"paymentRequest": map[string]any{"merchantReference": "DB-LAST", "amount": map[string]any{"value": 55.5}},
				"status":         "Refunded",
			})
			_ = json.NewEncoder(w).Encode(items)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	o := NewOzow(OzowOptions{ClientID: "client", ClientSecret: "secret", SiteCode: "SITE", BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
	from := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	txs, err := o.ListTransactions(context.Background(), from, from.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(offsets) != 2 || offsets[1] != "100" {
		t.Fatalf("offsets = %v", offsets)
	}
	if len(txs) != ozowPageLimit+1 {
		t.Fatalf("transactions = %d", len(txs))
	}
	first := txs[0]
	if first.Reference != "DB-0" || first.Status != domain.PaymentCompleted || first.AmountCents == nil || *first.AmountCents != 10300 {
		t.Fatalf("first = %+v", first)
	}
	last := txs[len(txs)-1]
	if last.Reference != "DB-LAST" || last.Status != domain.PaymentFailed || last.AmountCents == nil || *last.AmountCents != 5550 {
		t.Fatalf("last = %+v", last)
	}
}

func TestSnapScanListTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant/api/v1/payments" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-key" || pass != "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("status"); got != "completed,pending,error" {
			t.Errorf("status filter = %q", got)
		}
		_, _ = w.Write([]byte(`{"payments":[
			{"merchantReference":"DB-1","status":"completed","requiredAmount":10300},
			{"merchantReference":"DB-2","status":"error","totalAmount":500},
			{"merchantReference":"DB-3","status":"pending"}
		]}`))
	}))
	defer server.Close()

	s := NewSnapScan(SnapScanOptions{APIKey: "api-key", BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	txs, err := s.ListTransactions(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("transactions = %+v", txs)
	}
	if txs[0].Status != domain.PaymentCompleted || txs[0].AmountCents == nil || *txs[0].AmountCents != 10300 {
		t.Fatalf("first = %+v", txs[0])
	}
	if txs[1].Status != domain.PaymentFailed || *txs[1].AmountCents != 500 {
		t.Fatalf("second = %+v", txs[1])
	}
	if txs[2].Status != domain.PaymentProcessing || txs[2].AmountCents != nil {
		t.Fatalf("third = %+v", txs[2])
	}

	unkeyed := NewSnapScan(SnapScanOptions{BaseURL: server.URL})
	if unkeyed.CanList() {
		t.Fatalf("listing without an api key should be unavailable")
	}
	if _, err := unkeyed.ListTransactions(context.Background(), now, now); err == nil {
		t.Fatalf("expected error without api key")
	}
}
