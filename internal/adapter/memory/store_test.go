package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dreamboard/internal/domain"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	c := s.PutCampaign(domain.Campaign{PartnerID: "p1", Status: domain.CampaignActive, GoalCents: 1000})
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(r domain.Repositories) error {
		if _, err := r.Campaigns.TransitionStatus(context.Background(), c.ID,
			[]domain.CampaignStatus{domain.CampaignActive}, domain.CampaignClosed); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.Repos().Campaigns.GetByID(context.Background(), c.ID)
	if got.Status != domain.CampaignActive {
		t.Fatalf("expected rollback to active, got %s", got.Status)
	}
}

func TestInsertIfAbsentIsConflictFree(t *testing.T) {
	s := NewStore()
	repo := s.Repos().Payouts
	ctx := context.Background()
	first := &domain.Payout{CampaignID: "c1", Type: domain.PayoutGiftCard, NetCents: 10}
	created, err := repo.InsertIfAbsent(ctx, first)
	if err != nil || !created {
		t.Fatalf("first insert = %v, %v", created, err)
	}
	created, err = repo.InsertIfAbsent(ctx, &domain.Payout{CampaignID: "c1", Type: domain.PayoutGiftCard, NetCents: 99})
	if err != nil || created {
		t.Fatalf("second insert = %v, %v", created, err)
	}
	items, _ := repo.ListByCampaign(ctx, "c1")
	if len(items) != 1 || items[0].NetCents != 10 {
		t.Fatalf("unexpected payouts: %#v", items)
	}
}

func TestCompletedContributionIsTerminal(t *testing.T) {
	s := NewStore()
	repo := s.Repos().Contributions
	ctx := context.Background()
	c := &domain.Contribution{CampaignID: "c1", Provider: domain.ProviderOzow, PaymentRef: "R1", AmountCents: 500, Status: domain.PaymentPending}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	charity := int64(25)
	if ok, _ := repo.MarkCompleted(ctx, c.ID, &charity); !ok {
		t.Fatal("expected first completion to apply")
	}
	other := int64(99)
	if ok, _ := repo.MarkCompleted(ctx, c.ID, &other); ok {
		t.Fatal("expected second completion to be a no-op")
	}
	if ok, _ := repo.UpdateStatus(ctx, c.ID, domain.PaymentFailed); ok {
		t.Fatal("expected status update on completed contribution to be a no-op")
	}
	got, _ := repo.GetByID(ctx, c.ID)
	if got.Status != domain.PaymentCompleted || *got.CharityCents != 25 {
		t.Fatalf("unexpected contribution: %#v", got)
	}
	if err := repo.Create(ctx, &domain.Contribution{Provider: domain.ProviderOzow, PaymentRef: "R1"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate reference conflict, got %v", err)
	}
}

func TestPayoutClaimIsExclusive(t *testing.T) {
	s := NewStore()
	repo := s.Repos().Payouts
	ctx := context.Background()
	p := &domain.Payout{CampaignID: "c1", Type: domain.PayoutGiftCard, NetCents: 10}
	if _, err := repo.InsertIfAbsent(ctx, p); err != nil {
		t.Fatalf("InsertIfAbsent error: %v", err)
	}

	if ok, err := repo.Claim(ctx, p.ID); err != nil || !ok {
		t.Fatalf("first Claim = %v, %v", ok, err)
	}
	if ok, _ := repo.Claim(ctx, p.ID); ok {
		t.Fatalf("second Claim should lose while processing")
	}
	if ok, _ := repo.ReleaseClaim(ctx, p.ID); !ok {
		t.Fatalf("ReleaseClaim should return an unsent claim to pending")
	}
	got, _ := repo.GetByID(ctx, p.ID)
	if got.Status != domain.PayoutPending {
		t.Fatalf("expected pending after release, got %s", got.Status)
	}

	if _, err := repo.MarkFailed(ctx, p.ID, "declined"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	if ok, _ := repo.Claim(ctx, p.ID); !ok {
		t.Fatalf("failed payout should be claimable")
	}
	got, _ = repo.GetByID(ctx, p.ID)
	if got.ErrorMessage != nil {
		t.Fatalf("claim should clear the previous error, got %q", *got.ErrorMessage)
	}

	ref := "ext-1"
	if _, err := repo.MarkProcessing(ctx, p.ID, &ref); err != nil {
		t.Fatalf("MarkProcessing error: %v", err)
	}
	if ok, _ := repo.ReleaseClaim(ctx, p.ID); ok {
		t.Fatalf("a sent payout must not be released")
	}
}

func TestListUnsettledWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := NewStore().WithClock(func() time.Time { return clock })
	repo := s.Repos().Contributions
	ctx := context.Background()

	add := func(ref string, age time.Duration, status domain.PaymentStatus) {
		clock = now.Add(-age)
		c := &domain.Contribution{CampaignID: "c1", Provider: domain.ProviderOzow, PaymentRef: ref, AmountCents: 100, Status: status}
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", ref, err)
		}
	}
	add("old", 48*time.Hour, domain.PaymentPending)
	add("in-window", 2*time.Hour, domain.PaymentPending)
	add("processing", 3*time.Hour, domain.PaymentProcessing)
	add("too-young", time.Minute, domain.PaymentPending)
	add("failed", 2*time.Hour, domain.PaymentFailed)

	got, err := repo.ListUnsettled(ctx, now.Add(-24*time.Hour), now.Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListUnsettled error: %v", err)
	}
	if len(got) != 2 || got[0].PaymentRef != "processing" || got[1].PaymentRef != "in-window" {
		t.Fatalf("unexpected window: %#v", got)
	}
}
