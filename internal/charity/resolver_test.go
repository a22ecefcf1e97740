package charity

import (
	"testing"

	"dreamboard/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func percentageConfig(bps int64) domain.CharityConfig {
	return domain.CharityConfig{
		Enabled:       true,
		CharityID:     ptr("charity-1"),
		SplitType:     ptr(domain.SplitPercentage),
		PercentageBps: ptr(bps),
	}
}

func thresholdConfig(threshold int64) domain.CharityConfig {
	return domain.CharityConfig{
		Enabled:        true,
		CharityID:      ptr("charity-1"),
		SplitType:      ptr(domain.SplitThreshold),
		ThresholdCents: ptr(threshold),
	}
}

func TestPercentageCents(t *testing.T) {
	tests := []struct {
		amount, bps, want int64
	}{
		{199, 500, 10},
		{1000, 1250, 125},
		{10, 5000, 5},
		{1, 5000, 1},
		{3, 5000, 2},
		{0, 500, 0},
		{-100, 500, 0},
		{100, 0, 0},
		{100, -5, 0},
		{100, 10000, 100},
		{100, 20000, 100},
	}
	for _, tc := range tests {
		if got := PercentageCents(tc.amount, tc.bps); got != tc.want {
			t.Fatalf("PercentageCents(%d, %d) = %d, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestPercentageCentsStaysWithinAmount(t *testing.T) {
	for amount := int64(0); amount <= 5000; amount += 7 {
		for bps := int64(0); bps <= 10000; bps += 333 {
			got := PercentageCents(amount, bps)
			if got < 0 || got > amount {
				t.Fatalf("PercentageCents(%d, %d) = %d outside [0, %d]", amount, bps, got, amount)
			}
		}
	}
}

func TestThresholdCents(t *testing.T) {
	tests := []struct {
		name                       string
		amount, threshold, already int64
		want                       int64
	}{
		{"partial fill", 700, 1000, 450, 550},
		{"threshold reached", 700, 1000, 1000, 0},
		{"over allocated", 700, 1000, 1200, 0},
		{"whole contribution", 700, 1000, 0, 700},
		{"zero amount", 0, 1000, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ThresholdCents(tc.amount, tc.threshold, tc.already); got != tc.want {
				t.Fatalf("ThresholdCents() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestResolveReturnsNilWithoutConfig(t *testing.T) {
	cases := map[string]domain.CharityConfig{
		"disabled":          {Enabled: false, CharityID: ptr("c"), SplitType: ptr(domain.SplitPercentage), PercentageBps: ptr(int64(500))},
		"missing charity":   {Enabled: true, SplitType: ptr(domain.SplitPercentage), PercentageBps: ptr(int64(500))},
		"missing split":     {Enabled: true, CharityID: ptr("c"), PercentageBps: ptr(int64(500))},
		"missing bps":       {Enabled: true, CharityID: ptr("c"), SplitType: ptr(domain.SplitPercentage)},
		"missing threshold": {Enabled: true, CharityID: ptr("c"), SplitType: ptr(domain.SplitThreshold)},
	}
	for name, cfg := range cases {
		if got := Resolve(Input{AmountCents: 1000, Config: cfg}); got != nil {
			t.Fatalf("%s: expected nil, got %d", name, *got)
		}
	}
}

func TestResolveDistinguishesZeroAllocation(t *testing.T) {
	got := Resolve(Input{AmountCents: 700, Config: thresholdConfig(1000), AlreadyAllocatedCents: 1000})
	if got == nil || *got != 0 {
		t.Fatalf("expected zero allocation, got %v", got)
	}
}

func TestResolvePercentage(t *testing.T) {
	got := Resolve(Input{AmountCents: 1000, Config: percentageConfig(1250)})
	if got == nil || *got != 125 {
		t.Fatalf("expected 125, got %v", got)
	}
}

func TestResolveForContributionKeepsStoredValue(t *testing.T) {
	c := domain.Contribution{AmountCents: 1000, Status: domain.PaymentCompleted, CharityCents: ptr(int64(40))}
	got := ResolveForContribution(c, Input{AmountCents: 1000, Config: percentageConfig(5000)})
	if got == nil || *got != 40 {
		t.Fatalf("expected stored 40, got %v", got)
	}

	got = ResolveForContribution(c, Input{AmountCents: 1000})
	if got == nil || *got != 40 {
		t.Fatalf("expected stored 40 after charity disabled, got %v", got)
	}

	pending := domain.Contribution{AmountCents: 1000, Status: domain.PaymentPending}
	got = ResolveForContribution(pending, Input{AmountCents: 1000, Config: percentageConfig(5000)})
	if got == nil || *got != 500 {
		t.Fatalf("expected 500 for pending contribution, got %v", got)
	}
}
