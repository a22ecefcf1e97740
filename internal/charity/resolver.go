// Package charity computes how many cents of a contribution are diverted to
// a campaign's charity.
package charity

import "dreamboard/internal/domain"

// Input is the allocation context for a single contribution.
type Input struct {
	AmountCents int64
	Config      domain.CharityConfig
	// AlreadyAllocatedCents is the charity total of the other completed
	// contributions of the campaign. Only threshold mode reads it.
	AlreadyAllocatedCents int64
}

// PercentageCents returns round_half_up(amount*bps/10000) clamped to [0, amount].
func PercentageCents(amountCents, bps int64) int64 {
	if amountCents <= 0 || bps <= 0 {
		return 0
	}
	return clamp((amountCents*bps+5000)/10000, amountCents)
}

// ThresholdCents fills the remaining threshold budget with at most the whole
// contribution.
func ThresholdCents(amountCents, thresholdCents, alreadyAllocated int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	remaining := thresholdCents - alreadyAllocated
	if remaining < 0 {
		remaining = 0
	}
	return clamp(min(amountCents, remaining), amountCents)
}

// Resolve returns nil when nothing should be allocated: charity disabled or
// a required split parameter missing. A non-nil zero is a real allocation.
func Resolve(in Input) *int64 {
	cfg := in.Config
	if !cfg.Enabled || cfg.CharityID == nil || *cfg.CharityID == "" || cfg.SplitType == nil {
		return nil
	}
	var cents int64
	switch *cfg.SplitType {
	case domain.SplitPercentage:
		if cfg.PercentageBps == nil {
			return nil
		}
		cents = PercentageCents(in.AmountCents, *cfg.PercentageBps)
	case domain.SplitThreshold:
		if cfg.ThresholdCents == nil {
			return nil
		}
		cents = ThresholdCents(in.AmountCents, *cfg.ThresholdCents, in.AlreadyAllocatedCents)
	default:
		return nil
	}
	return &cents
}

// ResolveForContribution keeps the stored allocation of a completed
// contribution regardless of the campaign's current configuration.
func ResolveForContribution(c domain.Contribution, in Input) *int64 {
	if c.IsCompleted() && c.CharityCents != nil {
		stored := *c.CharityCents
		return &stored
	}
	return Resolve(in)
}

func clamp(v, upper int64) int64 {
	if v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}
