package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonorAggregate accumulates lifetime giving totals for one donor.
type DonorAggregate struct {
	OwnerID        string
	LifetimeAmount decimal.Decimal
	DonationCount  int64
	UpdatedAt      time.Time
}

// Achievement codes awarded against donor aggregates.
const (
	AchievementFirstDonation = "first_donation"
	AchievementLifetime10K   = "lifetime_10k"
	AchievementTenDonations  = "ten_donations"
)

var lifetime10KThreshold = decimal.NewFromInt(10_000)

// EarnedAchievements returns the codes the aggregate qualifies for.
// Award idempotency is the store's concern, not the caller's.
func (a DonorAggregate) EarnedAchievements() []string {
	var codes []string
	if a.DonationCount >= 1 {
		codes = append(codes, AchievementFirstDonation)
	}
	if a.LifetimeAmount.GreaterThanOrEqual(lifetime10KThreshold) {
		codes = append(codes, AchievementLifetime10K)
	}
	if a.DonationCount >= 10 {
		codes = append(codes, AchievementTenDonations)
	}
	return codes
}
