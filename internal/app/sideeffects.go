package app

import (
	"context"
	"fmt"

	"harambee/internal/domain"
	"harambee/internal/infra"
)

// SideEffectDispatcher applies the once-per-donation effects of a completed
// settlement: donor aggregates, achievements, a notification, and a queued
// receipt. Callers guarantee at-most-once invocation per donation through
// the store's conditional transition; within a dispatch each effect is
// isolated, and a failing one never rolls back the donation or the others.
type SideEffectDispatcher struct {
	donors       domain.DonorService
	achievements domain.AchievementStore
	notifier     domain.Notifier
	receipts     domain.ReceiptSender
	logger       infra.Logger
}

func NewSideEffectDispatcher(donors domain.DonorService, achievements domain.AchievementStore, notifier domain.Notifier, receipts domain.ReceiptSender, logger infra.Logger) *SideEffectDispatcher {
	return &SideEffectDispatcher{
		donors:       donors,
		achievements: achievements,
		notifier:     notifier,
		receipts:     receipts,
		logger:       logger,
	}
}

// Dispatch runs all effects for a donation that just completed.
func (d *SideEffectDispatcher) Dispatch(ctx context.Context, donation *domain.Donation) {
	log := d.logger.With().Str("donation_id", donation.ID).Str("owner_id", donation.OwnerID).Logger()

	agg, err := d.donors.IncrementTotals(ctx, donation.OwnerID, donation.Amount)
	if err != nil {
		log.Error().Err(err).Msg("side effects: increment donor totals failed")
	} else {
		for _, code := range agg.EarnedAchievements() {
			if err := d.achievements.Award(ctx, donation.OwnerID, code); err != nil {
				log.Error().Err(err).Str("code", code).Msg("side effects: award achievement failed")
			}
		}
	}

	message := fmt.Sprintf("Thank you for your donation of %s %s", donation.Amount.String(), donation.Currency)
	if err := d.notifier.Notify(ctx, donation.OwnerID, message, "donation_completed"); err != nil {
		log.Error().Err(err).Msg("side effects: notification failed")
	}

	if err := d.receipts.EnqueueReceipt(ctx, donation.OwnerID, donation); err != nil {
		log.Error().Err(err).Msg("side effects: enqueue receipt failed")
	}

	log.Info().Msg("side effects: dispatched")
}
