package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransitionResult describes the outcome of a conditional settle attempt.
type TransitionResult struct {
	// Transitioned is true only for the caller that won the conditional
	// update; that caller owns side-effect dispatch.
	Transitioned bool
	// Donation is populated when Transitioned is true.
	Donation *Donation
}

// DonationStore is the canonical, append-only transaction store.
type DonationStore interface {
	Create(ctx context.Context, d *Donation) error
	AssignCorrelationID(ctx context.Context, donationID, correlationID string) error
	// Transition settles the donation identified by correlationID with an
	// atomic conditional update. It returns ErrNotFound for an unknown
	// reference and ErrAlreadySettled for a terminal row; under concurrent
	// duplicates exactly one caller observes Transitioned=true.
	Transition(ctx context.Context, correlationID string, target Status, receiptFields map[string]any) (TransitionResult, error)
	GetByID(ctx context.Context, id string) (*Donation, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Donation, error)
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// DonorService maintains donor lifetime aggregates.
type DonorService interface {
	IncrementTotals(ctx context.Context, ownerID string, amount decimal.Decimal) (DonorAggregate, error)
}

// AchievementStore records badge awards; re-awarding a code is a no-op.
type AchievementStore interface {
	Award(ctx context.Context, ownerID, code string) error
}

// Notifier creates donor-facing notification records.
type Notifier interface {
	Notify(ctx context.Context, ownerID, message, kind string) error
}

// ReceiptSender queues a receipt for a settled donation, at most once per
// donation.
type ReceiptSender interface {
	EnqueueReceipt(ctx context.Context, ownerID string, d *Donation) error
}
