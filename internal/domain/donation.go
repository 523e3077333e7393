package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the canonical lifecycle state of a donation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// PaymentMethod selects which provider adapter settles a donation.
type PaymentMethod string

const (
	MethodMpesa       PaymentMethod = "mpesa"
	MethodVisa        PaymentMethod = "visa"
	MethodMastercard  PaymentMethod = "mastercard"
	MethodAirtelMoney PaymentMethod = "airtel_money"
)

// KnownMethod reports whether m names a supported payment method.
func KnownMethod(m PaymentMethod) bool {
	switch m {
	case MethodMpesa, MethodVisa, MethodMastercard, MethodAirtelMoney:
		return true
	}
	return false
}

// Outcome is the canonical result reported by a provider callback.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// TerminalStatus returns the donation status a callback outcome maps to.
func (o Outcome) TerminalStatus() Status {
	switch o {
	case OutcomeCompleted:
		return StatusCompleted
	case OutcomeCanceled:
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// Donation is the append-only financial record of a single contribution.
// The requested Amount is immutable after creation; a provider-settled
// amount that differs is kept in ReceiptFields, never written over it.
type Donation struct {
	ID            string
	OwnerID       string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod PaymentMethod
	CorrelationID string
	Status        Status
	ReceiptFields map[string]any
	Metadata      map[string]any
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
