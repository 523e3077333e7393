package app

import (
	"context"

	"harambee/internal/domain"
)

// StatusView is the polling payload. Receipt fields appear only once the
// donation is terminal.
type StatusView struct {
	DonationID    string
	CorrelationID string
	Status        domain.Status
	ReceiptFields map[string]any
}

// StatusService answers polling reads over the donation store. It performs
// no writes and needs no coordination with reconciliation.
type StatusService struct {
	store domain.DonationStore
}

func NewStatusService(store domain.DonationStore) *StatusService {
	return &StatusService{store: store}
}

// Status returns the canonical status for a donation the caller owns.
func (s *StatusService) Status(ctx context.Context, donationID, ownerID string) (StatusView, error) {
	d, err := s.store.GetByID(ctx, donationID)
	if err != nil {
		return StatusView{}, err
	}
	if d.OwnerID != ownerID {
		return StatusView{}, domain.ErrUnauthorized
	}
	view := StatusView{
		DonationID:    d.ID,
		CorrelationID: d.CorrelationID,
		Status:        d.Status,
	}
	if d.Status.Terminal() {
		view.ReceiptFields = d.ReceiptFields
	}
	return view, nil
}

// ByReference resolves a donation through its provider reference, for
// callers that only hold the correlation id returned at intake.
func (s *StatusService) ByReference(ctx context.Context, correlationID, ownerID string) (StatusView, error) {
	d, err := s.store.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return StatusView{}, err
	}
	return s.Status(ctx, d.ID, ownerID)
}

// Get returns the full donation record for its owner.
func (s *StatusService) Get(ctx context.Context, donationID, ownerID string) (*domain.Donation, error) {
	d, err := s.store.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return d, nil
}
