package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

func discardLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

// memStore is an in-memory DonationStore whose Transition performs the same
// compare-and-set the SQL store does, under a mutex so concurrent callers
// race for a single win.
type memStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Donation
	byCorr map[string]string

	createErr     error
	assignErr     error
	transitionErr error
}

func newMemStore() *memStore {
	return &memStore{
		byID:   map[string]*domain.Donation{},
		byCorr: map[string]string{},
	}
}

func (s *memStore) Create(_ context.Context, d *domain.Donation) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCorr[d.CorrelationID]; ok {
		return fmt.Errorf("correlation id taken: %w", domain.ErrValidation)
	}
	clone := cloneDonation(d)
	s.byID[d.ID] = clone
	s.byCorr[d.CorrelationID] = d.ID
	return nil
}

func (s *memStore) AssignCorrelationID(_ context.Context, donationID, correlationID string) error {
	if s.assignErr != nil {
		return s.assignErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[donationID]
	if !ok {
		return domain.ErrNotFound
	}
	if owner, taken := s.byCorr[correlationID]; taken && owner != donationID {
		return fmt.Errorf("correlation id %q already assigned: %w", correlationID, domain.ErrValidation)
	}
	delete(s.byCorr, d.CorrelationID)
	d.CorrelationID = correlationID
	s.byCorr[correlationID] = donationID
	return nil
}

func (s *memStore) Transition(_ context.Context, correlationID string, target domain.Status, receiptFields map[string]any) (domain.TransitionResult, error) {
	if s.transitionErr != nil {
		return domain.TransitionResult{}, s.transitionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCorr[correlationID]
	if !ok {
		return domain.TransitionResult{}, domain.ErrNotFound
	}
	d := s.byID[id]
	if d.Status.Terminal() {
		return domain.TransitionResult{}, domain.ErrAlreadySettled
	}
	d.Status = target
	d.ReceiptFields = receiptFields
	if target == domain.StatusCompleted {
		now := time.Now().UTC()
		d.ProcessedAt = &now
	}
	d.UpdatedAt = time.Now().UTC()
	return domain.TransitionResult{Transitioned: true, Donation: cloneDonation(d)}, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDonation(d), nil
}

func (s *memStore) GetByCorrelationID(_ context.Context, correlationID string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCorr[correlationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDonation(s.byID[id]), nil
}

func (s *memStore) ExpireStale(_ context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	var swept int64
	for _, d := range s.byID {
		if d.Status == domain.StatusPending && d.CreatedAt.Before(cutoff) {
			d.Status = domain.StatusFailed
			swept++
		}
	}
	return swept, nil
}

func (s *memStore) mustGet(id string) *domain.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDonation(s.byID[id])
}

func cloneDonation(d *domain.Donation) *domain.Donation {
	clone := *d
	return &clone
}

// fakeAdapter answers Initiate and ParseCallback with canned results.
type fakeAdapter struct {
	name    string
	methods []domain.PaymentMethod

	initiateResult providers.InitiateResult
	initiateErr    error
	initiateCalls  int
	lastInitiate   providers.InitiateRequest

	event    providers.CallbackEvent
	parseErr error
}

func (f *fakeAdapter) Name() string                    { return f.name }
func (f *fakeAdapter) Methods() []domain.PaymentMethod { return f.methods }

func (f *fakeAdapter) Initiate(_ context.Context, req providers.InitiateRequest) (providers.InitiateResult, error) {
	f.initiateCalls++
	f.lastInitiate = req
	if f.initiateErr != nil {
		return providers.InitiateResult{}, f.initiateErr
	}
	return f.initiateResult, nil
}

func (f *fakeAdapter) ParseCallback(http.Header, []byte) (providers.CallbackEvent, error) {
	if f.parseErr != nil {
		return providers.CallbackEvent{}, f.parseErr
	}
	return f.event, nil
}

type fakeDonors struct {
	mu        sync.Mutex
	aggregate domain.DonorAggregate
	err       error
	calls     int
	lastOwner string
}

func (f *fakeDonors) IncrementTotals(_ context.Context, ownerID string, amount decimal.Decimal) (domain.DonorAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOwner = ownerID
	if f.err != nil {
		return domain.DonorAggregate{}, f.err
	}
	f.aggregate.OwnerID = ownerID
	f.aggregate.LifetimeAmount = f.aggregate.LifetimeAmount.Add(amount)
	f.aggregate.DonationCount++
	return f.aggregate, nil
}

type fakeAchievements struct {
	mu      sync.Mutex
	awarded []string
	err     error
}

func (f *fakeAchievements) Award(_ context.Context, _, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.awarded = append(f.awarded, code)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	kinds    []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, _, message, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	f.kinds = append(f.kinds, kind)
	return nil
}

type fakeReceipts struct {
	mu        sync.Mutex
	donations []string
	err       error
}

func (f *fakeReceipts) EnqueueReceipt(_ context.Context, _ string, d *domain.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.donations = append(f.donations, d.ID)
	return nil
}

func (f *fakeReceipts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.donations)
}

func newTestDispatcher() (*SideEffectDispatcher, *fakeDonors, *fakeAchievements, *fakeNotifier, *fakeReceipts) {
	donors := &fakeDonors{}
	achievements := &fakeAchievements{}
	notifier := &fakeNotifier{}
	receipts := &fakeReceipts{}
	return NewSideEffectDispatcher(donors, achievements, notifier, receipts, discardLogger()), donors, achievements, notifier, receipts
}
