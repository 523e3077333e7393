package handlers_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"harambee/internal/app"
	"harambee/internal/clock"
	"harambee/internal/domain"
	"harambee/internal/http/handlers"
	"harambee/internal/http/httpapi"
	"harambee/internal/providers"
)

const testOwnerID = "7b9d3e9c-4a35-4ccb-8f8f-1f7b9f6e2a01"

// testStore backs handler tests with the same conditional-transition
// contract the SQL store provides.
type testStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Donation
	byCorr map[string]string
}

func newTestStore() *testStore {
	return &testStore{byID: map[string]*domain.Donation{}, byCorr: map[string]string{}}
}

func (s *testStore) Create(_ context.Context, d *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *d
	s.byID[d.ID] = &clone
	s.byCorr[d.CorrelationID] = d.ID
	return nil
}

func (s *testStore) AssignCorrelationID(_ context.Context, donationID, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[donationID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.byCorr, d.CorrelationID)
	d.CorrelationID = correlationID
	s.byCorr[correlationID] = donationID
	return nil
}

func (s *testStore) Transition(_ context.Context, correlationID string, target domain.Status, receiptFields map[string]any) (domain.TransitionResult, error) {
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
	clone := *d
	return domain.TransitionResult{Transitioned: true, Donation: &clone}, nil
}

func (s *testStore) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (s *testStore) GetByCorrelationID(_ context.Context, correlationID string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCorr[correlationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *testStore) ExpireStale(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// testAdapter is a scriptable provider adapter.
type testAdapter struct {
	name    string
	methods []domain.PaymentMethod

	initiateResult providers.InitiateResult
	initiateErr    error
	event          providers.CallbackEvent
	parseErr       error
}

func (a *testAdapter) Name() string                    { return a.name }
func (a *testAdapter) Methods() []domain.PaymentMethod { return a.methods }

func (a *testAdapter) Initiate(context.Context, providers.InitiateRequest) (providers.InitiateResult, error) {
	if a.initiateErr != nil {
		return providers.InitiateResult{}, a.initiateErr
	}
	return a.initiateResult, nil
}

func (a *testAdapter) ParseCallback(http.Header, []byte) (providers.CallbackEvent, error) {
	if a.parseErr != nil {
		return providers.CallbackEvent{}, a.parseErr
	}
	return a.event, nil
}

type nopEffects struct {
	mu         sync.Mutex
	dispatches int
}

func (n *nopEffects) IncrementTotals(_ context.Context, ownerID string, _ decimal.Decimal) (domain.DonorAggregate, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatches++
	return domain.DonorAggregate{OwnerID: ownerID, DonationCount: 1, LifetimeAmount: decimal.Zero}, nil
}

func (n *nopEffects) Award(context.Context, string, string) error { return nil }

func (n *nopEffects) Notify(context.Context, string, string, string) error { return nil }

func (n *nopEffects) EnqueueReceipt(context.Context, string, *domain.Donation) error { return nil }

type fixture struct {
	server  *httptest.Server
	store   *testStore
	adapter *testAdapter
	effects *nopEffects
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newTestStore()
	adapter := &testAdapter{
		name:           "mpesa",
		methods:        []domain.PaymentMethod{domain.MethodMpesa},
		initiateResult: providers.InitiateResult{CorrelationID: "ws_CO_1", Message: "accepted"},
	}
	registry := providers.NewRegistry(adapter)
	logger := zerolog.New(io.Discard)
	effects := &nopEffects{}

	dispatcher := app.NewSideEffectDispatcher(effects, effects, effects, effects, logger)
	intake := app.NewIntakeService(store, registry, clock.NewFixed(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)), logger)
	reconcile := app.NewReconcileService(store, registry, dispatcher, logger)
	status := app.NewStatusService(store)

	a := handlers.NewApp(intake, reconcile, status, logger)
	server := httptest.NewServer(httpapi.NewRouter(a, httpapi.Options{}))
	t.Cleanup(server.Close)
	return &fixture{server: server, store: store, adapter: adapter, effects: effects}
}

func (f *fixture) seedPending(t *testing.T, correlationID string) *domain.Donation {
	t.Helper()
	d := &domain.Donation{
		ID:            fmt.Sprintf("don-%s", correlationID),
		OwnerID:       testOwnerID,
		Amount:        decimal.NewFromInt(500),
		Currency:      "KES",
		PaymentMethod: domain.MethodMpesa,
		CorrelationID: correlationID,
		Status:        domain.StatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := f.store.Create(context.Background(), d); err != nil {
		t.Fatalf("seed donation: %v", err)
	}
	return d
}
