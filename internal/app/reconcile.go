package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// ReconcileService is the single entry point for provider callbacks. It
// maps provider payloads to canonical transitions and triggers side
// effects for the one caller that wins the settle.
type ReconcileService struct {
	store      domain.DonationStore
	registry   *providers.Registry
	dispatcher *SideEffectDispatcher
	logger     infra.Logger
}

func NewReconcileService(store domain.DonationStore, registry *providers.Registry, dispatcher *SideEffectDispatcher, logger infra.Logger) *ReconcileService {
	return &ReconcileService{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleCallback processes one inbound provider callback. A nil return
// means the callback may be acknowledged to stop redelivery, including
// the unknown-reference and already-settled cases, which change nothing.
// Errors are returned only for payloads the provider should fix
// (malformed, unauthenticated) or for infrastructure failures where
// redelivery is wanted.
func (s *ReconcileService) HandleCallback(ctx context.Context, providerName string, header http.Header, body []byte) error {
	adapter, err := s.registry.ForName(providerName)
	if err != nil {
		return err
	}

	event, err := adapter.ParseCallback(header, body)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", providerName).Msg("reconcile: rejected callback payload")
		return err
	}

	log := s.logger.With().
		Str("provider", providerName).
		Str("correlation_id", event.CorrelationID).
		Str("outcome", string(event.Outcome)).
		Logger()

	result, err := s.store.Transition(ctx, event.CorrelationID, event.Outcome.TerminalStatus(), event.ReceiptFields)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Acknowledge so the provider stops redelivering; nothing was
		// created or mutated.
		log.Warn().Msg("reconcile: callback for unknown correlation id")
		return nil
	case errors.Is(err, domain.ErrAlreadySettled):
		// Duplicate or out-of-order delivery against a terminal row.
		log.Info().Msg("reconcile: duplicate callback, no-op")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("reconcile: transition failed")
		return err
	}

	if !result.Transitioned {
		return nil
	}
	donation := result.Donation
	log.Info().Str("donation_id", donation.ID).Msg("reconcile: donation settled")

	if donation.Status == domain.StatusCompleted {
		s.warnOnAmountMismatch(log, donation)
		s.dispatcher.Dispatch(ctx, donation)
	}
	return nil
}

// warnOnAmountMismatch surfaces a provider-settled amount that differs from
// the requested one. The requested amount is never overwritten; the settled
// value stays in the receipt fields for reconciliation reports.
func (s *ReconcileService) warnOnAmountMismatch(log infra.Logger, donation *domain.Donation) {
	settled, ok := donation.ReceiptFields["settled_amount"]
	if !ok {
		return
	}
	mismatch := false
	switch v := settled.(type) {
	case float64:
		mismatch = !donation.Amount.Equal(decimal.NewFromFloat(v))
	case string:
		if parsed, err := decimal.NewFromString(v); err == nil {
			mismatch = !donation.Amount.Equal(parsed)
		}
	}
	if mismatch {
		log.Warn().
			Str("requested_amount", donation.Amount.String()).
			Interface("settled_amount", settled).
			Msg("reconcile: settled amount differs from requested amount")
	}
}
