package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"harambee/internal/clock"
	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// CreateInput carries a validated-to-be donation request.
type CreateInput struct {
	OwnerID   string
	Amount    decimal.Decimal
	Currency  string
	Method    domain.PaymentMethod
	Phone     string
	CardToken string
	Email     string
	Note      string
	Country   string
}

// CreateResult is returned to the caller for polling.
type CreateResult struct {
	DonationID    string
	CorrelationID string
	Status        domain.Status
}

// IntakeService validates donation requests, records them as pending, and
// hands them to the matching provider adapter.
type IntakeService struct {
	store    domain.DonationStore
	registry *providers.Registry
	clock    clock.Clock
	logger   infra.Logger
	newID    func() string
}

func NewIntakeService(store domain.DonationStore, registry *providers.Registry, clk clock.Clock, logger infra.Logger) *IntakeService {
	return &IntakeService{
		store:    store,
		registry: registry,
		clock:    clk,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Create runs the full intake flow. The provider call happens after the
// pending row is written and holds no lock; a slow provider delays only
// this request.
func (s *IntakeService) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	adapter, err := s.validate(in)
	if err != nil {
		return CreateResult{}, err
	}

	now := s.clock.Now()
	d := &domain.Donation{
		ID:            s.newID(),
		OwnerID:       in.OwnerID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(in.Currency),
		PaymentMethod: in.Method,
		// Provisional reference, replaced once the provider answers. It keeps
		// the unique correlation_id index satisfied from the first write.
		CorrelationID: "prov-" + s.newID(),
		Status:        domain.StatusPending,
		Metadata:      map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Note != "" {
		d.Metadata["note"] = in.Note
	}
	if in.Country != "" {
		d.Metadata["origin_country"] = strings.ToUpper(in.Country)
	}

	if err := s.store.Create(ctx, d); err != nil {
		return CreateResult{}, fmt.Errorf("create donation: %w", err)
	}

	result, err := adapter.Initiate(ctx, providers.InitiateRequest{
		DonationID: d.ID,
		Amount:     d.Amount,
		Currency:   d.Currency,
		Phone:      in.Phone,
		CardToken:  in.CardToken,
		Email:      in.Email,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			// Transient initiation failure: the row stays pending so the
			// caller can retry or keep polling.
			s.logger.Warn().Err(err).Str("donation_id", d.ID).Msg("intake: provider unavailable")
			return CreateResult{}, err
		}
		// Explicit decline (or an input the adapter could not shape): the
		// payment never truly started, so no orphan pending row is left.
		if _, trErr := s.store.Transition(ctx, d.CorrelationID, domain.StatusFailed, map[string]any{
			"initiation_error": err.Error(),
		}); trErr != nil {
			s.logger.Error().Err(trErr).Str("donation_id", d.ID).Msg("intake: failed to mark rejected donation")
		}
		return CreateResult{}, err
	}

	if err := s.store.AssignCorrelationID(ctx, d.ID, result.CorrelationID); err != nil {
		return CreateResult{}, fmt.Errorf("assign correlation id: %w", err)
	}
	s.logger.Info().
		Str("donation_id", d.ID).
		Str("correlation_id", result.CorrelationID).
		Str("payment_method", string(in.Method)).
		Msg("intake: donation initiated")

	return CreateResult{
		DonationID:    d.ID,
		CorrelationID: result.CorrelationID,
		Status:        domain.StatusPending,
	}, nil
}

// validate rejects bad input before anything is written or any external
// call is made, and resolves the adapter for the method.
func (s *IntakeService) validate(in CreateInput) (providers.Adapter, error) {
	if _, err := uuid.Parse(in.OwnerID); err != nil {
		return nil, fmt.Errorf("%w: owner id must be a uuid", domain.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		return nil, fmt.Errorf("%w: unrecognized currency %q", domain.ErrValidation, in.Currency)
	}
	if !domain.KnownMethod(in.Method) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, in.Method)
	}
	switch in.Method {
	case domain.MethodMpesa, domain.MethodAirtelMoney:
		if strings.TrimSpace(in.Phone) == "" {
			return nil, fmt.Errorf("%w: phone is required for %s", domain.ErrValidation, in.Method)
		}
	case domain.MethodVisa, domain.MethodMastercard:
		if strings.TrimSpace(in.CardToken) == "" {
			return nil, fmt.Errorf("%w: card_token is required for %s", domain.ErrValidation, in.Method)
		}
	}
	return s.registry.ForMethod(in.Method)
}
