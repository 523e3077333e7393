package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"harambee/internal/domain"
)

// ErrInvalidCallback indicates a payload that does not match the provider's
// documented callback shape.
var ErrInvalidCallback = errors.New("invalid callback payload")

// ErrUnauthenticatedCallback indicates a callback that failed the provider's
// authenticity check (bad signature, wrong hash).
var ErrUnauthenticatedCallback = errors.New("unauthenticated callback")

// InitiateRequest carries everything an adapter needs to start a payment.
// Method-specific fields are populated by intake validation; an adapter
// reads only the ones its provider requires.
type InitiateRequest struct {
	DonationID string
	Amount     decimal.Decimal
	Currency   string
	Phone      string
	CardToken  string
	Email      string
}

// InitiateResult is returned on an accepted-but-pending initiation.
type InitiateResult struct {
	// CorrelationID is the provider reference the eventual callback will
	// carry. It replaces the donation's provisional correlation id.
	CorrelationID string
	// Message is the provider's customer-facing acceptance text, if any.
	Message string
}

// CallbackEvent is a provider callback mapped to canonical terms.
type CallbackEvent struct {
	CorrelationID string
	Outcome       domain.Outcome
	ReceiptFields map[string]any
}

// Adapter is the per-provider capability contract. Initiate failures
// distinguish explicit declines (domain.ErrProviderRejected) from transient
// transport problems (domain.ErrProviderUnavailable); the services react
// differently to each.
type Adapter interface {
	Name() string
	Methods() []domain.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	ParseCallback(header http.Header, body []byte) (CallbackEvent, error)
}

// Registry selects adapters by payment method at intake and by provider
// name on the webhook path.
type Registry struct {
	byMethod map[domain.PaymentMethod]Adapter
	byName   map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		byMethod: make(map[domain.PaymentMethod]Adapter),
		byName:   make(map[string]Adapter),
	}
	for _, a := range adapters {
		r.byName[a.Name()] = a
		for _, m := range a.Methods() {
			r.byMethod[m] = a
		}
	}
	return r
}

// ForMethod returns the adapter handling the given payment method.
func (r *Registry) ForMethod(m domain.PaymentMethod) (Adapter, error) {
	a, ok := r.byMethod[m]
	if !ok {
		return nil, domain.ErrUnknownMethod
	}
	return a, nil
}

// ForName returns the adapter registered under the given provider name.
func (r *Registry) ForName(name string) (Adapter, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}
