package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"harambee/internal/app"
	"harambee/internal/domain"
	"harambee/internal/middleware"
)

type donationRequest struct {
	OwnerID       string          `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Phone         string          `json:"phone"`
	CardToken     string          `json:"card_token"`
	Email         string          `json:"email"`
	Note          string          `json:"note"`
}

// DonationsCreate accepts a donation request and kicks off payment with
// the matching provider.
func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	result, err := a.Intake.Create(r.Context(), app.CreateInput{
		OwnerID:   req.OwnerID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    domain.PaymentMethod(req.PaymentMethod),
		Phone:     req.Phone,
		CardToken: req.CardToken,
		Email:     req.Email,
		Note:      req.Note,
		Country:   middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"donation_id":    result.DonationID,
		"correlation_id": result.CorrelationID,
		"status":         string(result.Status),
	})
}

// DonationsStatus answers polling reads. Clients are expected to stop
// polling once they observe a terminal status.
func (a *App) DonationsStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "X-Owner-ID header required")
		return
	}

	view, err := a.Status.Status(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	body := map[string]any{
		"donation_id":    view.DonationID,
		"correlation_id": view.CorrelationID,
		"status":         string(view.Status),
	}
	if view.ReceiptFields != nil {
		body["receipt_fields"] = view.ReceiptFields
	}
	a.json(w, http.StatusOK, body)
}

// DonationsGet returns the full donation record for its owner.
func (a *App) DonationsGet(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "X-Owner-ID header required")
		return
	}

	d, err := a.Status.Get(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	body := map[string]any{
		"id":             d.ID,
		"owner_id":       d.OwnerID,
		"amount":         d.Amount.String(),
		"currency":       d.Currency,
		"payment_method": string(d.PaymentMethod),
		"correlation_id": d.CorrelationID,
		"status":         string(d.Status),
		"receipt_fields": d.ReceiptFields,
		"metadata":       d.Metadata,
		"created_at":     d.CreatedAt.Format(time.RFC3339),
		"updated_at":     d.UpdatedAt.Format(time.RFC3339),
	}
	if d.ProcessedAt != nil {
		body["processed_at"] = d.ProcessedAt.Format(time.RFC3339)
	}
	a.json(w, http.StatusOK, body)
}
