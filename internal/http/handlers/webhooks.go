package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Callback payloads are small; anything larger is abuse.
const maxCallbackBody = 1 << 20

// WebhookReceive is the single inbound entry point for provider callbacks.
// Processed and deliberately-ignored callbacks both acknowledge with 200 so
// providers stop redelivering; only malformed or unauthenticated payloads
// get an error status.
func (a *App) WebhookReceive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	if err := a.Reconcile.HandleCallback(r.Context(), provider, r.Header, body); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
