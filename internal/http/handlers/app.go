package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"harambee/internal/app"
	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/providers"
)

// App bundles the services the HTTP handlers dispatch into.
type App struct {
	Intake    *app.IntakeService
	Reconcile *app.ReconcileService
	Status    *app.StatusService
	Logger    infra.Logger
}

func NewApp(intake *app.IntakeService, reconcile *app.ReconcileService, status *app.StatusService, logger infra.Logger) *App {
	return &App{Intake: intake, Reconcile: reconcile, Status: status, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// domainError maps service errors onto the HTTP surface.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownMethod):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrProviderRejected):
		a.error(w, http.StatusPaymentRequired, "payment_rejected", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.error(w, http.StatusServiceUnavailable, "provider_unavailable", "payment provider unavailable, retry later")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "donation not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden", "not your donation")
	case errors.Is(err, providers.ErrUnauthenticatedCallback):
		a.error(w, http.StatusUnauthorized, "unauthenticated", "callback failed authentication")
	case errors.Is(err, providers.ErrInvalidCallback):
		a.error(w, http.StatusBadRequest, "bad_request", "malformed callback payload")
	default:
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
