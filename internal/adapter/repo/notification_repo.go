package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/sqlinline"
)

// NotificationRepo writes donor-facing notification records and queues
// receipt emails through the outbox table.
type NotificationRepo struct {
	sql infra.SQLExecutor
}

func NewNotificationRepo(sql infra.SQLExecutor) *NotificationRepo {
	return &NotificationRepo{sql: sql}
}

// Notify stores a notification for the donor.
func (r *NotificationRepo) Notify(ctx context.Context, ownerID, message, kind string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QInsertNotification, ownerID, kind, message); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// EnqueueReceipt queues a receipt email for the settled donation. The
// unique donation_id constraint keeps the outbox at-most-once even when a
// partial side-effect dispatch is retried.
func (r *NotificationRepo) EnqueueReceipt(ctx context.Context, ownerID string, d *domain.Donation) error {
	payload, err := json.Marshal(map[string]any{
		"donation_id":    d.ID,
		"correlation_id": d.CorrelationID,
		"amount":         d.Amount.String(),
		"currency":       d.Currency,
		"payment_method": string(d.PaymentMethod),
		"receipt_fields": orEmpty(d.ReceiptFields),
	})
	if err != nil {
		return fmt.Errorf("encode receipt payload: %w", err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QEnqueueReceipt, d.ID, ownerID, payload); err != nil {
		return fmt.Errorf("enqueue receipt: %w", err)
	}
	return nil
}

var (
	_ domain.Notifier      = (*NotificationRepo)(nil)
	_ domain.ReceiptSender = (*NotificationRepo)(nil)
)
