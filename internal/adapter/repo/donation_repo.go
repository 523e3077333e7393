package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/sqlinline"
)

// DonationRepo persists donations. Rows are append-only: nothing here
// deletes, and settled rows are never mutated again.
type DonationRepo struct {
	sql infra.SQLExecutor
}

func NewDonationRepo(sql infra.SQLExecutor) *DonationRepo {
	return &DonationRepo{sql: sql}
}

// Create inserts a new pending donation.
func (r *DonationRepo) Create(ctx context.Context, d *domain.Donation) error {
	meta, err := json.Marshal(orEmpty(d.Metadata))
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertDonation,
		d.ID, d.OwnerID, d.Amount.String(), d.Currency, string(d.PaymentMethod), d.CorrelationID, meta)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

// AssignCorrelationID replaces the provisional correlation id with the
// provider-issued reference. The unique index on correlation_id enforces
// that a reference resolves to at most one donation.
func (r *DonationRepo) AssignCorrelationID(ctx context.Context, donationID, correlationID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QAssignCorrelationID, donationID, correlationID)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("correlation id %q already assigned: %w", correlationID, domain.ErrValidation)
		}
		return fmt.Errorf("assign correlation id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Transition settles the donation identified by correlationID with a single
// conditional update guarded by the pending status. Exactly one of the
// returns holds under concurrent duplicates:
//   - Transitioned=true with the settled row for the winning caller;
//   - domain.ErrAlreadySettled when the row exists but is terminal;
//   - domain.ErrNotFound when no donation carries the reference.
func (r *DonationRepo) Transition(ctx context.Context, correlationID string, target domain.Status, receiptFields map[string]any) (domain.TransitionResult, error) {
	if !target.Terminal() {
		return domain.TransitionResult{}, fmt.Errorf("transition target %q is not terminal", target)
	}
	receipt, err := json.Marshal(orEmpty(receiptFields))
	if err != nil {
		return domain.TransitionResult{}, fmt.Errorf("encode receipt fields: %w", err)
	}

	row := r.sql.QueryRow(ctx, sqlinline.QTransitionDonation, correlationID, string(target), receipt)
	d, err := scanDonation(row)
	if err == nil {
		return domain.TransitionResult{Transitioned: true, Donation: d}, nil
	}
	if !infra.IsNoRows(err) {
		return domain.TransitionResult{}, fmt.Errorf("transition donation: %w", err)
	}

	// Zero rows: either the reference is unknown or the row is already
	// terminal. A follow-up read tells the two apart.
	if _, err := r.GetByCorrelationID(ctx, correlationID); err != nil {
		return domain.TransitionResult{}, err
	}
	return domain.TransitionResult{}, domain.ErrAlreadySettled
}

// GetByID fetches a donation by primary id.
func (r *DonationRepo) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDonationByID, id)
	d, err := scanDonation(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return d, nil
}

// GetByCorrelationID fetches a donation by provider reference.
func (r *DonationRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Donation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDonationByCorrelationID, correlationID)
	d, err := scanDonation(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get donation by correlation id: %w", err)
	}
	return d, nil
}

// ExpireStale fails pending donations older than maxAge and returns how
// many rows were swept.
func (r *DonationRepo) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	interval := fmt.Sprintf("%d seconds", int64(maxAge.Seconds()))
	tag, err := r.sql.Exec(ctx, sqlinline.QExpireStaleDonations, interval)
	if err != nil {
		return 0, fmt.Errorf("expire stale donations: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*domain.Donation, error) {
	var (
		d           domain.Donation
		amount      string
		method      string
		status      string
		receipt     []byte
		metadata    []byte
		processedAt *time.Time
	)
	err := row.Scan(&d.ID, &d.OwnerID, &amount, &d.Currency, &method, &d.CorrelationID,
		&status, &receipt, &metadata, &processedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	d.PaymentMethod = domain.PaymentMethod(method)
	d.Status = domain.Status(status)
	d.ProcessedAt = processedAt
	if len(receipt) > 0 {
		if err := json.Unmarshal(receipt, &d.ReceiptFields); err != nil {
			return nil, fmt.Errorf("decode receipt fields: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &d, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ domain.DonationStore = (*DonationRepo)(nil)
