package repo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"harambee/internal/domain"
	"harambee/internal/infra"
	"harambee/internal/sqlinline"
)

// DonorRepo maintains per-donor lifetime aggregates and achievement awards.
type DonorRepo struct {
	sql infra.SQLExecutor
}

func NewDonorRepo(sql infra.SQLExecutor) *DonorRepo {
	return &DonorRepo{sql: sql}
}

// IncrementTotals adds amount to the donor's lifetime total and bumps the
// donation count, creating the aggregate row on first donation. The updated
// aggregate is returned so achievement thresholds can be evaluated against it.
func (r *DonorRepo) IncrementTotals(ctx context.Context, ownerID string, amount decimal.Decimal) (domain.DonorAggregate, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QIncrementDonorTotals, ownerID, amount.String())
	return scanAggregate(row, "increment donor totals")
}

// Aggregate reads the donor's current totals.
func (r *DonorRepo) Aggregate(ctx context.Context, ownerID string) (domain.DonorAggregate, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectDonorAggregate, ownerID)
	agg, err := scanAggregate(row, "select donor aggregate")
	if err != nil && infra.IsNoRows(err) {
		return domain.DonorAggregate{}, domain.ErrNotFound
	}
	return agg, err
}

// Award records an achievement for the donor. Re-awarding the same code is
// a no-op through the unique (owner_id, code) constraint.
func (r *DonorRepo) Award(ctx context.Context, ownerID, code string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QAwardAchievement, ownerID, code); err != nil {
		return fmt.Errorf("award achievement: %w", err)
	}
	return nil
}

var (
	_ domain.DonorService     = (*DonorRepo)(nil)
	_ domain.AchievementStore = (*DonorRepo)(nil)
)

func scanAggregate(row rowScanner, op string) (domain.DonorAggregate, error) {
	var (
		agg    domain.DonorAggregate
		amount string
	)
	if err := row.Scan(&agg.OwnerID, &amount, &agg.DonationCount, &agg.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.DonorAggregate{}, err
		}
		return domain.DonorAggregate{}, fmt.Errorf("%s: %w", op, err)
	}
	total, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.DonorAggregate{}, fmt.Errorf("%s: parse amount %q: %w", op, amount, err)
	}
	agg.LifetimeAmount = total
	return agg, nil
}
