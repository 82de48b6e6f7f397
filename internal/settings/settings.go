// Package settings stores the global simulation parameters shared by every
// service: default rates and the fixed overhead per visit.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound means the rate_config singleton has not been seeded.
var ErrNotFound = errors.New("rate_config singleton not found")

// Rates are percentages except FixedOverhead, which is a currency amount.
type Rates struct {
	CommissionPercent decimal.Decimal
	TaxPercent        decimal.Decimal
	CardFeePercent    decimal.Decimal
	FixedOverhead     decimal.Decimal
	Currency          string
}

// Defaults mirror the values the operators started from.
func Defaults() Rates {
	return Rates{
		CommissionPercent: decimal.NewFromInt(30),
		TaxPercent:        decimal.NewFromInt(6),
		CardFeePercent:    decimal.NewFromInt(2),
		FixedOverhead:     decimal.NewFromInt(10),
		Currency:          "BRL",
	}
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context) (Rates, error) {
	var rc Rates
	err := r.db.QueryRowContext(ctx, `
		SELECT commission_percent, tax_percent, card_fee_percent, fixed_overhead, currency
		FROM rate_config
		WHERE id = 1
	`).Scan(
		&rc.CommissionPercent,
		&rc.TaxPercent,
		&rc.CardFeePercent,
		&rc.FixedOverhead,
		&rc.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rates{}, ErrNotFound
		}
		return Rates{}, fmt.Errorf("query rate_config: %w", err)
	}
	return rc, nil
}

func (r *Repository) Update(ctx context.Context, rc Rates) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE rate_config
		SET
			commission_percent = ?,
			tax_percent = ?,
			card_fee_percent = ?,
			fixed_overhead = ?,
			currency = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`,
		rc.CommissionPercent.String(),
		rc.TaxPercent.String(),
		rc.CardFeePercent.String(),
		rc.FixedOverhead.String(),
		rc.Currency,
	)
	if err != nil {
		return fmt.Errorf("update rate_config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rate_config: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
