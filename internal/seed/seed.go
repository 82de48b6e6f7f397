package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/salon-margin/internal/settings"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way. Existing rows are never
// overwritten, so operator changes survive restarts.
func Run(ctx context.Context, db *sql.DB, defaults settings.Rates) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureRateConfig(ctx, tx, defaults, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureRateConfig(ctx context.Context, tx *sql.Tx, defaults settings.Rates, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rate_config WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check rate config existence: %w", err)
	}
	if exists {
		return nil
	}

	currency := defaults.Currency
	if currency == "" {
		currency = "BRL"
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_config (
			id,
			commission_percent,
			tax_percent,
			card_fee_percent,
			fixed_overhead,
			currency
		)
		VALUES (1, ?, ?, ?, ?, ?)
	`,
		defaults.CommissionPercent.String(),
		defaults.TaxPercent.String(),
		defaults.CardFeePercent.String(),
		defaults.FixedOverhead.String(),
		currency,
	); err != nil {
		return fmt.Errorf("insert rate config singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
