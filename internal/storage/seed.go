package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"price-resolver/internal/pricing"
)

const createSchemaSQL = `CREATE TABLE IF NOT EXISTS price_rules (
    brand_id   BIGINT       NOT NULL,
    product_id BIGINT       NOT NULL,
    start_date TIMESTAMPTZ  NOT NULL,
    end_date   TIMESTAMPTZ  NOT NULL,
    price_list INTEGER      NOT NULL,
    priority   INTEGER      NOT NULL,
    amount     NUMERIC(12,2) NOT NULL,
    currency   TEXT         NOT NULL,
    PRIMARY KEY (brand_id, product_id, price_list)
);
CREATE INDEX IF NOT EXISTS idx_price_rules_lookup
    ON price_rules (product_id, brand_id, start_date, end_date);`

// EnsureSchema creates the price_rules table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// DefaultRules returns the canonical sample rule set for product 35455.
func DefaultRules() []pricing.PriceRule {
	day := func(d string) time.Time {
		t, _ := time.Parse("2006-01-02 15:04:05", d)
		return t.UTC()
	}
	return []pricing.PriceRule{
		{BrandID: 1, ProductID: 35455, StartDate: day("2020-06-14 00:00:00"), EndDate: day("2020-12-31 23:59:59"), PriceList: 1, Priority: 0, Amount: decimal.RequireFromString("35.50"), Currency: "EUR"},
		{BrandID: 1, ProductID: 35455, StartDate: day("2020-06-14 15:00:00"), EndDate: day("2020-06-14 18:30:00"), PriceList: 2, Priority: 1, Amount: decimal.RequireFromString("25.45"), Currency: "EUR"},
		{BrandID: 1, ProductID: 35455, StartDate: day("2020-06-15 00:00:00"), EndDate: day("2020-06-15 11:00:00"), PriceList: 3, Priority: 1, Amount: decimal.RequireFromString("30.50"), Currency: "EUR"},
		{BrandID: 1, ProductID: 35455, StartDate: day("2020-06-15 16:00:00"), EndDate: day("2020-12-31 23:59:59"), PriceList: 4, Priority: 1, Amount: decimal.RequireFromString("38.95"), Currency: "EUR"},
	}
}

// SeedDefaultRules upserts the canonical sample rule set through w.
func SeedDefaultRules(ctx context.Context, w RuleWriter) error {
	for _, rule := range DefaultRules() {
		if err := w.UpsertRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}
