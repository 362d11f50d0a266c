package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"price-resolver/internal/pricing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	// Both interval bounds are inclusive. Ties on priority are broken by the
	// lowest price list id so repeated queries stay deterministic.
	fetchBestRuleSQL = `SELECT
        brand_id,
        product_id,
        start_date,
        end_date,
        price_list,
        priority,
        amount,
        currency
    FROM price_rules
    WHERE product_id = $1
      AND brand_id = $2
      AND $3 BETWEEN start_date AND end_date
    ORDER BY priority DESC, price_list ASC
    LIMIT 1;`

	listRulesSQL = `SELECT
        brand_id,
        product_id,
        start_date,
        end_date,
        price_list,
        priority,
        amount,
        currency
    FROM price_rules
    WHERE product_id = $1
      AND brand_id = $2
    ORDER BY start_date, priority DESC;`

	insertRuleSQL = `INSERT INTO price_rules (
        brand_id,
        product_id,
        start_date,
        end_date,
        price_list,
        priority,
        amount,
        currency
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (brand_id, product_id, price_list) DO UPDATE
    SET start_date = EXCLUDED.start_date,
        end_date   = EXCLUDED.end_date,
        priority   = EXCLUDED.priority,
        amount     = EXCLUDED.amount,
        currency   = EXCLUDED.currency;`
)

// RuleStore defines read access to persisted price rules.
type RuleStore interface {
	// FetchBestRule returns the highest-priority rule covering date for the
	// product/brand pair, or pricing.ErrNotFound when nothing matches. Any
	// other error is a technical failure.
	FetchBestRule(ctx context.Context, date time.Time, productID, brandID int64) (pricing.PriceRule, error)
}

// RuleLister exposes bulk rule listing for operational tooling.
type RuleLister interface {
	ListRules(ctx context.Context, productID, brandID int64) ([]pricing.PriceRule, error)
}

// RuleWriter allows upserting rules, used by seeding.
type RuleWriter interface {
	UpsertRule(ctx context.Context, rule pricing.PriceRule) error
}

// Store provides PostgreSQL-backed access to price rules.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// FetchBestRule executes the overlap+priority query for one resolution key.
func (s *Store) FetchBestRule(ctx context.Context, date time.Time, productID, brandID int64) (pricing.PriceRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.PriceRule{}, err
	}

	row := pool.QueryRow(ctx, fetchBestRuleSQL, productID, brandID, date)
	rule, scanErr := scanPriceRule(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return pricing.PriceRule{}, pricing.ErrNotFound
		}
		return pricing.PriceRule{}, fmt.Errorf("fetch best rule: %w", scanErr)
	}
	return rule, nil
}

// ListRules lists every stored rule for a product/brand pair.
func (s *Store) ListRules(ctx context.Context, productID, brandID int64) ([]pricing.PriceRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRulesSQL, productID, brandID)
	if queryErr != nil {
		return nil, fmt.Errorf("list rules: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]pricing.PriceRule, 0)
	for rows.Next() {
		rule, scanErr := scanPriceRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// UpsertRule persists or updates a single price rule.
func (s *Store) UpsertRule(ctx context.Context, rule pricing.PriceRule) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertRuleSQL,
		rule.BrandID,
		rule.ProductID,
		rule.StartDate,
		rule.EndDate,
		rule.PriceList,
		rule.Priority,
		rule.Amount.String(),
		rule.Currency,
	)
	if execErr != nil {
		return fmt.Errorf("upsert rule: %w", execErr)
	}
	return nil
}

func scanPriceRule(row pgx.Row) (pricing.PriceRule, error) {
	var (
		rule      pricing.PriceRule
		amountStr string
	)

	if err := row.Scan(
		&rule.BrandID,
		&rule.ProductID,
		&rule.StartDate,
		&rule.EndDate,
		&rule.PriceList,
		&rule.Priority,
		&amountStr,
		&rule.Currency,
	); err != nil {
		return pricing.PriceRule{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return pricing.PriceRule{}, fmt.Errorf("parse amount: %w", err)
	}
	rule.Amount = amount

	return rule, nil
}
