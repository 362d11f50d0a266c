// Package pricing defines the domain model for time-bounded price rules.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRule is an immutable pricing rule valid over a closed date interval.
type PriceRule struct {
	BrandID   int64
	ProductID int64
	StartDate time.Time
	EndDate   time.Time
	PriceList int32
	Priority  int32
	Amount    decimal.Decimal
	Currency  string
}

// AppliesAt reports whether the rule covers the given instant. Both interval
// bounds are inclusive.
func (r PriceRule) AppliesAt(t time.Time) bool {
	return !t.Before(r.StartDate) && !t.After(r.EndDate)
}

// ResolutionKey identifies a single resolution request. Equality is exact on
// all three fields; keys differing only in sub-second precision are distinct.
type ResolutionKey struct {
	Date      time.Time
	ProductID int64
	BrandID   int64
}

// CacheKey renders the key as a stable cache identifier.
func (k ResolutionKey) CacheKey() string {
	return fmt.Sprintf("%d:%d:%s", k.ProductID, k.BrandID, k.Date.UTC().Format(time.RFC3339Nano))
}

func (k ResolutionKey) String() string {
	return k.CacheKey()
}
