// Package invalidation consumes price-change events and clears cache entries.
package invalidation

import (
	"time"

	"github.com/google/uuid"

	"price-resolver/internal/pricing"
)

// Event announces an external price change for one resolution key.
// Delivery is at-least-once with no ordering guarantee.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	ProductID int64     `json:"product_id"`
	BrandID   int64     `json:"brand_id"`
	Date      time.Time `json:"date"`
}

// NewEvent builds an Event with a fresh identifier.
func NewEvent(productID, brandID int64, date time.Time) Event {
	return Event{
		EventID:   uuid.New(),
		ProductID: productID,
		BrandID:   brandID,
		Date:      date,
	}
}

// Key returns the resolution key the event invalidates.
func (e Event) Key() pricing.ResolutionKey {
	return pricing.ResolutionKey{
		Date:      e.Date,
		ProductID: e.ProductID,
		BrandID:   e.BrandID,
	}
}
