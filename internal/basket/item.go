package basket

import (
	"math"
	"slices"

	"shared-basket/internal/catalog"

	"github.com/shopspring/decimal"
)

// MinQuantity is the smallest quantity an item can hold; quantities move in
// steps of the same size.
const MinQuantity = 0.5

// Mode selects which totals are displayed.
type Mode string

const (
	ModeCheapest    Mode = "CHEAPEST_OVERALL"
	ModeSingleStore Mode = "SINGLE_STORE"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCheapest || m == ModeSingleStore
}

// StorePrice is a single quote for an item at one store branch.
type StorePrice struct {
	Store           catalog.Store   `json:"store"`
	BranchName      string          `json:"branchName,omitempty"`
	Price           decimal.Decimal `json:"price"`
	IsSale          bool            `json:"isSale,omitempty"`
	SaleDescription string          `json:"saleDescription,omitempty"`
}

// Item is one line of the shopping list.
type Item struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Emoji               string         `json:"emoji"`
	Quantity            float64        `json:"quantity"`
	Unit                string         `json:"unit"`
	IsPriority          bool           `json:"isPriority"`
	IsBought            bool           `json:"isBought"`
	Prices              []StorePrice   `json:"prices"`
	ManualStoreOverride *catalog.Store `json:"manualStoreOverride,omitempty"`
	AddedAt             int64          `json:"addedAt"` // unix millis
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.Prices = slices.Clone(it.Prices)
	if it.ManualStoreOverride != nil {
		s := *it.ManualStoreOverride
		out.ManualStoreOverride = &s
	}
	return out
}

// Scanning reports whether the item is still waiting for price quotes.
func (it Item) Scanning() bool {
	return !it.IsBought && len(it.Prices) == 0
}

// MinPrice returns the cheapest quote, if any.
func (it Item) MinPrice() (StorePrice, bool) {
	if len(it.Prices) == 0 {
		return StorePrice{}, false
	}
	best := it.Prices[0]
	for _, p := range it.Prices[1:] {
		if p.Price.LessThan(best.Price) {
			best = p
		}
	}
	return best, true
}

// PriceAt returns the quote for a store, falling back to the first quote and
// then to zero when the store did not quote this item.
func (it Item) PriceAt(store catalog.Store) decimal.Decimal {
	for _, p := range it.Prices {
		if p.Store == store {
			return p.Price
		}
	}
	if len(it.Prices) > 0 {
		return it.Prices[0].Price
	}
	return decimal.Zero
}

// ValidQuantity reports whether q respects the minimum and the half-unit step.
func ValidQuantity(q float64) bool {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < MinQuantity {
		return false
	}
	return math.Mod(q*2, 1) == 0
}

// CloneItems deep-copies a list.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// AssignedStore resolves where an item would be bought: the manual override
// wins, then the active single-store selection, then the cheapest quote.
func AssignedStore(it Item, active *catalog.Store) (catalog.Store, bool) {
	if it.ManualStoreOverride != nil {
		return *it.ManualStoreOverride, true
	}
	if active != nil {
		return *active, true
	}
	if best, ok := it.MinPrice(); ok {
		return best.Store, true
	}
	return "", false
}
