package catalog

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Store identifies one of the supermarket chains prices are compared across.
type Store string

const (
	StoreShufersal Store = "שופרסל"
	StoreRamiLevy  Store = "רמי לוי"
	StoreVictory   Store = "ויקטורי"
	StoreOsherAd   Store = "אושר עד"
	StoreHaziHinam Store = "חצי חינם"
)

// DefaultUnit is the unit label used when none is given.
const DefaultUnit = "יח'"

// DefaultLocation is used for price lookups until the household sets a location.
const DefaultLocation = "מרכז תל אביב"

// Stores lists the known chains in display order.
var Stores = []Store{StoreShufersal, StoreRamiLevy, StoreVictory, StoreOsherAd, StoreHaziHinam}

// Units lists the unit labels offered when adding an item.
var Units = []string{"יח'", "ק\"ג", "גרם", "חב'", "ליטר"}

var shippingFees = map[Store]decimal.Decimal{
	StoreShufersal: decimal.NewFromInt(30),
	StoreRamiLevy:  decimal.NewFromInt(25),
	StoreVictory:   decimal.NewFromInt(28),
	StoreOsherAd:   decimal.NewFromInt(35),
	StoreHaziHinam: decimal.NewFromInt(30),
}

// IsKnown reports whether s is one of the enumerated stores.
func (s Store) IsKnown() bool {
	return slices.Contains(Stores, s)
}

// ShippingFee returns the delivery fee charged by a store; unknown stores cost nothing.
func ShippingFee(s Store) decimal.Decimal {
	if fee, ok := shippingFees[s]; ok {
		return fee
	}
	return decimal.Zero
}
