package basket

import (
	"shared-basket/internal/catalog"

	"github.com/shopspring/decimal"
)

// Totals is the cost of the list under one buying strategy.
type Totals struct {
	Total    decimal.Decimal `json:"total"`
	Spent    decimal.Decimal `json:"spent"`
	Shipping decimal.Decimal `json:"shipping"`
}

// Progress is the share of the products cost already in the cart, as a
// percentage clamped to [0,100].
func (t Totals) Progress() float64 {
	products := t.Total.Sub(t.Shipping)
	if !t.Total.IsPositive() || !products.IsPositive() {
		return 0
	}
	pct, _ := t.Spent.Div(products).Mul(decimal.NewFromInt(100)).Float64()
	return min(100, max(0, pct))
}

// Breakdown holds the totals for every store plus the split-basket option.
type Breakdown struct {
	Stores   map[catalog.Store]Totals `json:"stores"`
	Cheapest Totals                   `json:"cheapest"`
}

// Aggregate computes per-store totals (products plus delivery) and the
// cheapest split basket (each item at its lowest quote, self pickup, no
// delivery). Spent mirrors each sum over bought items only.
func Aggregate(items []Item) Breakdown {
	b := Breakdown{Stores: make(map[catalog.Store]Totals, len(catalog.Stores))}

	for _, store := range catalog.Stores {
		products, spent := decimal.Zero, decimal.Zero
		for _, it := range items {
			cost := it.PriceAt(store).Mul(quantity(it))
			products = products.Add(cost)
			if it.IsBought {
				spent = spent.Add(cost)
			}
		}

		shipping := decimal.Zero
		if len(items) > 0 {
			shipping = catalog.ShippingFee(store)
		}
		b.Stores[store] = Totals{
			Total:    products.Add(shipping),
			Spent:    spent,
			Shipping: shipping,
		}
	}

	cheapest := Totals{Total: decimal.Zero, Spent: decimal.Zero, Shipping: decimal.Zero}
	for _, it := range items {
		best, ok := it.MinPrice()
		if !ok {
			continue
		}
		cost := best.Price.Mul(quantity(it))
		cheapest.Total = cheapest.Total.Add(cost)
		if it.IsBought {
			cheapest.Spent = cheapest.Spent.Add(cost)
		}
	}
	b.Cheapest = cheapest

	return b
}

// ForMode selects the totals shown for a view. A single-store view with no
// store chosen shows zeros.
func (b Breakdown) ForMode(mode Mode, selected *catalog.Store) Totals {
	if mode == ModeSingleStore {
		if selected == nil {
			return Totals{Total: decimal.Zero, Spent: decimal.Zero, Shipping: decimal.Zero}
		}
		return b.Stores[*selected]
	}
	return b.Cheapest
}

// CheapestStore returns the single store with the lowest total.
func (b Breakdown) CheapestStore() (catalog.Store, Totals) {
	var bestStore catalog.Store
	var best Totals
	for _, s := range catalog.Stores {
		t, ok := b.Stores[s]
		if !ok {
			continue
		}
		if bestStore == "" || t.Total.LessThan(best.Total) {
			bestStore, best = s, t
		}
	}
	return bestStore, best
}

func quantity(it Item) decimal.Decimal {
	return decimal.NewFromFloat(it.Quantity)
}
