package basket

import (
	"slices"

	"shared-basket/internal/catalog"
)

// Patch is a partial update of an item. Nil fields are left untouched.
type Patch struct {
	Name       *string  `json:"name,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Unit       *string  `json:"unit,omitempty"`
	IsPriority *bool    `json:"isPriority,omitempty"`
	IsBought   *bool    `json:"isBought,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Quantity == nil && p.Unit == nil && p.IsPriority == nil && p.IsBought == nil
}

func (p Patch) apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Quantity != nil {
		it.Quantity = max(MinQuantity, *p.Quantity)
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.IsPriority != nil {
		it.IsPriority = *p.IsPriority
	}
	if p.IsBought != nil {
		it.IsBought = *p.IsBought
	}
	return it
}

// The reducers below never modify their input slice; they return a new one
// so previously captured snapshots stay intact.

// Prepend inserts an item at the head of the list.
func Prepend(items []Item, it Item) []Item {
	out := make([]Item, 0, len(items)+1)
	out = append(out, it)
	return append(out, items...)
}

// FindUnboughtByName returns the first unbought item whose normalized name
// matches name.
func FindUnboughtByName(items []Item, name string) (Item, bool) {
	key := catalog.NormalizeName(name)
	for _, it := range items {
		if !it.IsBought && catalog.NormalizeName(it.Name) == key {
			return it, true
		}
	}
	return Item{}, false
}

// Find returns the item with the given id.
func Find(items []Item, id string) (Item, bool) {
	i := slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return Item{}, false
	}
	return items[i], true
}

// Update merges a patch into the item with the given id.
func Update(items []Item, id string, p Patch) ([]Item, bool) {
	return mapByID(items, id, p.apply)
}

// SetOverride pins or clears the manual store choice.
func SetOverride(items []Item, id string, store *catalog.Store) ([]Item, bool) {
	return mapByID(items, id, func(it Item) Item {
		if store == nil {
			it.ManualStoreOverride = nil
			return it
		}
		s := *store
		it.ManualStoreOverride = &s
		return it
	})
}

// SetPrices replaces an item's quotes wholesale.
func SetPrices(items []Item, id string, prices []StorePrice) ([]Item, bool) {
	return mapByID(items, id, func(it Item) Item {
		it.Prices = slices.Clone(prices)
		return it
	})
}

// Delete removes the item with the given id.
func Delete(items []Item, id string) ([]Item, bool) {
	i := slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return items, false
	}
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}

func mapByID(items []Item, id string, fn func(Item) Item) ([]Item, bool) {
	i := slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return items, false
	}
	out := slices.Clone(items)
	out[i] = fn(out[i])
	return out, true
}

// Sorted returns the display order: unbought first, then priority, then newest.
func Sorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		if a.IsBought != b.IsBought {
			if a.IsBought {
				return 1
			}
			return -1
		}
		if a.IsPriority != b.IsPriority {
			if a.IsPriority {
				return -1
			}
			return 1
		}
		switch {
		case a.AddedAt > b.AddedAt:
			return -1
		case a.AddedAt < b.AddedAt:
			return 1
		}
		return 0
	})
	return out
}
