package basket

import (
	"math/rand"
	"testing"

	"shared-basket/internal/catalog"

	"github.com/shopspring/decimal"
)

func price(store catalog.Store, p int64) StorePrice {
	return StorePrice{Store: store, Price: decimal.NewFromInt(p)}
}

func storePtr(s catalog.Store) *catalog.Store { return &s }

func TestAggregate_MilkExample(t *testing.T) {
	items := []Item{{
		ID:       "1",
		Name:     "חלב",
		Quantity: 1,
		Prices: []StorePrice{
			price(catalog.StoreShufersal, 6),
			price(catalog.StoreRamiLevy, 5),
		},
	}}

	b := Aggregate(items)

	if !b.Cheapest.Total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected cheapest total 5, got %s", b.Cheapest.Total)
	}
	if !b.Cheapest.Shipping.IsZero() {
		t.Errorf("expected no shipping for split basket, got %s", b.Cheapest.Shipping)
	}

	shufersal := b.ForMode(ModeSingleStore, storePtr(catalog.StoreShufersal))
	want := decimal.NewFromInt(6).Add(catalog.ShippingFee(catalog.StoreShufersal))
	if !shufersal.Total.Equal(want) {
		t.Errorf("expected שופרסל total %s, got %s", want, shufersal.Total)
	}

	// Victory did not quote, so the first quote stands in.
	victory := b.Stores[catalog.StoreVictory]
	wantVictory := decimal.NewFromInt(6).Add(catalog.ShippingFee(catalog.StoreVictory))
	if !victory.Total.Equal(wantVictory) {
		t.Errorf("expected fallback to first quote, got %s", victory.Total)
	}
}

func TestAggregate_EmptyList(t *testing.T) {
	b := Aggregate(nil)
	for store, totals := range b.Stores {
		if !totals.Total.IsZero() || !totals.Shipping.IsZero() {
			t.Errorf("expected zero totals for %s on empty list, got %+v", store, totals)
		}
	}
}

func TestAggregate_SpentAndQuantity(t *testing.T) {
	items := []Item{
		{ID: "1", Quantity: 2, IsBought: true, Prices: []StorePrice{price(catalog.StoreRamiLevy, 10)}},
		{ID: "2", Quantity: 1.5, Prices: []StorePrice{price(catalog.StoreRamiLevy, 4)}},
		{ID: "3", Quantity: 1},
	}

	b := Aggregate(items)
	rami := b.Stores[catalog.StoreRamiLevy]

	if !rami.Spent.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected spent 20, got %s", rami.Spent)
	}
	if !rami.Total.Equal(decimal.NewFromInt(26 + 25)) {
		t.Errorf("expected total 51, got %s", rami.Total)
	}
	if !b.Cheapest.Total.Equal(decimal.NewFromInt(26)) {
		t.Errorf("expected cheapest 26, got %s", b.Cheapest.Total)
	}
	if got := b.Cheapest.Progress(); got < 76.9 || got > 77 {
		t.Errorf("expected progress ~76.92, got %f", got)
	}
}

func TestAggregate_CheapestNeverAboveAnyStore(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var items []Item
		for i := 0; i < r.Intn(12); i++ {
			var prices []StorePrice
			for _, s := range catalog.Stores {
				if r.Intn(3) == 0 {
					continue
				}
				prices = append(prices, price(s, int64(1+r.Intn(40))))
			}
			items = append(items, Item{
				ID:       string(rune('a' + i)),
				Quantity: float64(1+r.Intn(6)) / 2,
				IsBought: r.Intn(2) == 0,
				Prices:   prices,
			})
		}

		b := Aggregate(items)
		for store, totals := range b.Stores {
			if b.Cheapest.Total.GreaterThan(totals.Total) {
				t.Fatalf("round %d: cheapest %s exceeds %s total %s", round, b.Cheapest.Total, store, totals.Total)
			}
		}
	}
}

func TestForMode_SingleStoreWithoutSelection(t *testing.T) {
	b := Aggregate([]Item{{ID: "1", Quantity: 1, Prices: []StorePrice{price(catalog.StoreVictory, 3)}}})
	got := b.ForMode(ModeSingleStore, nil)
	if !got.Total.IsZero() {
		t.Errorf("expected zero totals without a selected store, got %s", got.Total)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   float64
	}{
		{"Empty", Totals{}, 0},
		{"Half", Totals{Total: decimal.NewFromInt(130), Spent: decimal.NewFromInt(50), Shipping: decimal.NewFromInt(30)}, 50},
		{"ShippingOnly", Totals{Total: decimal.NewFromInt(30), Spent: decimal.Zero, Shipping: decimal.NewFromInt(30)}, 0},
		{"Clamped", Totals{Total: decimal.NewFromInt(10), Spent: decimal.NewFromInt(50), Shipping: decimal.Zero}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.totals.Progress(); got != tt.want {
				t.Errorf("Progress() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSorted(t *testing.T) {
	items := []Item{
		{ID: "old", AddedAt: 1},
		{ID: "bought-new", AddedAt: 9, IsBought: true},
		{ID: "new", AddedAt: 5},
		{ID: "prio-old", AddedAt: 2, IsPriority: true},
		{ID: "bought-prio", AddedAt: 3, IsBought: true, IsPriority: true},
	}

	got := Sorted(items)
	want := []string{"prio-old", "new", "old", "bought-prio", "bought-new"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (full order %v)", i, id, got[i].ID, ids(got))
		}
	}
	if items[0].ID != "old" {
		t.Error("Sorted must not reorder its input")
	}
}

func TestReducers(t *testing.T) {
	base := []Item{
		{ID: "a", Name: "חלב", Quantity: 1},
		{ID: "b", Name: "לחם", Quantity: 2, IsBought: true},
	}

	t.Run("UpdateClampsQuantity", func(t *testing.T) {
		q := 0.0
		out, ok := Update(base, "a", Patch{Quantity: &q})
		if !ok {
			t.Fatal("expected update to find the item")
		}
		if out[0].Quantity != MinQuantity {
			t.Errorf("expected quantity clamped to %v, got %v", MinQuantity, out[0].Quantity)
		}
		if base[0].Quantity != 1 {
			t.Error("Update must not modify its input")
		}
	})

	t.Run("UpdateUnknownID", func(t *testing.T) {
		bought := true
		out, ok := Update(base, "zzz", Patch{IsBought: &bought})
		if ok || len(out) != len(base) {
			t.Errorf("expected no-op for unknown id, got ok=%v len=%d", ok, len(out))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		out, ok := Delete(base, "a")
		if !ok || len(out) != 1 || out[0].ID != "b" {
			t.Errorf("unexpected delete result %v ok=%v", ids(out), ok)
		}
		if _, ok := Delete(base, "missing"); ok {
			t.Error("expected delete of unknown id to report false")
		}
	})

	t.Run("FindUnboughtByName", func(t *testing.T) {
		if _, ok := FindUnboughtByName(base, "  חלב "); !ok {
			t.Error("expected normalized match")
		}
		if _, ok := FindUnboughtByName(base, "לחם"); ok {
			t.Error("bought items must not match")
		}
	})

	t.Run("Override", func(t *testing.T) {
		out, _ := SetOverride(base, "a", storePtr(catalog.StoreVictory))
		store, ok := AssignedStore(out[0], storePtr(catalog.StoreRamiLevy))
		if !ok || store != catalog.StoreVictory {
			t.Errorf("expected override to win, got %s", store)
		}
		out, _ = SetOverride(out, "a", nil)
		if out[0].ManualStoreOverride != nil {
			t.Error("expected override cleared")
		}
	})
}

func TestAssignedStore_FallsBackToCheapest(t *testing.T) {
	it := Item{Prices: []StorePrice{price(catalog.StoreShufersal, 9), price(catalog.StoreHaziHinam, 7)}}
	store, ok := AssignedStore(it, nil)
	if !ok || store != catalog.StoreHaziHinam {
		t.Errorf("expected cheapest store, got %s", store)
	}
	if _, ok := AssignedStore(Item{}, nil); ok {
		t.Error("expected no assignment without quotes")
	}
}

func TestValidQuantity(t *testing.T) {
	for q, want := range map[float64]bool{0: false, 0.25: false, 0.5: true, 1: true, 2.5: true, 1.75: false, -1: false} {
		if got := ValidQuantity(q); got != want {
			t.Errorf("ValidQuantity(%v) = %v, want %v", q, got, want)
		}
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
