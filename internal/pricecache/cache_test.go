package pricecache

import (
	"testing"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"

	"github.com/shopspring/decimal"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

type countingRecorder struct{ hits, misses int }

func (r *countingRecorder) CacheHit()  { r.hits++ }
func (r *countingRecorder) CacheMiss() { r.misses++ }

func TestCache_TTLBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	rec := &countingRecorder{}
	c := New(WithClock(clock.Now), WithRecorder(rec))

	prices := []basket.StorePrice{{Store: catalog.StoreRamiLevy, Price: decimal.NewFromInt(5)}}
	c.Put("חלב", "תל אביב", prices)

	t.Run("JustBeforeExpiry", func(t *testing.T) {
		clock.t = clock.t.Add(DefaultTTL - time.Second)
		got, ok := c.Get("חלב", "תל אביב")
		if !ok {
			t.Fatal("expected cache hit just before TTL")
		}
		if len(got) != 1 || !got[0].Price.Equal(decimal.NewFromInt(5)) {
			t.Errorf("unexpected cached prices %+v", got)
		}
	})

	t.Run("JustAfterExpiry", func(t *testing.T) {
		clock.t = clock.t.Add(2 * time.Second)
		if _, ok := c.Get("חלב", "תל אביב"); ok {
			t.Fatal("expected miss after TTL")
		}
	})

	if rec.hits != 1 || rec.misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", rec.hits, rec.misses)
	}
}

func TestCache_KeyNormalization(t *testing.T) {
	c := New()
	c.Put("  Milk ", "Tel Aviv", nil)

	if _, ok := c.Get("milk", "  TEL AVIV"); !ok {
		t.Error("expected case/whitespace-insensitive hit")
	}
	if _, ok := c.Get("milk", "Haifa"); ok {
		t.Error("location is part of the key")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(WithClock(clock.Now))

	c.Put("x", "y", []basket.StorePrice{{Store: catalog.StoreVictory, Price: decimal.NewFromInt(1)}})
	clock.t = clock.t.Add(DefaultTTL + time.Hour)
	c.Put("x", "y", []basket.StorePrice{{Store: catalog.StoreVictory, Price: decimal.NewFromInt(2)}})

	got, ok := c.Get("x", "y")
	if !ok || !got[0].Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected refreshed entry, got %+v ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected a single entry, got %d", c.Len())
	}
}

func TestCache_SnapshotRestore(t *testing.T) {
	c := New()
	c.Put("a", "b", nil)

	snap := c.Snapshot()
	other := New()
	other.Restore(snap)

	if _, ok := other.Get("a", "b"); !ok {
		t.Error("expected restored entry to be served")
	}
}
