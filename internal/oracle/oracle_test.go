package oracle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/llm"
	"shared-basket/internal/shared"

	"github.com/shopspring/decimal"
)

type fakeGenerator struct {
	mu      sync.Mutex
	content string
	err     error
	prompts []string
	calls   atomic.Int32
	block   chan struct{}
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return llm.ContentResponse{}, ctx.Err()
		}
	}
	if f.err != nil {
		return llm.ContentResponse{}, f.err
	}
	return llm.ContentResponse{
		Content: f.content,
		Usage:   shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, Model: "fake"},
	}, nil
}

type callRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (r *callRecorder) RecordCall(ctx context.Context, meta shared.AgentMeta, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string][]string{}
	}
	r.outcomes[meta.AgentName] = append(r.outcomes[meta.AgentName], outcome)
}

func TestGetPrices_FiltersRecords(t *testing.T) {
	gen := &fakeGenerator{content: `{"prices": [
		{"store": "רמי לוי", "branchName": "תלפיות", "price": 5.9, "isSale": true, "saleDescription": "2 ב-10"},
		{"store": "יינות ביתן", "branchName": "x", "price": 4},
		{"store": "שופרסל", "branchName": "y", "price": 0},
		{"store": "ויקטורי", "branchName": "z", "price": -3}
	]}`}
	rec := &callRecorder{}
	o := New(gen, WithRecorder(rec))

	got, err := o.GetPrices(context.Background(), "חלב", "תל אביב")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single valid quote, got %+v", got)
	}
	if got[0].Store != catalog.StoreRamiLevy || !got[0].Price.Equal(decimal.RequireFromString("5.9")) || !got[0].IsSale {
		t.Errorf("unexpected quote %+v", got[0])
	}
	if !strings.Contains(gen.prompts[0], "חלב") || !strings.Contains(gen.prompts[0], "אושר עד") {
		t.Errorf("prompt is missing item or stores: %s", gen.prompts[0])
	}
	if outcomes := rec.outcomes[AgentPrices]; len(outcomes) != 1 || outcomes[0] != shared.OutcomeOK {
		t.Errorf("expected one ok outcome, got %v", outcomes)
	}
}

func TestGetPrices_AcceptsBareArray(t *testing.T) {
	gen := &fakeGenerator{content: "```json\n[{\"store\": \"חצי חינם\", \"branchName\": \"a\", \"price\": 7}]\n```"}
	got, err := New(gen).GetPrices(context.Background(), "x", "y")
	if err != nil || len(got) != 1 || got[0].Store != catalog.StoreHaziHinam {
		t.Fatalf("expected bare array to decode, got %+v err=%v", got, err)
	}
}

func TestGetPrices_Fallback(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"GeneratorError", &fakeGenerator{err: errors.New("quota exceeded")}},
		{"MalformedJSON", &fakeGenerator{content: "not json"}},
		{"MissingField", &fakeGenerator{content: `{"items": []}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &callRecorder{}
			o := New(tt.gen, WithRecorder(rec), WithRand(func(n int) int { return n - 1 }))

			got, err := o.GetPrices(context.Background(), "חלב", "תל אביב")
			if err != nil {
				t.Fatalf("fallback must not surface errors, got %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 synthetic quotes, got %d", len(got))
			}
			for i, p := range got {
				if p.Store != catalog.Stores[i] {
					t.Errorf("quote %d: expected store %s, got %s", i, catalog.Stores[i], p.Store)
				}
				if p.BranchName != "סניף קרוב" || p.IsSale {
					t.Errorf("unexpected synthetic quote %+v", p)
				}
				if !p.Price.Equal(decimal.NewFromInt(19)) {
					t.Errorf("expected top of range 19, got %s", p.Price)
				}
			}
			if outcomes := rec.outcomes[AgentPrices]; len(outcomes) != 1 || outcomes[0] != shared.OutcomeFallback {
				t.Errorf("expected fallback outcome, got %v", outcomes)
			}
		})
	}
}

func TestGetPrices_FallbackRange(t *testing.T) {
	o := New(&fakeGenerator{err: errors.New("down")})
	for i := 0; i < 50; i++ {
		got, _ := o.GetPrices(context.Background(), "x", "y")
		for _, p := range got {
			if p.Price.LessThan(decimal.NewFromInt(5)) || p.Price.GreaterThan(decimal.NewFromInt(19)) {
				t.Fatalf("synthetic price %s outside [5,19]", p.Price)
			}
			if !p.Price.IsInteger() {
				t.Fatalf("synthetic price %s is not an integer", p.Price)
			}
		}
	}
}

func TestGetPrices_CoalescesConcurrentLookups(t *testing.T) {
	gen := &fakeGenerator{
		content: `{"prices": [{"store": "שופרסל", "branchName": "a", "price": 3}]}`,
		block:   make(chan struct{}),
	}
	o := New(gen)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.GetPrices(context.Background(), " חלב", "תל אביב "); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	// Give every goroutine time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(gen.block)
	wg.Wait()

	if n := gen.calls.Load(); n != 1 {
		t.Errorf("expected a single model call, got %d", n)
	}
}

func TestGetPrices_CancelledCallerDoesNotSpoilSharedLookup(t *testing.T) {
	gen := &fakeGenerator{
		content: `{"prices": [{"store": "שופרסל", "branchName": "דיזנגוף", "price": 7}]}`,
		block:   make(chan struct{}),
	}
	o := New(gen)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := o.GetPrices(firstCtx, "חלב", "תל אביב")
		firstErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for gen.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first lookup never reached the model")
		}
		time.Sleep(time.Millisecond)
	}

	type result struct {
		quotes []basket.StorePrice
		err    error
	}
	second := make(chan result, 1)
	go func() {
		q, err := o.GetPrices(context.Background(), "חלב", "תל אביב")
		second <- result{q, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", err)
	}

	close(gen.block)
	got := <-second
	if got.err != nil {
		t.Fatalf("second caller: unexpected error %v", got.err)
	}
	if len(got.quotes) != 1 || got.quotes[0].BranchName != "דיזנגוף" || !got.quotes[0].Price.Equal(decimal.NewFromInt(7)) {
		t.Errorf("second caller should get the model quote, got %+v", got.quotes)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("expected a single shared model call, got %d", n)
	}
}

func TestSuggestLocations(t *testing.T) {
	t.Run("TooShort", func(t *testing.T) {
		gen := &fakeGenerator{content: `{"suggestions": ["x"]}`}
		if got := New(gen).SuggestLocations(context.Background(), " ת "); got != nil {
			t.Errorf("expected no suggestions, got %v", got)
		}
		if gen.calls.Load() != 0 {
			t.Error("short queries must not reach the model")
		}
	})

	t.Run("CapsAtFive", func(t *testing.T) {
		gen := &fakeGenerator{content: `{"suggestions": ["a", "b", "", "c", "d", "e", "f"]}`}
		got := New(gen).SuggestLocations(context.Background(), "הרצ")
		if len(got) != MaxSuggestions || got[0] != "a" || got[2] != "c" {
			t.Errorf("unexpected suggestions %v", got)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		got := New(&fakeGenerator{err: errors.New("down")}).SuggestLocations(context.Background(), "הרצל")
		if len(got) != 0 {
			t.Errorf("expected empty result on failure, got %v", got)
		}
	})
}

func TestReverseGeocode(t *testing.T) {
	got := New(&fakeGenerator{content: `{"address": " הרצל 10, תל אביב "}`}).ReverseGeocode(context.Background(), 32.06, 34.77)
	if got != "הרצל 10, תל אביב" {
		t.Errorf("unexpected address %q", got)
	}

	got = New(&fakeGenerator{err: errors.New("down")}).ReverseGeocode(context.Background(), 32.0612, 34.7745)
	if got != "מיקום (32.06, 34.77)" {
		t.Errorf("unexpected fallback label %q", got)
	}

	got = New(&fakeGenerator{content: `{"address": ""}`}).ReverseGeocode(context.Background(), 1, 2)
	if got != CoordinateLabel(1, 2) {
		t.Errorf("expected coordinate label for empty address, got %q", got)
	}
}

func TestGetVarieties(t *testing.T) {
	gen := &fakeGenerator{content: `{"varieties": ["חלב 3%", "חלב 1%", "חלב סויה", "חלב שקדים"]}`}
	o := New(gen)

	if got := o.GetVarieties(context.Background(), "חלב"); len(got) != 4 {
		t.Errorf("expected 4 varieties, got %v", got)
	}
	if got := o.GetVarieties(context.Background(), "חלב 3%"); got != nil {
		t.Errorf("multi-word names get no varieties, got %v", got)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("expected a single model call, got %d", gen.calls.Load())
	}
	if got := New(&fakeGenerator{err: errors.New("down")}).GetVarieties(context.Background(), "לחם"); len(got) != 0 {
		t.Errorf("expected empty on failure, got %v", got)
	}
}
