package app

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

const (
	// FrequentThreshold is how many adds make a name a suggestion.
	FrequentThreshold = 5
	// MaxFrequent caps the suggestion list.
	MaxFrequent = 10
)

// FrequentItems returns names added at least FrequentThreshold times that
// were not hidden, most used first.
func (a *App) FrequentItems() []Suggestion {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := []Suggestion{}
	for name, count := range a.state.ItemStats {
		if count < FrequentThreshold || slices.Contains(a.state.HiddenSuggestions, name) {
			continue
		}
		out = append(out, Suggestion{Name: name, Count: count})
	}
	slices.SortFunc(out, func(x, y Suggestion) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Name, y.Name)
	})
	if len(out) > MaxFrequent {
		out = out[:MaxFrequent]
	}
	return out
}

// HideSuggestion removes a name from the suggestions until it is added again.
func (a *App) HideSuggestion(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if slices.Contains(a.state.HiddenSuggestions, name) {
		return
	}
	a.state.HiddenSuggestions = append(a.state.HiddenSuggestions, name)
	a.persistLocked(ctx)
}

func (a *App) unhideLocked(name string) {
	a.state.HiddenSuggestions = slices.DeleteFunc(a.state.HiddenSuggestions, func(h string) bool {
		return h == name
	})
}
