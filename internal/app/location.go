package app

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SetLocation replaces the household location typed by the user.
func (a *App) SetLocation(ctx context.Context, location string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Location = strings.TrimSpace(location)
	a.state.IsGps = false
	a.snapshotLocked()
	a.changedLocked(ctx)
}

// UseGPS resolves coordinates to an address and makes it the location.
func (a *App) UseGPS(ctx context.Context, lat, lng float64) (string, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", ErrInvalidCoordinate
	}

	address := a.oracle.ReverseGeocode(ctx, lat, lng)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Location = address
	a.state.IsGps = true
	a.snapshotLocked()
	a.changedLocked(ctx)
	return address, nil
}

// SuggestLocations completes a partial address once the caller has been
// quiet for the debounce window. A newer query supersedes a waiting one:
// the older caller gets ErrSuperseded and never reaches the oracle.
func (a *App) SuggestLocations(ctx context.Context, partial string) ([]string, error) {
	if err := a.suggest.wait(ctx); err != nil {
		return nil, err
	}
	suggestions := a.oracle.SuggestLocations(ctx, partial)
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

// Varieties proposes specific products for a generic single-word name.
func (a *App) Varieties(ctx context.Context, name string) []string {
	varieties := a.oracle.GetVarieties(ctx, name)
	if varieties == nil {
		varieties = []string{}
	}
	return varieties
}

// latestOnly lets only the most recent of overlapping callers through,
// after a quiet period.
type latestOnly struct {
	mu    sync.Mutex
	seq   uint64
	delay time.Duration
}

func newLatestOnly(delay time.Duration) *latestOnly {
	return &latestOnly{delay: delay}
}

func (l *latestOnly) wait(ctx context.Context) error {
	l.mu.Lock()
	l.seq++
	mine := l.seq
	l.mu.Unlock()

	timer := time.NewTimer(l.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != mine {
		return ErrSuperseded
	}
	return nil
}
