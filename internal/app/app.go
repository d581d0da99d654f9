package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/familysync"
	"shared-basket/internal/history"
	"shared-basket/internal/importer"
	"shared-basket/internal/logger"
	"shared-basket/internal/pricecache"
	"shared-basket/internal/shared"
	"shared-basket/internal/storage"

	"github.com/google/uuid"
)

// PriceOracle answers price, address and variety questions. Implementations
// degrade instead of failing; GetPrices only errors when ctx is done.
type PriceOracle interface {
	GetPrices(ctx context.Context, itemName, location string) ([]basket.StorePrice, error)
	SuggestLocations(ctx context.Context, partial string) []string
	ReverseGeocode(ctx context.Context, lat, lng float64) string
	GetVarieties(ctx context.Context, name string) []string
}

// ListImporter extracts grocery lines from a web page.
type ListImporter interface {
	ImportURL(ctx context.Context, pageURL string) ([]importer.ExtractedItem, shared.AgentMeta, error)
}

// Syncer persists the state locally and mirrors it to the family remote.
type Syncer interface {
	SaveLocal(ctx context.Context, data []byte) error
	LoadLocal(ctx context.Context) ([]byte, error)
	SchedulePush(familyID string, snapshot func() familysync.Document)
	Pull(ctx context.Context, familyID string) (familysync.Document, bool)
	Syncing() bool
	Close()
}

// Inviter builds and checks share links.
type Inviter interface {
	Link(familyID string) (string, error)
	VerifyInvite(familyID, token string) error
}

// CallRecorder receives model calls made outside the oracle.
type CallRecorder interface {
	RecordCall(ctx context.Context, meta shared.AgentMeta, outcome string)
}

// Options wires the controller's collaborators. Oracle and Sync are
// required; the rest are optional.
type Options struct {
	Oracle          PriceOracle
	Sync            Syncer
	Cache           *pricecache.Cache
	Importer        ListImporter
	Links           Inviter
	Recorder        CallRecorder
	Logger          *logger.Logger
	SuggestDebounce time.Duration
	HistorySize     int

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// App owns the shopping list state. Every exported method is safe for
// concurrent use; mutations are serialized and persisted before returning.
type App struct {
	mu       sync.Mutex
	state    State
	conflict *Conflict
	history  *history.Stack
	cache    *pricecache.Cache

	oracle   PriceOracle
	sync     Syncer
	importer ListImporter
	links    Inviter
	recorder CallRecorder
	log      *logger.Logger
	suggest  *latestOnly

	now   func() time.Time
	newID func() string

	// Background price lookups, keyed by item id.
	baseCtx context.Context
	stop    context.CancelFunc
	fetches map[string]*fetch
	wg      sync.WaitGroup
}

type fetch struct {
	cancel context.CancelFunc
}

// DefaultSuggestDebounce is the quiet period before a location query is sent.
const DefaultSuggestDebounce = 400 * time.Millisecond

// New creates a controller with an empty list. Call Load to restore the
// saved state.
func New(opts Options) *App {
	if opts.Cache == nil {
		opts.Cache = pricecache.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.SuggestDebounce <= 0 {
		opts.SuggestDebounce = DefaultSuggestDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &App{
		state:    freshState(),
		history:  history.New(opts.HistorySize),
		cache:    opts.Cache,
		oracle:   opts.Oracle,
		sync:     opts.Sync,
		importer: opts.Importer,
		links:    opts.Links,
		recorder: opts.Recorder,
		log:      opts.Logger,
		suggest:  newLatestOnly(opts.SuggestDebounce),
		now:      opts.Now,
		newID:    opts.NewID,
		baseCtx:  baseCtx,
		stop:     stop,
		fetches:  map[string]*fetch{},
	}
}

// Load restores the saved state. A missing blob starts an empty list and a
// malformed one is logged and ignored. Items still waiting for prices are
// re-queued, and when a family id is saved the family document is pulled.
func (a *App) Load(ctx context.Context) error {
	data, err := a.sync.LoadLocal(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		a.log.Info(ctx, "app.state_fresh")
		return nil
	case err != nil:
		return fmt.Errorf("failed to read saved state: %w", err)
	}

	st := freshState()
	if err := json.Unmarshal(data, &st); err != nil {
		a.log.Warn(ctx, "app.state_malformed", err)
		return nil
	}
	st.normalize()

	a.mu.Lock()
	a.state = st
	a.cache.Restore(st.PriceCache)
	a.state.PriceCache = nil
	if a.refreshPricesLocked() {
		a.persistLocked(ctx)
	}
	familyID := a.state.FamilyID
	a.mu.Unlock()

	ctx = a.log.WithFields(ctx, map[string]any{"items": len(st.Items), "family_id": familyID})
	a.log.Info(ctx, "app.state_loaded")

	if familyID != "" {
		if _, err := a.Pull(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background lookups and sends any pending remote push.
func (a *App) Close() {
	a.stop()
	a.wg.Wait()
	a.sync.Close()
}

// View returns the sorted list with totals for the active mode.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()

	breakdown := basket.Aggregate(a.state.Items)
	totals := breakdown.ForMode(a.state.Mode, a.state.SelectedStore)

	scanning := 0
	for _, it := range a.state.Items {
		if it.Scanning() {
			scanning++
		}
	}

	v := View{
		Items:         basket.Sorted(basket.CloneItems(a.state.Items)),
		Mode:          a.state.Mode,
		SelectedStore: cloneStore(a.state.SelectedStore),
		Location:      a.state.Location,
		IsGps:         a.state.IsGps,
		FamilyID:      a.state.FamilyID,
		Totals:        totals,
		Progress:      totals.Progress(),
		Breakdown:     breakdown,
		Scanning:      scanning,
		CanUndo:       a.history.Len() > 0,
		Syncing:       a.sync.Syncing(),
	}
	if a.conflict != nil {
		c := *a.conflict
		c.Existing = c.Existing.Clone()
		v.Conflict = &c
	}
	return v
}

// snapshotLocked records the undoable state before a mutation.
func (a *App) snapshotLocked() {
	a.history.Push(history.NewEntry(a.state.Items, a.state.Mode, a.state.SelectedStore))
}

// changedLocked persists the state and schedules a remote push.
func (a *App) changedLocked(ctx context.Context) {
	a.persistLocked(ctx)
	a.sync.SchedulePush(a.state.FamilyID, a.document)
}

func (a *App) persistLocked(ctx context.Context) {
	st := a.state
	st.PriceCache = a.cache.Snapshot()

	data, err := json.Marshal(st)
	if err != nil {
		a.log.Error(ctx, "app.state_encode_failed", err)
		return
	}
	if err := a.sync.SaveLocal(context.WithoutCancel(ctx), data); err != nil {
		a.log.Error(ctx, "app.state_save_failed", err)
	}
}

// document is called by the sync facade when a debounced push fires.
func (a *App) document() familysync.Document {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := basket.CloneItems(a.state.Items)
	if items == nil {
		items = []basket.Item{}
	}
	return familysync.Document{
		Items:    items,
		Location: a.state.Location,
		IsGps:    a.state.IsGps,
	}
}

func (a *App) locationLocked() string {
	if a.state.Location == "" {
		return catalog.DefaultLocation
	}
	return a.state.Location
}

// refreshPricesLocked fills items that have no quotes from the cache and
// starts lookups for the rest. It reports whether any item changed.
func (a *App) refreshPricesLocked() bool {
	location := a.locationLocked()
	changed := false
	for _, it := range a.state.Items {
		if !it.Scanning() {
			continue
		}
		if _, busy := a.fetches[it.ID]; busy {
			continue
		}
		if prices, ok := a.cache.Get(it.Name, location); ok {
			a.state.Items, _ = basket.SetPrices(a.state.Items, it.ID, prices)
			changed = true
			continue
		}
		a.startFetchLocked(it.ID, it.Name, location)
	}
	return changed
}

func (a *App) startFetchLocked(id, name, location string) {
	ctx, cancel := context.WithCancel(a.baseCtx)
	f := &fetch{cancel: cancel}
	a.fetches[id] = f

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		a.fetchPrices(a.log.WithItemID(ctx, id), f, id, name, location)
	}()
}

func (a *App) fetchPrices(ctx context.Context, f *fetch, id, name, location string) {
	prices, err := a.oracle.GetPrices(ctx, name, location)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fetches[id] == f {
		delete(a.fetches, id)
	}
	if err != nil {
		a.log.Debug(ctx, "app.price_fetch_cancelled")
		return
	}

	a.cache.Put(name, location, prices)
	items, ok := basket.SetPrices(a.state.Items, id, prices)
	if !ok {
		a.persistLocked(ctx)
		return
	}
	a.state.Items = items
	a.changedLocked(ctx)
}

func (a *App) cancelFetchLocked(id string) {
	if f, ok := a.fetches[id]; ok {
		f.cancel()
		delete(a.fetches, id)
	}
}

func (a *App) cancelAllFetchesLocked() {
	for id := range a.fetches {
		a.cancelFetchLocked(id)
	}
}

// cancelOrphanedFetchesLocked drops lookups whose item left the list.
func (a *App) cancelOrphanedFetchesLocked() {
	for id := range a.fetches {
		if _, ok := basket.Find(a.state.Items, id); !ok {
			a.cancelFetchLocked(id)
		}
	}
}

func cloneStore(s *catalog.Store) *catalog.Store {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
