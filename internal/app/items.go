package app

import (
	"context"
	"strings"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/shared"
)

func (r *NewItem) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrEmptyName
	}
	if !basket.ValidQuantity(r.Quantity) {
		return ErrInvalidQuantity
	}
	r.Unit = strings.TrimSpace(r.Unit)
	if r.Unit == "" {
		r.Unit = catalog.DefaultUnit
	}
	return nil
}

// AddItem inserts an item at the head of the list. When an unbought item
// with the same normalized name exists nothing is inserted; the returned
// outcome carries the Conflict instead, and further adds fail with
// ErrConflictPending until ResolveConflict is called.
func (a *App) AddItem(ctx context.Context, req NewItem) (AddOutcome, error) {
	if err := req.validate(); err != nil {
		return AddOutcome{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conflict != nil {
		return AddOutcome{}, ErrConflictPending
	}
	if existing, ok := basket.FindUnboughtByName(a.state.Items, req.Name); ok {
		a.conflict = &Conflict{Pending: req, Existing: existing.Clone()}
		c := *a.conflict
		a.log.Info(a.log.WithItemID(ctx, existing.ID), "app.duplicate_detected")
		return AddOutcome{Conflict: &c}, nil
	}

	a.snapshotLocked()
	it := a.insertLocked(req)
	a.changedLocked(ctx)
	return AddOutcome{Item: &it}, nil
}

// insertLocked creates the item, bumps its usage counter and starts a price
// lookup when the cache has nothing fresh. It does not snapshot.
func (a *App) insertLocked(req NewItem) basket.Item {
	location := a.locationLocked()
	prices, hit := a.cache.Get(req.Name, location)
	if !hit {
		prices = []basket.StorePrice{}
	}

	it := basket.Item{
		ID:         a.newID(),
		Name:       req.Name,
		Emoji:      catalog.Emoji(req.Name),
		Quantity:   req.Quantity,
		Unit:       req.Unit,
		IsPriority: req.IsPriority,
		Prices:     prices,
		AddedAt:    a.now().UnixMilli(),
	}
	a.state.Items = basket.Prepend(a.state.Items, it)

	a.state.ItemStats[req.Name]++
	a.unhideLocked(req.Name)

	if !hit {
		a.startFetchLocked(it.ID, it.Name, location)
	}
	return it.Clone()
}

// ResolveConflict settles the pending duplicate. Update adds the pending
// quantity to the matched item, or inserts the pending item when the match
// was deleted or bought in the meantime; add inserts the pending item as a
// new line; cancel discards it. The returned item is the one updated or
// inserted, nil only on cancel.
func (a *App) ResolveConflict(ctx context.Context, choice Resolution) (*basket.Item, error) {
	if !choice.valid() {
		return nil, ErrInvalidResolution
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conflict == nil {
		return nil, ErrNoConflict
	}
	c := *a.conflict
	a.conflict = nil

	switch choice {
	case ResolveUpdate:
		a.snapshotLocked()
		existing, ok := basket.Find(a.state.Items, c.Existing.ID)
		if !ok || existing.IsBought {
			// The matched line left the list meanwhile; keep the request.
			it := a.insertLocked(c.Pending)
			a.changedLocked(ctx)
			return &it, nil
		}
		qty := existing.Quantity + c.Pending.Quantity
		a.state.Items, _ = basket.Update(a.state.Items, existing.ID, basket.Patch{Quantity: &qty})
		a.changedLocked(ctx)
		updated, _ := basket.Find(a.state.Items, existing.ID)
		updated = updated.Clone()
		return &updated, nil
	case ResolveAdd:
		a.snapshotLocked()
		it := a.insertLocked(c.Pending)
		a.changedLocked(ctx)
		return &it, nil
	default:
		a.log.Debug(ctx, "app.duplicate_cancelled")
		return nil, nil
	}
}

func validatePatch(p *basket.Patch) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrEmptyName
		}
		p.Name = &name
	}
	if p.Quantity != nil && !basket.ValidQuantity(max(basket.MinQuantity, *p.Quantity)) {
		return ErrInvalidQuantity
	}
	if p.Unit != nil {
		unit := strings.TrimSpace(*p.Unit)
		if unit == "" {
			unit = catalog.DefaultUnit
		}
		p.Unit = &unit
	}
	return nil
}

// UpdateItem merges patch into the item. Quantities below the minimum are
// clamped to it. The snapshot is taken even when id is unknown.
func (a *App) UpdateItem(ctx context.Context, id string, patch basket.Patch) (basket.Item, error) {
	if err := validatePatch(&patch); err != nil {
		return basket.Item{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshotLocked()
	items, ok := basket.Update(a.state.Items, id, patch)
	if !ok {
		return basket.Item{}, ErrItemNotFound
	}
	a.state.Items = items
	a.changedLocked(a.log.WithItemID(ctx, id))

	it, _ := basket.Find(a.state.Items, id)
	return it.Clone(), nil
}

// DeleteItem removes the item and abandons its price lookup.
func (a *App) DeleteItem(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshotLocked()
	items, ok := basket.Delete(a.state.Items, id)
	if !ok {
		return ErrItemNotFound
	}
	a.cancelFetchLocked(id)
	a.state.Items = items
	a.changedLocked(a.log.WithItemID(ctx, id))
	return nil
}

// OverrideStore pins the item to a store, or clears the pin when store is nil.
func (a *App) OverrideStore(ctx context.Context, id string, store *catalog.Store) (basket.Item, error) {
	if store != nil && !store.IsKnown() {
		return basket.Item{}, ErrUnknownStore
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshotLocked()
	items, ok := basket.SetOverride(a.state.Items, id, store)
	if !ok {
		return basket.Item{}, ErrItemNotFound
	}
	a.state.Items = items
	a.changedLocked(a.log.WithItemID(ctx, id))

	it, _ := basket.Find(a.state.Items, id)
	return it.Clone(), nil
}

// ClearList empties the list. It can be undone.
func (a *App) ClearList(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshotLocked()
	a.cancelAllFetchesLocked()
	a.state.Items = []basket.Item{}
	a.changedLocked(ctx)
}

// Undo restores the most recent snapshot. It reports false when there is
// nothing to undo.
func (a *App) Undo(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.history.Pop()
	if !ok {
		return false
	}
	a.state.Items = basket.CloneItems(entry.Items)
	if a.state.Items == nil {
		a.state.Items = []basket.Item{}
	}
	a.state.Mode = entry.Mode
	a.state.SelectedStore = cloneStore(entry.SelectedStore)

	a.cancelOrphanedFetchesLocked()
	a.refreshPricesLocked()
	a.changedLocked(ctx)
	return true
}

// SetMode switches the displayed totals. A non-nil store also becomes the
// selected store. Mode changes are not recorded for undo.
func (a *App) SetMode(ctx context.Context, mode basket.Mode, store *catalog.Store) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	if store != nil && !store.IsKnown() {
		return ErrUnknownStore
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Mode = mode
	if store != nil {
		a.state.SelectedStore = cloneStore(store)
	}
	a.changedLocked(ctx)
	return nil
}

// ImportURL adds the groceries found on a web page. Names already on the
// list unbought get their quantity increased; the rest are inserted. The
// whole import is a single undo step.
func (a *App) ImportURL(ctx context.Context, pageURL string) (ImportResult, error) {
	if a.importer == nil {
		return ImportResult{}, ErrImportDisabled
	}

	ctx = a.log.WithField(ctx, "url", pageURL)
	extracted, meta, err := a.importer.ImportURL(ctx, pageURL)
	if a.recorder != nil && meta.AgentName != "" {
		a.recorder.RecordCall(ctx, meta, shared.Outcome(err))
	}
	if err != nil {
		a.log.Warn(ctx, "app.import_failed", err)
		return ImportResult{}, importFailed(err)
	}

	result := ImportResult{Added: []basket.Item{}, Merged: []basket.Item{}}
	if len(extracted) == 0 {
		return result, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshotLocked()
	for _, e := range extracted {
		req := NewItem{Name: e.Name, Quantity: e.Quantity, Unit: e.Unit}
		if err := req.validate(); err != nil {
			continue
		}
		if existing, ok := basket.FindUnboughtByName(a.state.Items, req.Name); ok {
			qty := existing.Quantity + req.Quantity
			a.state.Items, _ = basket.Update(a.state.Items, existing.ID, basket.Patch{Quantity: &qty})
			merged, _ := basket.Find(a.state.Items, existing.ID)
			result.Merged = append(result.Merged, merged.Clone())
			continue
		}
		result.Added = append(result.Added, a.insertLocked(req))
	}
	a.changedLocked(ctx)

	a.log.Info(a.log.WithFields(ctx, map[string]any{
		"added":  len(result.Added),
		"merged": len(result.Merged),
	}), "app.import_done")
	return result, nil
}
