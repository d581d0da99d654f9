package app

import (
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/pricecache"
)

// State is everything persisted between runs, saved as one JSON blob.
type State struct {
	Items             []basket.Item               `json:"items"`
	Mode              basket.Mode                 `json:"mode"`
	SelectedStore     *catalog.Store              `json:"selectedStore"`
	ItemStats         map[string]int              `json:"itemStats"`
	PriceCache        map[string]pricecache.Entry `json:"priceCache"`
	Location          string                      `json:"location"`
	IsGps             bool                        `json:"isGps"`
	FamilyID          string                      `json:"familyId"`
	HiddenSuggestions []string                    `json:"hiddenSuggestions"`
}

func freshState() State {
	return State{
		Items:             []basket.Item{},
		Mode:              basket.ModeCheapest,
		ItemStats:         map[string]int{},
		HiddenSuggestions: []string{},
	}
}

// normalize repairs fields a hand-edited or older blob may lack.
func (s *State) normalize() {
	if s.Items == nil {
		s.Items = []basket.Item{}
	}
	if !s.Mode.Valid() {
		s.Mode = basket.ModeCheapest
	}
	if s.SelectedStore != nil && !s.SelectedStore.IsKnown() {
		s.SelectedStore = nil
	}
	if s.ItemStats == nil {
		s.ItemStats = map[string]int{}
	}
	if s.HiddenSuggestions == nil {
		s.HiddenSuggestions = []string{}
	}
}

// NewItem is a request to add a line to the list.
type NewItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	IsPriority bool    `json:"isPriority"`
}

// Conflict describes an add that matched an unbought item by name and is
// waiting for the caller to choose a Resolution.
type Conflict struct {
	Pending  NewItem     `json:"pending"`
	Existing basket.Item `json:"existing"`
}

// Resolution is the caller's answer to a Conflict.
type Resolution string

const (
	// ResolveUpdate adds the pending quantity to the existing item.
	ResolveUpdate Resolution = "update"
	// ResolveAdd inserts the pending item as a separate line.
	ResolveAdd Resolution = "add"
	// ResolveCancel discards the pending item.
	ResolveCancel Resolution = "cancel"
)

func (r Resolution) valid() bool {
	return r == ResolveUpdate || r == ResolveAdd || r == ResolveCancel
}

// AddOutcome is the result of AddItem: either the inserted item or the
// conflict that now blocks further adds.
type AddOutcome struct {
	Item     *basket.Item `json:"item,omitempty"`
	Conflict *Conflict    `json:"conflict,omitempty"`
}

// Suggestion is a frequently bought name offered for quick re-adding.
type Suggestion struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ImportResult counts what an import did to the list.
type ImportResult struct {
	Added  []basket.Item `json:"added"`
	Merged []basket.Item `json:"merged"`
}

// View is the derived, display-ready state.
type View struct {
	Items         []basket.Item    `json:"items"`
	Mode          basket.Mode      `json:"mode"`
	SelectedStore *catalog.Store   `json:"selectedStore"`
	Location      string           `json:"location"`
	IsGps         bool             `json:"isGps"`
	FamilyID      string           `json:"familyId,omitempty"`
	Totals        basket.Totals    `json:"totals"`
	Progress      float64          `json:"progress"`
	Breakdown     basket.Breakdown `json:"breakdown"`
	Scanning      int              `json:"scanning"`
	Conflict      *Conflict        `json:"conflict,omitempty"`
	CanUndo       bool             `json:"canUndo"`
	Syncing       bool             `json:"syncing"`
}
