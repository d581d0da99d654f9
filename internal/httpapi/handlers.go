package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"shared-basket/internal/app"
	"shared-basket/internal/apperr"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/logger"
	"shared-basket/internal/share"

	"github.com/go-chi/chi/v5"
)

// Basket is the controller surface the API exposes.
type Basket interface {
	View() app.View
	AddItem(ctx context.Context, req app.NewItem) (app.AddOutcome, error)
	ResolveConflict(ctx context.Context, choice app.Resolution) (*basket.Item, error)
	UpdateItem(ctx context.Context, id string, patch basket.Patch) (basket.Item, error)
	DeleteItem(ctx context.Context, id string) error
	OverrideStore(ctx context.Context, id string, store *catalog.Store) (basket.Item, error)
	ClearList(ctx context.Context)
	ImportURL(ctx context.Context, pageURL string) (app.ImportResult, error)
	Undo(ctx context.Context) bool
	SetMode(ctx context.Context, mode basket.Mode, store *catalog.Store) error
	SetLocation(ctx context.Context, location string)
	UseGPS(ctx context.Context, lat, lng float64) (string, error)
	SuggestLocations(ctx context.Context, partial string) ([]string, error)
	Varieties(ctx context.Context, name string) []string
	FrequentItems() []app.Suggestion
	HideSuggestion(ctx context.Context, name string)
	SetFamilyID(ctx context.Context, familyID string) (bool, error)
	JoinFamily(ctx context.Context, familyID, invite string) (bool, error)
	ShareLink() (string, error)
	Pull(ctx context.Context) (bool, error)
}

type addItemPayload struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Quantity   *float64 `json:"quantity" validate:"omitempty,gte=0.5"`
	Unit       string   `json:"unit" validate:"max=20"`
	IsPriority bool     `json:"isPriority"`
}

type resolvePayload struct {
	Resolution string `json:"resolution" validate:"required,oneof=update add cancel"`
}

type updateItemPayload struct {
	Name       *string  `json:"name" validate:"omitempty,max=100"`
	Quantity   *float64 `json:"quantity" validate:"omitempty,gte=0"`
	Unit       *string  `json:"unit" validate:"omitempty,max=20"`
	IsPriority *bool    `json:"isPriority"`
	IsBought   *bool    `json:"isBought"`
}

type overridePayload struct {
	Store *string `json:"store"`
}

type importPayload struct {
	URL string `json:"url" validate:"required,http_url"`
}

type modePayload struct {
	Mode  string  `json:"mode" validate:"required,oneof=CHEAPEST_OVERALL SINGLE_STORE"`
	Store *string `json:"store"`
}

type locationPayload struct {
	Location string `json:"location" validate:"max=200"`
}

type gpsPayload struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type familyPayload struct {
	FamilyID string `json:"familyId" validate:"max=64"`
}

type joinPayload struct {
	FamilyID string `json:"familyId" validate:"required_without=Link,max=64"`
	Invite   string `json:"invite"`
	Link     string `json:"link" validate:"required_without=FamilyID"`
}

type totalsResponse struct {
	Mode          basket.Mode      `json:"mode"`
	SelectedStore *catalog.Store   `json:"selectedStore"`
	Totals        basket.Totals    `json:"totals"`
	Progress      float64          `json:"progress"`
	Breakdown     basket.Breakdown `json:"breakdown"`
	CheapestStore catalog.Store    `json:"cheapestStore"`
}

type familyResponse struct {
	Pulled bool     `json:"pulled"`
	State  app.View `json:"state"`
}

func GetState(svc Basket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, svc.View())
	}
}

func AddItem(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload addItemPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		req := app.NewItem{Name: payload.Name, Quantity: 1, Unit: payload.Unit, IsPriority: payload.IsPriority}
		if payload.Quantity != nil {
			req.Quantity = *payload.Quantity
		}

		out, err := svc.AddItem(ctx, req)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		if out.Conflict != nil {
			WriteError(ctx, logg, w, apperr.New(apperr.CodeConflict, "an unbought item with this name is already on the list").WithDetails(out.Conflict))
			return
		}
		WriteSuccessStatus(w, http.StatusCreated, out.Item)
	}
}

func ResolveConflict(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload resolvePayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.ResolveConflict(ctx, app.Resolution(payload.Resolution))
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, map[string]any{"item": item})
	}
}

func UpdateItem(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload updateItemPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		patch := basket.Patch{
			Name:       payload.Name,
			Quantity:   payload.Quantity,
			Unit:       payload.Unit,
			IsPriority: payload.IsPriority,
			IsBought:   payload.IsBought,
		}
		if patch.Empty() {
			WriteError(ctx, logg, w, apperr.New(apperr.CodeValidation, "nothing to update"))
			return
		}

		item, err := svc.UpdateItem(ctx, chi.URLParam(r, "id"), patch)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, item)
	}
}

func DeleteItem(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := svc.DeleteItem(ctx, chi.URLParam(r, "id")); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func OverrideStore(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload overridePayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.OverrideStore(ctx, chi.URLParam(r, "id"), toStore(payload.Store))
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, item)
	}
}

func ClearList(svc Basket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ClearList(r.Context())
		WriteSuccess(w, svc.View())
	}
}

func ImportItems(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload importPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		res, err := svc.ImportURL(ctx, payload.URL)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, res)
	}
}

func Undo(svc Basket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		undone := svc.Undo(r.Context())
		WriteSuccess(w, map[string]any{"undone": undone, "state": svc.View()})
	}
}

func SetMode(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload modePayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SetMode(ctx, basket.Mode(payload.Mode), toStore(payload.Store)); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, totalsOf(svc.View()))
	}
}

func GetTotals(svc Basket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, totalsOf(svc.View()))
	}
}

func SetLocation(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload locationPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		svc.SetLocation(ctx, payload.Location)
		v := svc.View()
		WriteSuccess(w, map[string]any{"location": v.Location, "isGps": v.IsGps})
	}
}

func UseGPS(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload gpsPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		address, err := svc.UseGPS(ctx, *payload.Lat, *payload.Lng)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, map[string]any{"location": address, "isGps": true})
	}
}

// SuggestLocations answers a superseded query with an empty list so clients
// can drop it silently.
func SuggestLocations(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		suggestions, err := svc.SuggestLocations(ctx, r.URL.Query().Get("q"))
		switch {
		case errors.Is(err, app.ErrSuperseded):
			WriteSuccess(w, map[string]any{"suggestions": []string{}, "superseded": true})
		case err != nil:
			WriteError(ctx, logg, w, err)
		default:
			WriteSuccess(w, map[string]any{"suggestions": suggestions, "superseded": false})
		}
	}
}

func Varieties(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			WriteError(ctx, logg, w, apperr.New(apperr.CodeValidation, "query parameter is required").WithDetails(map[string]any{"field": "name"}))
			return
		}
		WriteSuccess(w, map[string]any{"varieties": svc.Varieties(ctx, name)})
	}
}

func FrequentItems(svc Basket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, svc.FrequentItems())
	}
}

func HideSuggestion(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil || strings.TrimSpace(name) == "" {
			WriteError(ctx, logg, w, apperr.New(apperr.CodeValidation, "invalid suggestion name"))
			return
		}
		svc.HideSuggestion(ctx, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func SetFamily(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload familyPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		pulled, err := svc.SetFamilyID(ctx, payload.FamilyID)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, familyResponse{Pulled: pulled, State: svc.View()})
	}
}

func JoinFamily(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload joinPayload
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(ctx, logg, w, err)
			return
		}

		familyID, invite := payload.FamilyID, payload.Invite
		if payload.Link != "" {
			var ok bool
			if familyID, invite, ok = share.ParseLink(payload.Link); !ok {
				WriteError(ctx, logg, w, apperr.New(apperr.CodeValidation, "link carries no family id"))
				return
			}
		}

		pulled, err := svc.JoinFamily(ctx, familyID, invite)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, familyResponse{Pulled: pulled, State: svc.View()})
	}
}

func ShareLink(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := svc.ShareLink()
		if err != nil {
			WriteError(r.Context(), logg, w, err)
			return
		}
		WriteSuccess(w, map[string]string{"link": link})
	}
}

func Pull(svc Basket, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pulled, err := svc.Pull(ctx)
		if err != nil {
			WriteError(ctx, logg, w, err)
			return
		}
		WriteSuccess(w, familyResponse{Pulled: pulled, State: svc.View()})
	}
}

func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func toStore(s *string) *catalog.Store {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	store := catalog.Store(strings.TrimSpace(*s))
	return &store
}

func totalsOf(v app.View) totalsResponse {
	cheapest, _ := v.Breakdown.CheapestStore()
	return totalsResponse{
		Mode:          v.Mode,
		SelectedStore: v.SelectedStore,
		Totals:        v.Totals,
		Progress:      v.Progress,
		Breakdown:     v.Breakdown,
		CheapestStore: cheapest,
	}
}
