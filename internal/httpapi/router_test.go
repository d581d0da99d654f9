package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"shared-basket/internal/app"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/familysync"
	"shared-basket/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct{}

func (stubOracle) GetPrices(ctx context.Context, itemName, location string) ([]basket.StorePrice, error) {
	return []basket.StorePrice{
		{Store: catalog.StoreShufersal, Price: decimal.NewFromInt(6)},
		{Store: catalog.StoreRamiLevy, Price: decimal.NewFromInt(5)},
	}, nil
}

func (stubOracle) SuggestLocations(ctx context.Context, partial string) []string {
	return []string{"הרצל 1, תל אביב"}
}

func (stubOracle) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	return "הרצל 1, תל אביב"
}

func (stubOracle) GetVarieties(ctx context.Context, name string) []string {
	return []string{name + " 3%", name + " 1%"}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	local, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	a := app.New(app.Options{
		Oracle: stubOracle{},
		Sync:   familysync.NewFacade(familysync.Options{Local: local}),
	})
	t.Cleanup(a.Close)

	return NewRouter(Deps{Basket: a})
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthLive(t *testing.T) {
	h := newTestRouter(t)
	rec, _ := do(t, h, http.MethodGet, "/health/live", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestItemsFlow(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/api/v1/items", map[string]any{"name": "חלב", "quantity": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created basket.Item
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "🥛", created.Emoji)

	rec, env = do(t, h, http.MethodPost, "/api/v1/items", map[string]any{"name": " חלב ", "quantity": 2})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok, "conflict details expected, got %v", env.Error.Details)
	assert.Equal(t, created.ID, details["existing"].(map[string]any)["id"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/items/conflict", map[string]any{"resolution": "update"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view app.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3.0, view.Items[0].Quantity)

	rec, _ = do(t, h, http.MethodPatch, "/api/v1/items/"+created.ID, map[string]any{"isBought": true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/api/v1/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var undo struct {
		Undone bool     `json:"undone"`
		State  app.View `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &undo))
	assert.True(t, undo.Undone)
	assert.Len(t, undo.State.Items, 1)
}

func TestValidationErrors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"MissingName", http.MethodPost, "/api/v1/items", map[string]any{"quantity": 1}, http.StatusBadRequest, "name"},
		{"QuantityTooSmall", http.MethodPost, "/api/v1/items", map[string]any{"name": "x", "quantity": 0.2}, http.StatusBadRequest, "quantity"},
		{"UnknownField", http.MethodPost, "/api/v1/items", map[string]any{"name": "x", "colour": "red"}, http.StatusBadRequest, ""},
		{"BadMode", http.MethodPut, "/api/v1/mode", map[string]any{"mode": "FASTEST"}, http.StatusBadRequest, "mode"},
		{"BadResolution", http.MethodPost, "/api/v1/items/conflict", map[string]any{"resolution": "merge"}, http.StatusBadRequest, "resolution"},
		{"GPSOutOfRange", http.MethodPost, "/api/v1/location/gps", map[string]any{"lat": 100, "lng": 0}, http.StatusBadRequest, "lat"},
		{"ImportNotURL", http.MethodPost, "/api/v1/items/import", map[string]any{"url": "not a url"}, http.StatusBadRequest, "url"},
		{"JoinWithoutFamily", http.MethodPost, "/api/v1/family/join", map[string]any{}, http.StatusBadRequest, "familyId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			if tt.field != "" {
				details, ok := env.Error.Details.(map[string]any)
				require.True(t, ok)
				assert.Contains(t, details, tt.field)
			}
		})
	}
}

func TestNotFoundAndUnavailable(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPatch, "/api/v1/items/missing", map[string]any{"isPriority": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/family/share", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/api/v1/items/import", map[string]any{"url": "https://example.com/recipe"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}

func TestTotalsAndMode(t *testing.T) {
	h := newTestRouter(t)

	rec, _ := do(t, h, http.MethodPost, "/api/v1/items", map[string]any{"name": "חלב"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPut, "/api/v1/mode", map[string]any{"mode": "SINGLE_STORE", "store": "שופרסל"})
	require.Equal(t, http.StatusOK, rec.Code)

	var totals struct {
		Mode          string        `json:"mode"`
		SelectedStore string        `json:"selectedStore"`
		CheapestStore string        `json:"cheapestStore"`
		Totals        basket.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &totals))
	assert.Equal(t, "SINGLE_STORE", totals.Mode)
	assert.Equal(t, "שופרסל", totals.SelectedStore)
	assert.Equal(t, "רמי לוי", totals.CheapestStore)
}

func TestSuggestionsAndVarieties(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/varieties?name="+url.QueryEscape("חלב"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "חלב 3%")

	rec, _ = do(t, h, http.MethodGet, "/api/v1/varieties", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/location/suggest?q="+url.QueryEscape("הרצ"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "הרצל 1")

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/suggestions/"+url.PathEscape("לחם"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Equal(t, "internal server error", env.Error.Message)
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}
