package httpapi

import (
	"net/http"

	"shared-basket/internal/logger"

	"github.com/go-chi/chi/v5"
)

// Deps are the handlers' collaborators. Metrics and Telegram are mounted
// only when set.
type Deps struct {
	Basket   Basket
	Logger   *logger.Logger
	Metrics  http.Handler
	Telegram http.Handler
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	svc := d.Basket

	r := chi.NewRouter()
	r.Use(
		Recoverer(logg),
		RequestID(logg),
		Logging(logg),
	)

	r.Get("/health/live", HealthLive())
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.Telegram != nil {
		r.Post("/telegram/webhook", d.Telegram.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", GetState(svc))
		r.Get("/totals", GetTotals(svc))
		r.Post("/undo", Undo(svc))
		r.Put("/mode", SetMode(svc, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", AddItem(svc, logg))
			r.Delete("/", ClearList(svc))
			r.Post("/conflict", ResolveConflict(svc, logg))
			r.Post("/import", ImportItems(svc, logg))
			r.Patch("/{id}", UpdateItem(svc, logg))
			r.Delete("/{id}", DeleteItem(svc, logg))
			r.Put("/{id}/store", OverrideStore(svc, logg))
		})

		r.Route("/location", func(r chi.Router) {
			r.Put("/", SetLocation(svc, logg))
			r.Post("/gps", UseGPS(svc, logg))
			r.Get("/suggest", SuggestLocations(svc, logg))
		})

		r.Get("/varieties", Varieties(svc, logg))
		r.Get("/suggestions", FrequentItems(svc))
		r.Delete("/suggestions/{name}", HideSuggestion(svc, logg))

		r.Route("/family", func(r chi.Router) {
			r.Put("/", SetFamily(svc, logg))
			r.Get("/share", ShareLink(svc, logg))
			r.Post("/join", JoinFamily(svc, logg))
		})
		r.Post("/sync/pull", Pull(svc, logg))
	})

	return r
}
