package oracle

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/llm"
	"shared-basket/internal/logger"
	"shared-basket/internal/pricecache"
	"shared-basket/internal/shared"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

//go:embed prices_prompt.md
var pricesPrompt string

//go:embed locations_prompt.md
var locationsPrompt string

//go:embed geocode_prompt.md
var geocodePrompt string

//go:embed varieties_prompt.md
var varietiesPrompt string

var funcs = template.FuncMap{"join": strings.Join}

var (
	pricesTmpl    = template.Must(template.New("prices").Funcs(funcs).Parse(pricesPrompt))
	locationsTmpl = template.Must(template.New("locations").Parse(locationsPrompt))
	geocodeTmpl   = template.Must(template.New("geocode").Parse(geocodePrompt))
	varietiesTmpl = template.Must(template.New("varieties").Parse(varietiesPrompt))
)

const (
	AgentPrices     = "PriceOracle"
	AgentLocations  = "LocationSuggester"
	AgentGeocoder   = "ReverseGeocoder"
	AgentVarieties  = "VarietyResolver"

	// MaxSuggestions caps address completions.
	MaxSuggestions = 5
	// MinQueryLength is the shortest partial address worth completing.
	MinQueryLength = 2
	// PriceLookupTimeout bounds a shared price lookup; past it the
	// synthetic quotes are used.
	PriceLookupTimeout = 45 * time.Second

	fallbackBranch = "סניף קרוב"
	fallbackStores = 3
)

// Recorder receives one entry per model call.
type Recorder interface {
	RecordCall(ctx context.Context, meta shared.AgentMeta, outcome string)
}

// Oracle wraps a text generator with the pricing and location prompts. Every
// method degrades to a documented fallback instead of failing.
type Oracle struct {
	gen      llm.TextGenerator
	recorder Recorder
	log      *logger.Logger
	group    singleflight.Group
	intn     func(int) int
}

type Option func(*Oracle)

func WithRecorder(r Recorder) Option {
	return func(o *Oracle) { o.recorder = r }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Oracle) { o.log = l }
}

// WithRand replaces the source for synthetic fallback prices.
func WithRand(intn func(int) int) Option {
	return func(o *Oracle) { o.intn = intn }
}

func New(gen llm.TextGenerator, opts ...Option) *Oracle {
	o := &Oracle{gen: gen, log: logger.Nop(), intn: rand.IntN}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type pricesPromptData struct {
	Item     string
	Location string
	Stores   []string
}

// GetPrices returns quotes for itemName near location. Records for unknown
// stores or with non-positive prices are dropped. Any failure yields
// synthetic quotes; the only error returned is the context's.
//
// Concurrent lookups for the same key share one model call. That call is
// detached from the caller that started it, so cancelling one waiter never
// hands fallback quotes to the others.
func (o *Oracle) GetPrices(ctx context.Context, itemName, location string) ([]basket.StorePrice, error) {
	ch := o.group.DoChan(pricecache.Key(itemName, location), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PriceLookupTimeout)
		defer cancel()
		return o.fetchPrices(lookupCtx, itemName, location), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return cloneQuotes(res.Val.([]basket.StorePrice)), nil
	}
}

func (o *Oracle) fetchPrices(ctx context.Context, itemName, location string) []basket.StorePrice {
	stores := make([]string, len(catalog.Stores))
	for i, s := range catalog.Stores {
		stores[i] = string(s)
	}

	var records []basket.StorePrice
	err := o.call(ctx, AgentPrices, pricesTmpl, pricesPromptData{
		Item:     itemName,
		Location: location,
		Stores:   stores,
	}, "prices", &records)
	if err != nil {
		ctx = o.log.WithFields(ctx, map[string]any{"item": itemName, "location": location})
		o.log.Warn(ctx, "oracle.prices_fallback", err)
		return o.fallbackPrices()
	}

	quotes := make([]basket.StorePrice, 0, len(records))
	for _, p := range records {
		if !p.Store.IsKnown() || !p.Price.IsPositive() {
			continue
		}
		quotes = append(quotes, p)
	}
	return quotes
}

func (o *Oracle) fallbackPrices() []basket.StorePrice {
	quotes := make([]basket.StorePrice, 0, fallbackStores)
	for _, s := range catalog.Stores[:fallbackStores] {
		quotes = append(quotes, basket.StorePrice{
			Store:      s,
			BranchName: fallbackBranch,
			Price:      decimal.NewFromInt(int64(o.intn(15) + 5)),
		})
	}
	return quotes
}

type locationsPromptData struct {
	Query string
	Limit int
}

// SuggestLocations completes a partial address. Inputs shorter than
// MinQueryLength and failures both yield no suggestions.
func (o *Oracle) SuggestLocations(ctx context.Context, partial string) []string {
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < MinQueryLength {
		return nil
	}

	var suggestions []string
	err := o.call(ctx, AgentLocations, locationsTmpl, locationsPromptData{Query: partial, Limit: MaxSuggestions}, "suggestions", &suggestions)
	if err != nil {
		o.log.Warn(o.log.WithField(ctx, "query", partial), "oracle.suggest_failed", err)
		return nil
	}
	suggestions = nonEmpty(suggestions)
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}

type geocodePromptData struct {
	Lat, Lng float64
}

// ReverseGeocode turns coordinates into "street, city"; on failure it
// returns a coordinate label.
func (o *Oracle) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	var address string
	err := o.call(ctx, AgentGeocoder, geocodeTmpl, geocodePromptData{Lat: lat, Lng: lng}, "address", &address)
	if err == nil {
		if address = strings.TrimSpace(address); address != "" {
			return address
		}
		err = fmt.Errorf("empty address")
	}
	o.log.Warn(o.log.WithFields(ctx, map[string]any{"lat": lat, "lng": lng}), "oracle.geocode_fallback", err)
	return CoordinateLabel(lat, lng)
}

// CoordinateLabel is the display text for a position without an address.
func CoordinateLabel(lat, lng float64) string {
	return fmt.Sprintf("מיקום (%.2f, %.2f)", lat, lng)
}

type varietiesPromptData struct {
	Item string
}

// GetVarieties proposes specific products for a generic single-word name.
func (o *Oracle) GetVarieties(ctx context.Context, name string) []string {
	if len(strings.Fields(name)) != 1 {
		return nil
	}

	var varieties []string
	if err := o.call(ctx, AgentVarieties, varietiesTmpl, varietiesPromptData{Item: strings.TrimSpace(name)}, "varieties", &varieties); err != nil {
		o.log.Warn(o.log.WithField(ctx, "item", name), "oracle.varieties_failed", err)
		return nil
	}
	return nonEmpty(varieties)
}

// call renders the prompt, runs the model and decodes the field named key of
// the returned object into dest. A bare value in place of the object is
// accepted as well.
func (o *Oracle) call(ctx context.Context, agent string, tmpl *template.Template, data any, key string, dest any) error {
	start := time.Now()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s prompt: %w", agent, err)
	}

	resp, err := o.gen.GenerateContent(ctx, buf.String())
	meta := shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: time.Since(start)}
	if err == nil {
		err = decodeField(resp.Content, key, dest)
	}

	if o.recorder != nil {
		o.recorder.RecordCall(ctx, meta, shared.Outcome(err))
	}
	return err
}

func decodeField(content, key string, dest any) error {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(content), &obj); err != nil {
			return fmt.Errorf("failed to parse response: %w. Response: %s", err, content)
		}
		raw, ok := obj[key]
		if !ok {
			return fmt.Errorf("response has no %q field. Response: %s", key, content)
		}
		content = string(raw)
	}
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return fmt.Errorf("failed to parse %q: %w. Response: %s", key, err, content)
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cloneQuotes(in []basket.StorePrice) []basket.StorePrice {
	out := make([]basket.StorePrice, len(in))
	copy(out, in)
	return out
}
