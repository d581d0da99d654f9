package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"text/template"
	"time"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/llm"
	"shared-basket/internal/shared"

	"github.com/PuerkitoBio/goquery"
)

//go:embed extract_prompt.md
var extractPrompt string

var extractTmpl = template.Must(template.New("extract").Funcs(template.FuncMap{"join": strings.Join}).Parse(extractPrompt))

const (
	AgentName = "ListImporter"
	// maxContentRunes keeps prompts within the model's context window.
	maxContentRunes = 20000
)

// ExtractedItem is one grocery line found on a page.
type ExtractedItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Importer turns a web page into grocery items.
type Importer struct {
	textGen    llm.TextGenerator
	httpClient *http.Client
}

// New creates a new Importer instance.
func New(textGen llm.TextGenerator) *Importer {
	return &Importer{
		textGen:    textGen,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type extractPromptData struct {
	Content string
	Units   []string
}

// ImportURL fetches the page, asks the model for its groceries and merges
// repeated names.
func (i *Importer) ImportURL(ctx context.Context, pageURL string) ([]ExtractedItem, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: AgentName}

	content, err := i.fetchAndCleanHTML(ctx, pageURL)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to fetch content: %w", err)
	}

	var buf bytes.Buffer
	if err := extractTmpl.Execute(&buf, extractPromptData{Content: content, Units: catalog.Units}); err != nil {
		return nil, meta, fmt.Errorf("failed to render prompt: %w", err)
	}

	resp, err := i.textGen.GenerateContent(ctx, buf.String())
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, fmt.Errorf("ai extraction failed: %w", err)
	}

	var extracted struct {
		Items []ExtractedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &extracted); err != nil {
		return nil, meta, fmt.Errorf("failed to parse AI response: %w. Response: %s", err, resp.Content)
	}

	return Merge(extracted.Items), meta, nil
}

func (i *Importer) fetchAndCleanHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, header, iframe, noscript, svg, form, .ads, #ads").Remove()

	var sb strings.Builder
	doc.Find("h1, h2, h3, p, li, td").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
	})
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}

	if runes := []rune(text); len(runes) > maxContentRunes {
		text = string(runes[:maxContentRunes])
	}
	return text, nil
}

// Merge drops blank names, sums quantities of repeated names and normalizes
// quantities and units to what the list accepts. Order of first appearance
// is kept.
func Merge(items []ExtractedItem) []ExtractedItem {
	var out []ExtractedItem
	index := map[string]int{}
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		it.Quantity = normalizeQuantity(it.Quantity)
		if !slices.Contains(catalog.Units, it.Unit) {
			it.Unit = catalog.DefaultUnit
		}

		key := catalog.NormalizeName(it.Name)
		if pos, ok := index[key]; ok {
			out[pos].Quantity += it.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}

// normalizeQuantity rounds up to the next half unit; unusable values become 1.
func normalizeQuantity(q float64) float64 {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return 1
	}
	return math.Ceil(q/basket.MinQuantity) * basket.MinQuantity
}
