package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/tailscale/hujson"
)

// Overrides is the shape of the optional catalog file. The file is HuJSON, so
// households can keep comments next to their fee tweaks.
type Overrides struct {
	ShippingFees map[Store]decimal.Decimal `json:"shipping_fees"`
	ExtraRules   []KeywordRule             `json:"extra_rules"`
}

// LoadOverrides reads and applies a catalog override file. Extra rules are
// evaluated before the built-in ones. It must be called before serving.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	var o Overrides
	if err := json.Unmarshal(std, &o); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file %s: %w", path, err)
	}

	if err := o.Apply(); err != nil {
		return nil, err
	}
	return &o, nil
}

// Apply merges the overrides into the package tables. Nothing is changed
// unless the whole file is valid.
func (o *Overrides) Apply() error {
	for store, fee := range o.ShippingFees {
		if !store.IsKnown() {
			return fmt.Errorf("unknown store in shipping fees: %q", store)
		}
		if fee.IsNegative() {
			return fmt.Errorf("negative shipping fee for %s", store)
		}
	}

	extra := make([]KeywordRule, 0, len(o.ExtraRules))
	for i, r := range o.ExtraRules {
		if r.Emoji == "" {
			return fmt.Errorf("extra rule %d has no emoji", i)
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = NormalizeName(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return fmt.Errorf("extra rule %d (%s) has no keywords", i, r.Emoji)
		}
		extra = append(extra, KeywordRule{Keywords: keywords, Emoji: r.Emoji})
	}

	for store, fee := range o.ShippingFees {
		shippingFees[store] = fee
	}
	if len(extra) > 0 {
		rules = append(extra, rules...)
	}
	return nil
}
