// Package scrapers builds the configured marketplace adapters.
package scrapers

import (
	"fmt"
	"sort"
	"strings"

	"offer-hunter/pkg/aggregator"
	"offer-hunter/pkg/scrapers/amazon"
	"offer-hunter/pkg/scrapers/base"
	"offer-hunter/pkg/scrapers/croma"
	"offer-hunter/pkg/scrapers/flipkart"
	"offer-hunter/pkg/scrapers/reliance"
)

type factory func(base.Options) aggregator.Adapter

var registry = map[string]factory{
	"amazon":   func(o base.Options) aggregator.Adapter { return amazon.NewScraper(o) },
	"flipkart": func(o base.Options) aggregator.Adapter { return flipkart.NewScraper(o) },
	"croma":    func(o base.Options) aggregator.Adapter { return croma.NewScraper(o) },
	"reliance": func(o base.Options) aggregator.Adapter { return reliance.NewScraper(o) },
}

// Available lists the known source keys.
func Available() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build returns adapters in the order the names are given. Unknown or
// repeated names are configuration errors.
func Build(names []string, opts base.Options) ([]aggregator.Adapter, error) {
	adapters := make([]aggregator.Adapter, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		build, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("source %q not supported. Available: %s", raw, strings.Join(Available(), ", "))
		}
		if seen[name] {
			return nil, fmt.Errorf("source %q listed more than once", name)
		}
		seen[name] = true
		adapters = append(adapters, build(opts))
	}
	return adapters, nil
}
