// Package cost estimates the USD price of a completion from token counts.
//
// Prices are per million tokens, split into input (prompt) and output
// (completion). Models missing from a table are priced with the table's
// fallback entry rather than being reported as free.
package cost

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadyConfigured is returned by [Configure] once the default table has
// been built.
var ErrAlreadyConfigured = errors.New("cost: default table already initialised")

// PriceEntry is the price of one model in USD per million tokens.
type PriceEntry struct {
	Model            string  `yaml:"model"`
	InputPerMillion  float64 `yaml:"input"`
	OutputPerMillion float64 `yaml:"output"`
}

// Table maps model identifiers to prices. A Table is immutable after
// construction and safe for concurrent use.
type Table struct {
	entries  map[string]PriceEntry
	fallback PriceEntry
}

// NewTable builds a table from entries. Later entries override earlier ones
// with the same model.
func NewTable(entries []PriceEntry, fallback PriceEntry) (*Table, error) {
	t := &Table{entries: make(map[string]PriceEntry, len(entries)), fallback: fallback}
	if fallback.InputPerMillion < 0 || fallback.OutputPerMillion < 0 {
		return nil, fmt.Errorf("cost: fallback price must not be negative")
	}
	for i, e := range entries {
		if e.Model == "" {
			return nil, fmt.Errorf("cost: entry %d: model must not be empty", i)
		}
		if e.InputPerMillion < 0 || e.OutputPerMillion < 0 {
			return nil, fmt.Errorf("cost: entry %q: price must not be negative", e.Model)
		}
		t.entries[e.Model] = e
	}
	return t, nil
}

// Lookup returns the entry for model and whether it was found.
func (t *Table) Lookup(model string) (PriceEntry, bool) {
	e, ok := t.entries[model]
	return e, ok
}

// Price returns the entry for model, or the fallback entry.
func (t *Table) Price(model string) PriceEntry {
	if e, ok := t.entries[model]; ok {
		return e
	}
	fb := t.fallback
	fb.Model = model
	return fb
}

// Fallback returns the entry used for unknown models.
func (t *Table) Fallback() PriceEntry { return t.fallback }

// Models returns the priced model identifiers in lexical order.
func (t *Table) Models() []string {
	out := make([]string, 0, len(t.entries))
	for m := range t.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Estimate returns the USD cost of a completion with the given token counts.
func (t *Table) Estimate(model string, inputTokens, outputTokens int) float64 {
	p := t.Price(model)
	return float64(inputTokens)/1e6*p.InputPerMillion + float64(outputTokens)/1e6*p.OutputPerMillion
}

// DefaultFallback prices models missing from the built-in table.
var DefaultFallback = PriceEntry{InputPerMillion: 1.0, OutputPerMillion: 2.0}

// builtin lists list prices of commonly routed models.
var builtin = []PriceEntry{
	{Model: "openai/gpt-4o", InputPerMillion: 2.50, OutputPerMillion: 10.00},
	{Model: "openai/gpt-4o-mini", InputPerMillion: 0.15, OutputPerMillion: 0.60},
	{Model: "openai/gpt-4-turbo", InputPerMillion: 10.00, OutputPerMillion: 30.00},
	{Model: "openai/gpt-3.5-turbo", InputPerMillion: 0.50, OutputPerMillion: 1.50},
	{Model: "anthropic/claude-3.5-sonnet", InputPerMillion: 3.00, OutputPerMillion: 15.00},
	{Model: "anthropic/claude-3-haiku", InputPerMillion: 0.25, OutputPerMillion: 1.25},
	{Model: "anthropic/claude-3-opus", InputPerMillion: 15.00, OutputPerMillion: 75.00},
	{Model: "google/gemini-pro-1.5", InputPerMillion: 1.25, OutputPerMillion: 5.00},
	{Model: "google/gemini-flash-1.5", InputPerMillion: 0.075, OutputPerMillion: 0.30},
	{Model: "meta-llama/llama-3.1-70b-instruct", InputPerMillion: 0.35, OutputPerMillion: 0.40},
	{Model: "meta-llama/llama-3.1-8b-instruct", InputPerMillion: 0.05, OutputPerMillion: 0.05},
	{Model: "mistralai/mistral-large", InputPerMillion: 2.00, OutputPerMillion: 6.00},
	{Model: "text-embedding-ada-002", InputPerMillion: 0.10, OutputPerMillion: 0},
}

// Builtin returns a copy of the built-in price list.
func Builtin() []PriceEntry {
	return append([]PriceEntry(nil), builtin...)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table

	overrideMu       sync.Mutex
	overrideEntries  []PriceEntry
	overrideFallback *PriceEntry
)

// Configure replaces the prices of the default table. Entries are merged on
// top of the built-in list; a nil fallback keeps [DefaultFallback]. It must
// be called before the first use of [Default] or [Estimate].
func Configure(entries []PriceEntry, fallback *PriceEntry) error {
	overrideMu.Lock()
	defer overrideMu.Unlock()
	if defaultTable != nil {
		return ErrAlreadyConfigured
	}
	// Validate now so a bad override cannot poison the lazily built table.
	fb := DefaultFallback
	if fallback != nil {
		fb = *fallback
	}
	if _, err := NewTable(append(append([]PriceEntry(nil), builtin...), entries...), fb); err != nil {
		return err
	}
	overrideEntries = append([]PriceEntry(nil), entries...)
	overrideFallback = &fb
	return nil
}

// Default returns the process-wide table, building it on first use.
func Default() *Table {
	defaultOnce.Do(func() {
		overrideMu.Lock()
		defer overrideMu.Unlock()
		fb := DefaultFallback
		if overrideFallback != nil {
			fb = *overrideFallback
		}
		entries := append(append([]PriceEntry(nil), builtin...), overrideEntries...)
		t, err := NewTable(entries, fb)
		if err != nil {
			// Configure validated the overrides and the built-ins are static.
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Estimate prices a completion with the default table.
func Estimate(model string, inputTokens, outputTokens int) float64 {
	return Default().Estimate(model, inputTokens, outputTokens)
}
