// Package aggregate combines heterogeneous agent outputs into one value under
// merge, concatenate, or best-of-score rules.
package aggregate

import (
	"fmt"
	"reflect"
	"strings"
)

// Mode selects the combination rule.
type Mode string

const (
	// Merge shallow-merges mappings (later wins) or concatenates sequences.
	Merge Mode = "merge"
	// Concat stringifies every result and joins with the separator.
	Concat Mode = "concat"
	// Best picks the highest-scoring record.
	Best Mode = "best"
)

// TypeError reports inputs whose shapes cannot be combined under the
// configured mode. It is always a caller/data bug, never retried.
type TypeError struct {
	Mode  Mode
	Types []string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("aggregate: cannot %s incompatible types: %s", e.Mode, strings.Join(e.Types, ", "))
}

// Aggregator combines a list of results into one value. The zero value is
// not usable; build one with New.
type Aggregator struct {
	mode        Mode
	separator   string
	deduplicate bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSeparator sets the join separator for Concat mode. Default " ".
func WithSeparator(sep string) Option {
	return func(a *Aggregator) { a.separator = sep }
}

// WithDeduplicate removes duplicates in Merge (sequences) and Concat modes,
// preserving first-seen order.
func WithDeduplicate() Option {
	return func(a *Aggregator) { a.deduplicate = true }
}

// New builds an Aggregator for the given mode.
func New(mode Mode, opts ...Option) (*Aggregator, error) {
	switch mode {
	case Merge, Concat, Best:
	default:
		return nil, fmt.Errorf("aggregate: unknown mode %q", mode)
	}
	a := &Aggregator{mode: mode, separator: " "}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Mode reports the configured combination rule.
func (a *Aggregator) Mode() Mode { return a.mode }

// Aggregate combines results into one value. Nil entries are filtered first;
// an input that is empty after filtering is an error. A single surviving
// result is returned unchanged regardless of mode.
func (a *Aggregator) Aggregate(results []any) (any, error) {
	filtered := make([]any, 0, len(results))
	for _, r := range results {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("aggregate: no results to aggregate")
	}
	if len(filtered) == 1 {
		return filtered[0], nil
	}

	switch a.mode {
	case Merge:
		return a.merge(filtered)
	case Concat:
		return a.concat(filtered), nil
	case Best:
		return a.best(filtered)
	}
	return nil, fmt.Errorf("aggregate: unknown mode %q", a.mode)
}

func (a *Aggregator) merge(results []any) (any, error) {
	if allMaps(results) {
		merged := make(map[string]any)
		for _, r := range results {
			for k, v := range r.(map[string]any) {
				merged[k] = v
			}
		}
		return merged, nil
	}

	if allSlices(results) {
		var merged []any
		for _, r := range results {
			merged = append(merged, r.([]any)...)
		}
		if a.deduplicate {
			return dedupe(merged), nil
		}
		return merged, nil
	}

	return nil, &TypeError{Mode: Merge, Types: typeNames(results)}
}

func (a *Aggregator) concat(results []any) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprint(r)
	}

	if a.deduplicate {
		seen := make(map[string]struct{})
		var words []string
		for _, part := range parts {
			for _, word := range strings.Fields(part) {
				if _, ok := seen[word]; !ok {
					seen[word] = struct{}{}
					words = append(words, word)
				}
			}
		}
		return strings.Join(words, " ")
	}

	return strings.Join(parts, a.separator)
}

func (a *Aggregator) best(results []any) (any, error) {
	if !allMaps(results) {
		return nil, &TypeError{Mode: Best, Types: typeNames(results)}
	}

	bestIdx := -1
	bestScore := 0.0
	for i, r := range results {
		m := r.(map[string]any)
		raw, ok := m["score"]
		if !ok {
			return nil, fmt.Errorf("aggregate: best mode requires a %q field on every result", "score")
		}
		score, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("aggregate: best mode requires a numeric score, got %T", raw)
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	winner := results[bestIdx].(map[string]any)
	if inner, ok := winner["result"]; ok {
		return inner, nil
	}
	return winner, nil
}

func allMaps(results []any) bool {
	for _, r := range results {
		if _, ok := r.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func allSlices(results []any) bool {
	for _, r := range results {
		if _, ok := r.([]any); !ok {
			return false
		}
	}
	return true
}

// dedupe removes duplicates preserving first-seen order. Non-comparable
// items are kept as-is.
func dedupe(items []any) []any {
	seen := make(map[any]struct{})
	out := make([]any, 0, len(items))
	for _, item := range items {
		if item != nil && !reflect.TypeOf(item).Comparable() {
			out = append(out, item)
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func typeNames(results []any) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = fmt.Sprintf("%T", r)
	}
	return names
}
