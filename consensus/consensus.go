// Package consensus decides a single winning vote from many under majority,
// unanimous, or percentage-threshold rules, with optional per-vote weights
// and key extraction for structured votes.
package consensus

import (
	"fmt"
	"reflect"
	"strings"
)

// Mode selects the voting rule.
type Mode string

const (
	// Majority picks the key with the highest weighted tally; ties resolve
	// to the earliest occurrence among the tied candidates.
	Majority Mode = "majority"
	// Unanimous requires every vote to reduce to the same key.
	Unanimous Mode = "unanimous"
	// Threshold requires the leading key's weight share to reach a
	// configured fraction of the total weight.
	Threshold Mode = "threshold"
)

// NotReachedError reports that the votes did not satisfy the configured rule.
// It is always recoverable: callers may fall back to Majority or escalate.
type NotReachedError struct {
	Mode      Mode
	Votes     []string // string forms of the distinct keys seen
	Share     float64  // leading weight share (Threshold mode)
	Threshold float64  // required share (Threshold mode)
}

func (e *NotReachedError) Error() string {
	if e.Mode == Threshold {
		return fmt.Sprintf("consensus: threshold not met: %.1f%% < %.1f%%", e.Share*100, e.Threshold*100)
	}
	return fmt.Sprintf("consensus: unanimous consensus not reached, votes: %s", strings.Join(e.Votes, ", "))
}

// KeyFunc extracts a comparable key from a vote. The key is only used for
// tallying; Decide always returns the original vote object.
type KeyFunc func(vote any) any

// Consensus is a reusable voting rule. The zero value is not usable; build
// one with New.
type Consensus struct {
	mode      Mode
	threshold float64
	key       KeyFunc
}

// Option configures a Consensus.
type Option func(*Consensus)

// WithKey sets the key extraction applied to every vote before tallying.
func WithKey(key KeyFunc) Option {
	return func(c *Consensus) { c.key = key }
}

// New builds a Consensus for the given mode. Threshold mode requires a
// threshold in [0, 1]; it is validated here, at construction time.
func New(mode Mode, threshold float64, opts ...Option) (*Consensus, error) {
	switch mode {
	case Majority, Unanimous:
	case Threshold:
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("consensus: threshold must be between 0 and 1, got %v", threshold)
		}
	default:
		return nil, fmt.Errorf("consensus: unknown mode %q", mode)
	}
	c := &Consensus{mode: mode, threshold: threshold}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mode reports the configured voting rule.
func (c *Consensus) Mode() Mode { return c.mode }

type tally struct {
	weight   float64
	firstIdx int
}

// Decide returns the winning vote. weights may be nil (every vote counts
// 1.0); otherwise it must match votes in length with no negative entries.
// The returned value is the original vote at the winning position, so
// structured payloads survive voting intact.
func (c *Consensus) Decide(votes []any, weights []float64) (any, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("consensus: votes cannot be empty")
	}
	if weights == nil {
		weights = make([]float64, len(votes))
		for i := range weights {
			weights[i] = 1.0
		}
	}
	if len(weights) != len(votes) {
		return nil, fmt.Errorf("consensus: %d weights for %d votes", len(weights), len(votes))
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("consensus: weights cannot be negative, got %v", w)
		}
		total += w
	}

	keys := make([]any, len(votes))
	for i, v := range votes {
		k := v
		if c.key != nil {
			k = c.key(v)
		}
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, fmt.Errorf("consensus: vote of type %T is not comparable; supply a key function", k)
		}
		keys[i] = k
	}

	counts := make(map[any]*tally)
	var order []any // distinct keys in first-occurrence order
	for i, k := range keys {
		t, ok := counts[k]
		if !ok {
			t = &tally{firstIdx: i}
			counts[k] = t
			order = append(order, k)
		}
		t.weight += weights[i]
	}

	switch c.mode {
	case Majority:
		return votes[c.winnerIdx(counts, order)], nil
	case Unanimous:
		if len(counts) > 1 {
			return nil, &NotReachedError{Mode: Unanimous, Votes: keyStrings(order)}
		}
		return votes[0], nil
	case Threshold:
		winner := c.winnerIdx(counts, order)
		share := 0.0
		if total > 0 {
			share = counts[keys[winner]].weight / total
		}
		if share < c.threshold {
			return nil, &NotReachedError{Mode: Threshold, Votes: keyStrings(order), Share: share, Threshold: c.threshold}
		}
		return votes[winner], nil
	}
	return nil, fmt.Errorf("consensus: unknown mode %q", c.mode)
}

// winnerIdx returns the index of the first vote whose key has the maximum
// weighted tally, breaking ties by earliest occurrence.
func (c *Consensus) winnerIdx(counts map[any]*tally, order []any) int {
	best := counts[order[0]]
	for _, k := range order[1:] {
		if t := counts[k]; t.weight > best.weight {
			best = t
		}
	}
	return best.firstIdx
}

func keyStrings(order []any) []string {
	out := make([]string, len(order))
	for i, k := range order {
		out[i] = fmt.Sprint(k)
	}
	return out
}
