// Package handoff provides the structured state object passed between
// sequential pattern stages: current context, the next instruction, produced
// artifacts, arbitrary metadata, and the history of agent-to-agent handoffs.
package handoff

import "maps"

// Hop records one agent-to-agent handoff.
type Hop struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// State is the transfer object threaded through pipelines and refinement
// loops. A single State flows linearly through sequential stages; it must
// never be shared between concurrently running branches without an explicit
// Merge.
type State struct {
	Context         string         `json:"context" yaml:"context"`
	NextInstruction string         `json:"next_instruction" yaml:"next_instruction"`
	Artifacts       map[string]any `json:"artifacts" yaml:"artifacts"`
	Metadata        map[string]any `json:"metadata" yaml:"metadata"`

	chain []Hop
}

// New creates a State with the given context and next instruction.
func New(context, nextInstruction string) *State {
	return &State{
		Context:         context,
		NextInstruction: nextInstruction,
		Artifacts:       make(map[string]any),
		Metadata:        make(map[string]any),
	}
}

// AddArtifact stores a produced artifact under key.
func (s *State) AddArtifact(key string, value any) {
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]any)
	}
	s.Artifacts[key] = value
}

// ClearArtifacts drops all artifacts, preserving the rest of the state.
func (s *State) ClearArtifacts() {
	s.Artifacts = make(map[string]any)
}

// RecordHandoff appends a from→to hop to the handoff chain.
func (s *State) RecordHandoff(from, to string) {
	s.chain = append(s.chain, Hop{From: from, To: to})
}

// Chain returns a copy of the handoff history.
func (s *State) Chain() []Hop {
	out := make([]Hop, len(s.chain))
	copy(out, s.chain)
	return out
}

// Merge combines s with a later state into a new State, leaving both inputs
// untouched. The later state wins on Context and NextInstruction and on any
// artifact or metadata key collision; handoff chains concatenate in order.
func (s *State) Merge(other *State) *State {
	merged := &State{
		Context:         other.Context,
		NextInstruction: other.NextInstruction,
		Artifacts:       make(map[string]any, len(s.Artifacts)+len(other.Artifacts)),
		Metadata:        make(map[string]any, len(s.Metadata)+len(other.Metadata)),
		chain:           make([]Hop, 0, len(s.chain)+len(other.chain)),
	}
	maps.Copy(merged.Artifacts, s.Artifacts)
	maps.Copy(merged.Artifacts, other.Artifacts)
	maps.Copy(merged.Metadata, s.Metadata)
	maps.Copy(merged.Metadata, other.Metadata)
	merged.chain = append(merged.chain, s.chain...)
	merged.chain = append(merged.chain, other.chain...)
	return merged
}

// Clone returns a shallow copy of the state with its own maps and chain,
// for branches that need an isolated input.
func (s *State) Clone() *State {
	c := &State{
		Context:         s.Context,
		NextInstruction: s.NextInstruction,
		Artifacts:       make(map[string]any, len(s.Artifacts)),
		Metadata:        make(map[string]any, len(s.Metadata)),
		chain:           make([]Hop, len(s.chain)),
	}
	maps.Copy(c.Artifacts, s.Artifacts)
	maps.Copy(c.Metadata, s.Metadata)
	copy(c.chain, s.chain)
	return c
}
