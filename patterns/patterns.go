// Package patterns implements reusable multi-agent coordination topologies:
// parallel fan-out (Swarm, MapReduce, EventDriven), sequential handoff
// (Pipeline, ChainOfResponsibility), hierarchical decomposition
// (Hierarchical, Blackboard), voting (Jury), iterative refinement
// (Adversarial, GeneratorCritic), and failure-triggered fallback
// (CircuitBreaker).
//
// Every pattern is constructed with its role descriptions and policy
// parameters, validated synchronously at construction, and exposes a single
// entry operation taking the task-specific input. Agent handles are created
// lazily through an agent.Runtime and cached for as long as the pattern's
// topology needs conversational continuity.
package patterns

import (
	"context"
	"fmt"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// ErrorStrategy selects how a fan-out pattern reacts to a participant
// failure.
type ErrorStrategy string

const (
	// StopOnError cancels all sibling agents on the first failure.
	StopOnError ErrorStrategy = "stop"
	// ContinueOnError lets every agent run to completion; failed
	// participants contribute nothing to the aggregate.
	ContinueOnError ErrorStrategy = "continue"
)

// UnknownSpecialistError reports a decomposition entry referencing a
// specialist that was never declared. It is a configuration bug and is never
// retried.
type UnknownSpecialistError struct {
	Name     string
	Declared []string
}

func (e *UnknownSpecialistError) Error() string {
	return fmt.Sprintf("patterns: unknown specialist %q (declared: %v)", e.Name, e.Declared)
}

// NoHandlerError reports that no handler predicate matched the query.
// Callers are expected to register a catch-all fallback handler.
type NoHandlerError struct {
	Query string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("patterns: no handler could process the query: %q", e.Query)
}

// QuorumError reports that too few participants succeeded in a partial-mode
// execution.
type QuorumError struct {
	Succeeded int
	Required  int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("patterns: not enough successful participants: %d < %d", e.Succeeded, e.Required)
}

// spawn creates one agent for a pattern, counting it in telemetry.
func spawn(ctx context.Context, rt agent.Runtime, role, model string, info agent.PatternInfo) (agent.Agent, error) {
	a, err := rt.Spawn(ctx, agent.SpawnSpec{Role: role, Model: model, Pattern: info})
	if err != nil {
		return nil, fmt.Errorf("patterns: spawning %s %s: %w", info.Pattern, info.AgentRole, err)
	}
	telemetry.CountSpawn(info.Pattern, info.AgentRole)
	return a, nil
}
