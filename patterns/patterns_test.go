package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hivekit-dev/hivekit/agent"
)

// stubRuntime hands out canned agents and records every spawn spec so tests
// can assert on pattern correlation info.
type stubRuntime struct {
	mu     sync.Mutex
	spawns []agent.SpawnSpec

	// handle builds the agent for a spawn. Defaults to an agent that echoes
	// the prompt.
	handle func(spec agent.SpawnSpec) agent.Agent
}

func (r *stubRuntime) Spawn(ctx context.Context, spec agent.SpawnSpec) (agent.Agent, error) {
	r.mu.Lock()
	r.spawns = append(r.spawns, spec)
	r.mu.Unlock()
	if r.handle == nil {
		return respond("echo"), nil
	}
	return r.handle(spec), nil
}

func (r *stubRuntime) spawned() []agent.SpawnSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]agent.SpawnSpec, len(r.spawns))
	copy(out, r.spawns)
	return out
}

// respond builds an agent that always answers with v, decoded into whatever
// shape the caller asked for.
func respond(v any) agent.AgentFunc {
	return func(ctx context.Context, prompt string, out any) error {
		return decodeInto(v, out)
	}
}

// respondf builds an agent that computes its answer from the prompt.
func respondf(fn func(prompt string) any) agent.AgentFunc {
	return func(ctx context.Context, prompt string, out any) error {
		return decodeInto(fn(prompt), out)
	}
}

// failWith builds an agent that always fails.
func failWith(err error) agent.AgentFunc {
	return func(ctx context.Context, prompt string, out any) error {
		return err
	}
}

func decodeInto(v any, out any) error {
	if sp, ok := out.(*string); ok {
		*sp = fmt.Sprint(v)
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
