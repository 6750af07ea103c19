package agent

import "context"

// Agent is an opaque handle to one LLM-backed worker, bound to a single role
// description at spawn time. External packages implement this interface for
// custom runtimes; pattern orchestrators only ever call Invoke.
type Agent interface {
	// Invoke prompts the agent and decodes its reply into out, which must be
	// a non-nil pointer. The dynamic type of *out defines the expected result
	// shape: *string for free text, *map[string]any for structured records,
	// *bool for verdicts, and so on. Invoke may be slow and may fail; callers
	// apply no retry of their own.
	Invoke(ctx context.Context, prompt string, out any) error
}

// Runtime creates agent handles. Implementations own model selection, prompt
// transport, and any retry/backoff policy; the coordination core treats Spawn
// as potentially slow and potentially failing.
type Runtime interface {
	Spawn(ctx context.Context, spec SpawnSpec) (Agent, error)
}

// SpawnSpec describes the agent to create.
type SpawnSpec struct {
	// Role is the agent's role description ("You are a security reviewer...").
	Role string

	// Model optionally pins a model identifier. Empty means runtime default.
	Model string

	// Tools optionally names the capabilities available to the agent.
	Tools []string

	// Pattern identifies which orchestration pattern is spawning this agent
	// and in what role. It is carried explicitly so observability sinks never
	// have to read ambient process state.
	Pattern PatternInfo
}

// PatternInfo correlates a spawned agent with the pattern execution that
// created it.
type PatternInfo struct {
	Pattern    string // pattern name: "swarm", "jury", "mapreduce", ...
	InstanceID string // unique per pattern instance or execution
	AgentRole  string // role within the pattern: "worker", "juror", "reducer", ...
	Index      int    // participant index where the pattern has one (juror, mapper, stage)
	Round      int    // iteration/debate round where the pattern has one
}

// AgentFunc adapts a function to the Agent interface, in the manner of
// http.HandlerFunc. Handy for test doubles:
//
//	a := agent.AgentFunc(func(ctx context.Context, prompt string, out any) error {
//	    *(out.(*string)) = "stub reply"
//	    return nil
//	})
type AgentFunc func(ctx context.Context, prompt string, out any) error

// Invoke calls f.
func (f AgentFunc) Invoke(ctx context.Context, prompt string, out any) error {
	return f(ctx, prompt, out)
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, spec SpawnSpec) (Agent, error)

// Spawn calls f.
func (f RuntimeFunc) Spawn(ctx context.Context, spec SpawnSpec) (Agent, error) {
	return f(ctx, spec)
}
