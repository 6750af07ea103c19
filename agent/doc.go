// Package agent defines the boundary between the coordination patterns and
// the agent runtime that actually talks to language models.
//
// The core of the package is two small interfaces: Runtime, which creates
// agent handles from a role description, and Agent, which exposes a single
// Invoke operation taking a prompt and an expected result shape. Pattern
// orchestrators in the patterns package depend only on these interfaces;
// LocalRuntime is one concrete implementation backed by an OpenAI-compatible
// chat API.
//
// Every spawn carries a PatternInfo describing which pattern, instance, and
// role the agent belongs to. An optional Recorder (see WithRecorder) can
// observe or wrap each handle as it is created without changing pattern
// behavior.
package agent
