package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentFuncAdapters(t *testing.T) {
	a := AgentFunc(func(ctx context.Context, prompt string, out any) error {
		*(out.(*string)) = "reply to: " + prompt
		return nil
	})

	var got string
	require.NoError(t, a.Invoke(context.Background(), "hi", &got))
	assert.Equal(t, "reply to: hi", got)

	rt := RuntimeFunc(func(ctx context.Context, spec SpawnSpec) (Agent, error) {
		return a, nil
	})
	spawned, err := rt.Spawn(context.Background(), SpawnSpec{Role: "r"})
	require.NoError(t, err)
	require.NoError(t, spawned.Invoke(context.Background(), "again", &got))
	assert.Equal(t, "reply to: again", got)
}

func TestWithRecorderPassesPatternInfo(t *testing.T) {
	inner := RuntimeFunc(func(ctx context.Context, spec SpawnSpec) (Agent, error) {
		return AgentFunc(func(ctx context.Context, prompt string, out any) error {
			*(out.(*string)) = "inner"
			return nil
		}), nil
	})

	var seen []PatternInfo
	rec := RecorderFunc(func(info PatternInfo, a Agent) Agent {
		seen = append(seen, info)
		return AgentFunc(func(ctx context.Context, prompt string, out any) error {
			return a.Invoke(ctx, prompt, out)
		})
	})

	rt := WithRecorder(inner, rec)
	a, err := rt.Spawn(context.Background(), SpawnSpec{
		Role: "worker role",
		Pattern: PatternInfo{
			Pattern:    "swarm",
			InstanceID: "abc123",
			AgentRole:  "worker",
			Index:      2,
		},
	})
	require.NoError(t, err)

	// Transparency: the wrapped handle honors the same contract.
	var got string
	require.NoError(t, a.Invoke(context.Background(), "q", &got))
	assert.Equal(t, "inner", got)

	require.Len(t, seen, 1)
	assert.Equal(t, "swarm", seen[0].Pattern)
	assert.Equal(t, "abc123", seen[0].InstanceID)
	assert.Equal(t, 2, seen[0].Index)
}

func TestWithRecorderNilRecorderIsIdentity(t *testing.T) {
	inner := &staticRuntime{err: errors.New("unused")}
	assert.Same(t, inner, WithRecorder(inner, nil))
}

type staticRuntime struct {
	agent Agent
	err   error
}

func (s *staticRuntime) Spawn(ctx context.Context, spec SpawnSpec) (Agent, error) {
	return s.agent, s.err
}

func TestWithRecorderNilWrapKeepsOriginal(t *testing.T) {
	original := AgentFunc(func(ctx context.Context, prompt string, out any) error {
		*(out.(*string)) = "original"
		return nil
	})
	inner := RuntimeFunc(func(ctx context.Context, spec SpawnSpec) (Agent, error) {
		return original, nil
	})
	rt := WithRecorder(inner, RecorderFunc(func(PatternInfo, Agent) Agent { return nil }))

	a, err := rt.Spawn(context.Background(), SpawnSpec{Role: "r"})
	require.NoError(t, err)
	var got string
	require.NoError(t, a.Invoke(context.Background(), "q", &got))
	assert.Equal(t, "original", got)
}

func TestWithRecorderPropagatesSpawnError(t *testing.T) {
	boom := errors.New("spawn failed")
	inner := RuntimeFunc(func(ctx context.Context, spec SpawnSpec) (Agent, error) {
		return nil, boom
	})
	called := false
	rt := WithRecorder(inner, RecorderFunc(func(PatternInfo, Agent) Agent {
		called = true
		return nil
	}))

	_, err := rt.Spawn(context.Background(), SpawnSpec{Role: "r"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestDecodeReply(t *testing.T) {
	var text string
	require.NoError(t, DecodeReply("plain text, not JSON", &text))
	assert.Equal(t, "plain text, not JSON", text)

	var record map[string]any
	require.NoError(t, DecodeReply(`{"k": "v"}`, &record))
	assert.Equal(t, "v", record["k"])

	// Markdown fences around the payload are tolerated.
	record = nil
	require.NoError(t, DecodeReply("```json\n{\"k\": \"fenced\"}\n```", &record))
	assert.Equal(t, "fenced", record["k"])

	record = nil
	require.NoError(t, DecodeReply("```\n{\"k\": \"bare fence\"}\n```", &record))
	assert.Equal(t, "bare fence", record["k"])

	var verdict bool
	require.NoError(t, DecodeReply("true", &verdict))
	assert.True(t, verdict)

	err := DecodeReply("not json at all", &record)
	assert.Error(t, err)
}

func TestLocalRuntimeValidation(t *testing.T) {
	_, err := NewLocalRuntime("")
	assert.Error(t, err)

	rt, err := NewLocalRuntime("test-key", WithDefaultModel("gpt-4o"))
	require.NoError(t, err)
	_, err = rt.Spawn(context.Background(), SpawnSpec{Role: "   "})
	assert.Error(t, err)

	a, err := rt.Spawn(context.Background(), SpawnSpec{Role: "You review code."})
	require.NoError(t, err)
	assert.NotNil(t, a)
}
