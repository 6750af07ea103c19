package patterns

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/aggregate"
)

func TestSwarmMergesDistinctPerspectives(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		key := fmt.Sprintf("finding_%d", spec.Pattern.Index)
		return respond(map[string]any{key: spec.Role})
	}}

	s, err := NewSwarm(rt, []string{
		"You are a security expert.",
		"You are a performance expert.",
		"You are a UX expert.",
	}, SwarmConfig{})
	require.NoError(t, err)

	out, err := s.Execute(context.Background(), "Analyze the login flow")
	require.NoError(t, err)

	merged := out.(map[string]any)
	assert.Len(t, merged, 3)
	assert.Equal(t, "You are a security expert.", merged["finding_0"])
	assert.Equal(t, "You are a UX expert.", merged["finding_2"])
}

func TestSwarmSpawnContext(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		return respond(map[string]any{"k": 1})
	}}

	s, err := NewSwarm(rt, []string{"a", "b"}, SwarmConfig{})
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "q")
	require.NoError(t, err)

	spawns := rt.spawned()
	require.Len(t, spawns, 2)
	indices := map[int]bool{}
	for _, sp := range spawns {
		assert.Equal(t, "swarm", sp.Pattern.Pattern)
		assert.Equal(t, "worker", sp.Pattern.AgentRole)
		assert.NotEmpty(t, sp.Pattern.InstanceID)
		indices[sp.Pattern.Index] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, indices)
}

func TestSwarmConcatMode(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		return respond(fmt.Sprintf("view%d", spec.Pattern.Index))
	}}

	s, err := NewSwarm(rt, []string{"a", "b"}, SwarmConfig{
		AggregateMode: aggregate.Concat,
		Separator:     " | ",
	})
	require.NoError(t, err)

	out, err := s.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "view0 | view1", out)
}

func TestSwarmPartialToleratesFailures(t *testing.T) {
	boom := errors.New("boom")
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		if spec.Pattern.Index == 1 {
			return failWith(boom)
		}
		return respond(map[string]any{fmt.Sprintf("k%d", spec.Pattern.Index): true})
	}}

	s, err := NewSwarm(rt, []string{"a", "b", "c"}, SwarmConfig{})
	require.NoError(t, err)

	out, err := s.Execute(context.Background(), "q")
	require.NoError(t, err)
	merged := out.(map[string]any)
	assert.Len(t, merged, 2)
}

func TestSwarmFailFastPropagates(t *testing.T) {
	boom := errors.New("boom")
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		if spec.Pattern.Index == 0 {
			return failWith(boom)
		}
		return respond(map[string]any{"k": 1})
	}}

	s, err := NewSwarm(rt, []string{"a", "b"}, SwarmConfig{OnError: StopOnError})
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestSwarmRequiresPerspectives(t *testing.T) {
	_, err := NewSwarm(&stubRuntime{}, nil, SwarmConfig{})
	assert.Error(t, err)
}
