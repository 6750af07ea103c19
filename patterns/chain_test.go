package patterns

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit-dev/hivekit/agent"
)

func TestChainRoutesToFirstMatchByPriority(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		return respond("answered by: " + spec.Role)
	}}

	c, err := NewChain(rt, []Handler{
		{Role: "general", CanHandle: func(string) bool { return true }, Priority: 10},
		{Role: "python", CanHandle: func(q string) bool { return strings.Contains(q, "python") }, Priority: 1},
		{Role: "javascript", CanHandle: func(q string) bool { return strings.Contains(q, "javascript") }, Priority: 2},
	}, ChainConfig{})
	require.NoError(t, err)

	out, err := c.Process(context.Background(), "How do I use async in python?")
	require.NoError(t, err)
	assert.Equal(t, "answered by: python", out)

	// Only the matching handler's agent was spawned.
	require.Len(t, rt.spawned(), 1)
	assert.Equal(t, "chain", rt.spawned()[0].Pattern.Pattern)
}

func TestChainFallsThroughToCatchAll(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		return respond(spec.Role)
	}}

	c, err := NewChain(rt, []Handler{
		{Role: "python", CanHandle: func(q string) bool { return strings.Contains(q, "python") }, Priority: 1},
		{Role: "general", CanHandle: func(string) bool { return true }, Priority: 100},
	}, ChainConfig{})
	require.NoError(t, err)

	out, err := c.Process(context.Background(), "What is a monad?")
	require.NoError(t, err)
	assert.Equal(t, "general", out)
}

func TestChainNoHandlerIsHardError(t *testing.T) {
	c, err := NewChain(&stubRuntime{}, []Handler{
		{Role: "python", CanHandle: func(q string) bool { return strings.Contains(q, "python") }},
	}, ChainConfig{})
	require.NoError(t, err)

	_, err = c.Process(context.Background(), "What is a monad?")
	var nh *NoHandlerError
	require.True(t, errors.As(err, &nh))
	assert.Equal(t, "What is a monad?", nh.Query)
}

func TestChainStableOrderForEqualPriority(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		return respond(spec.Role)
	}}

	c, err := NewChain(rt, []Handler{
		{Role: "first", CanHandle: func(string) bool { return true }},
		{Role: "second", CanHandle: func(string) bool { return true }},
	}, ChainConfig{})
	require.NoError(t, err)

	out, err := c.Process(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "first", out)
}

func TestChainValidation(t *testing.T) {
	rt := &stubRuntime{}
	_, err := NewChain(rt, nil, ChainConfig{})
	assert.Error(t, err)
	_, err = NewChain(rt, []Handler{{Role: "r"}}, ChainConfig{})
	assert.Error(t, err)
}
