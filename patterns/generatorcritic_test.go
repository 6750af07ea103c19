package patterns

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/handoff"
)

func TestGeneratorCriticStopsOnApproval(t *testing.T) {
	generatorRounds := 0
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		switch spec.Pattern.AgentRole {
		case "generator":
			return respondf(func(string) any {
				generatorRounds++
				return map[string]any{
					"artifacts":        map[string]any{"solution": "v1"},
					"next_instruction": "please review",
				}
			})
		default:
			return respond(map[string]any{"next_instruction": "APPROVED"})
		}
	}}

	gc, err := NewGeneratorCritic(rt, "You generate.", "You review.", GeneratorCriticConfig{MaxRounds: 5})
	require.NoError(t, err)

	state, err := gc.Run(context.Background(), "Write a parser")
	require.NoError(t, err)

	assert.Equal(t, 1, generatorRounds)
	assert.Equal(t, "APPROVED", state.NextInstruction)
	assert.Equal(t, "v1", state.Artifacts["solution"])
	require.Len(t, state.Chain(), 1)
	assert.Equal(t, handoff.Hop{From: "generator", To: "critic"}, state.Chain()[0])
}

func TestGeneratorCriticFeedbackDrivesNextRound(t *testing.T) {
	var secondGeneratorPrompt string
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		switch spec.Pattern.AgentRole {
		case "generator":
			round := 0
			return respondf(func(prompt string) any {
				round++
				if round == 2 {
					secondGeneratorPrompt = prompt
				}
				return map[string]any{
					"artifacts": map[string]any{"solution": "attempt"},
				}
			})
		default:
			round := 0
			return respondf(func(string) any {
				round++
				if round == 1 {
					return map[string]any{
						"artifacts":        map[string]any{"feedback": "handle empty input"},
						"next_instruction": "revise",
					}
				}
				return map[string]any{"next_instruction": "APPROVED"}
			})
		}
	}}

	gc, err := NewGeneratorCritic(rt, "gen", "crit", GeneratorCriticConfig{MaxRounds: 3})
	require.NoError(t, err)

	state, err := gc.Run(context.Background(), "task")
	require.NoError(t, err)

	assert.Contains(t, secondGeneratorPrompt, "handle empty input")
	assert.Equal(t, "APPROVED", state.NextInstruction)
	assert.Len(t, state.Chain(), 2)
}

func TestGeneratorCriticMaxRoundsWithoutApproval(t *testing.T) {
	rounds := 0
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		if spec.Pattern.AgentRole == "generator" {
			return respondf(func(string) any {
				rounds++
				return map[string]any{"artifacts": map[string]any{"solution": "x"}}
			})
		}
		return respond(map[string]any{
			"artifacts":        map[string]any{"feedback": "still wrong"},
			"next_instruction": "revise",
		})
	}}

	gc, err := NewGeneratorCritic(rt, "gen", "crit", GeneratorCriticConfig{MaxRounds: 2})
	require.NoError(t, err)

	state, err := gc.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, 2, rounds)
	assert.Equal(t, "revise", state.NextInstruction)
}

func TestGeneratorCriticCustomApproval(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		if spec.Pattern.AgentRole == "generator" {
			return respond(map[string]any{"artifacts": map[string]any{"score": 0.95}})
		}
		return respond(map[string]any{"next_instruction": "looks decent"})
	}}

	gc, err := NewGeneratorCritic(rt, "gen", "crit", GeneratorCriticConfig{
		MaxRounds: 5,
		IsApproved: func(s *handoff.State) bool {
			score, ok := s.Artifacts["score"].(float64)
			return ok && score > 0.9
		},
	})
	require.NoError(t, err)

	state, err := gc.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Len(t, state.Chain(), 1)
}

func TestGeneratorCriticHandlesPersist(t *testing.T) {
	rt := &stubRuntime{handle: func(spec agent.SpawnSpec) agent.Agent {
		if spec.Pattern.AgentRole == "generator" {
			return respond(map[string]any{"artifacts": map[string]any{}})
		}
		return respond(map[string]any{"next_instruction": "revise"})
	}}

	gc, err := NewGeneratorCritic(rt, "gen", "crit", GeneratorCriticConfig{MaxRounds: 3})
	require.NoError(t, err)

	_, err = gc.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Len(t, rt.spawned(), 2)
}

func TestGeneratorCriticValidation(t *testing.T) {
	rt := &stubRuntime{}
	_, err := NewGeneratorCritic(rt, "", "crit", GeneratorCriticConfig{})
	assert.Error(t, err)
	_, err = NewGeneratorCritic(rt, "gen", "crit", GeneratorCriticConfig{MaxRounds: -1})
	assert.Error(t, err)
}

func TestApprovalSentinelSubstringMatch(t *testing.T) {
	s := handoff.New("", "APPROVED: ship it")
	gc, err := NewGeneratorCritic(&stubRuntime{}, "gen", "crit", GeneratorCriticConfig{})
	require.NoError(t, err)
	assert.True(t, gc.isApproved(s))
	assert.True(t, strings.Contains(s.NextInstruction, ApprovalSentinel))
}
