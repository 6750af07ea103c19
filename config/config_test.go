package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/patterns"
)

const sampleYAML = `
default_model: gpt-4o-mini
patterns:
  reviewers:
    type: swarm
    perspectives:
      - "You are a security expert."
      - "You are a performance expert."
    aggregate_mode: merge
  safety_jury:
    type: jury
    num_jurors: 3
    mode: majority
    weights: [2, 1, 1]
  code_review:
    type: mapreduce
    mapper_role: "You review one section."
    reducer_role: "You synthesize reviews."
    num_mappers: 4
  support:
    type: chain
    handlers:
      - role: "You handle billing."
        match: billing
        priority: 1
      - role: "You handle everything else."
        priority: 100
  degrade:
    type: circuitbreaker
    primary_role: "You implement features."
    fallback_role: "You implement simpler versions."
    max_failures: 2
    reset_timeout: 30s
`

type nopRuntime struct{}

func (nopRuntime) Spawn(ctx context.Context, spec agent.SpawnSpec) (agent.Agent, error) {
	return agent.AgentFunc(func(ctx context.Context, prompt string, out any) error {
		return nil
	}), nil
}

func TestParseAndBuildAllTypes(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, f.Patterns, 5)
	assert.Equal(t, "gpt-4o-mini", f.DefaultModel)

	rt := nopRuntime{}

	swarm, err := f.Build("reviewers", rt)
	require.NoError(t, err)
	assert.IsType(t, &patterns.Swarm{}, swarm)

	jury, err := f.Build("safety_jury", rt)
	require.NoError(t, err)
	assert.IsType(t, &patterns.Jury{}, jury)

	mr, err := f.Build("code_review", rt)
	require.NoError(t, err)
	assert.IsType(t, &patterns.MapReduce{}, mr)

	chain, err := f.Build("support", rt)
	require.NoError(t, err)
	assert.IsType(t, &patterns.Chain{}, chain)

	cb, err := f.Build("degrade", rt)
	require.NoError(t, err)
	assert.IsType(t, &patterns.CircuitBreaker{}, cb)
}

func TestBuildUnknownName(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	_, err = f.Build("nope", nopRuntime{})
	assert.Error(t, err)
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`
patterns:
  broken:
    type: telepathy
`))
	assert.Error(t, err)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]string{
		"swarm without perspectives": `
patterns:
  s:
    type: swarm
`,
		"jury without jurors": `
patterns:
  j:
    type: jury
`,
		"jury weight mismatch": `
patterns:
  j:
    type: jury
    num_jurors: 3
    weights: [1, 2]
`,
		"chain without handlers": `
patterns:
  c:
    type: chain
`,
		"circuitbreaker without roles": `
patterns:
  cb:
    type: circuitbreaker
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestChainMatcherRouting(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	rt := &routeRecorder{}
	built, err := f.Build("support", rt)
	require.NoError(t, err)
	chain := built.(*patterns.Chain)

	_, err = chain.Process(context.Background(), "question about billing cycle")
	require.NoError(t, err)
	require.Len(t, rt.roles, 1)
	assert.Equal(t, "You handle billing.", rt.roles[0])

	_, err = chain.Process(context.Background(), "reset my password")
	require.NoError(t, err)
	assert.Equal(t, "You handle everything else.", rt.roles[1])
}

type routeRecorder struct {
	roles []string
}

func (r *routeRecorder) Spawn(ctx context.Context, spec agent.SpawnSpec) (agent.Agent, error) {
	r.roles = append(r.roles, spec.Role)
	return agent.AgentFunc(func(ctx context.Context, prompt string, out any) error {
		*(out.(*string)) = "ok"
		return nil
	}), nil
}
