package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLaterWins(t *testing.T) {
	a := New("ctx A", "do A")
	a.AddArtifact("shared", "from A")
	a.AddArtifact("only_a", 1)
	a.Metadata["priority"] = "low"
	a.RecordHandoff("start", "a")

	b := New("ctx B", "do B")
	b.AddArtifact("shared", "from B")
	b.AddArtifact("only_b", 2)
	b.Metadata["priority"] = "high"
	b.RecordHandoff("a", "b")

	merged := a.Merge(b)

	assert.Equal(t, "ctx B", merged.Context)
	assert.Equal(t, "do B", merged.NextInstruction)
	assert.Equal(t, "from B", merged.Artifacts["shared"])
	assert.Equal(t, 1, merged.Artifacts["only_a"])
	assert.Equal(t, 2, merged.Artifacts["only_b"])
	assert.Equal(t, "high", merged.Metadata["priority"])
	require.Len(t, merged.Chain(), 2)
	assert.Equal(t, Hop{From: "start", To: "a"}, merged.Chain()[0])
	assert.Equal(t, Hop{From: "a", To: "b"}, merged.Chain()[1])

	// Inputs untouched.
	assert.Equal(t, "from A", a.Artifacts["shared"])
	assert.Len(t, a.Chain(), 1)
}

func TestChainReturnsCopy(t *testing.T) {
	s := New("ctx", "go")
	s.RecordHandoff("x", "y")

	chain := s.Chain()
	chain[0] = Hop{From: "mutated", To: "mutated"}

	assert.Equal(t, Hop{From: "x", To: "y"}, s.Chain()[0])
}

func TestCloneIsIsolated(t *testing.T) {
	s := New("ctx", "go")
	s.AddArtifact("k", "v")

	c := s.Clone()
	c.AddArtifact("k", "changed")
	c.NextInstruction = "halt"

	assert.Equal(t, "v", s.Artifacts["k"])
	assert.Equal(t, "go", s.NextInstruction)
}

func TestClearArtifacts(t *testing.T) {
	s := New("ctx", "go")
	s.AddArtifact("k", "v")
	s.Metadata["m"] = 1
	s.ClearArtifacts()

	assert.Empty(t, s.Artifacts)
	assert.Equal(t, 1, s.Metadata["m"])
}
