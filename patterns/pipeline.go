package patterns

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hivekit-dev/hivekit/handoff"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// Stage transforms a handoff state. Stages may mutate instruction, artifacts,
// and metadata arbitrarily; the pipeline applies no validation between them.
type Stage func(ctx context.Context, state *handoff.State) (*handoff.State, error)

// Pipeline threads a handoff state through a fixed ordered list of stages,
// strictly sequentially. A stage failure stops the pipeline and propagates.
type Pipeline struct {
	stages []Stage
	id     string
}

// NewPipeline creates a Pipeline from the given stages in order.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("patterns: pipeline requires at least one stage")
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("patterns: pipeline stage %d is nil", i)
		}
	}
	return &Pipeline{stages: stages, id: uuid.NewString()}, nil
}

// Run executes the stages sequentially, feeding each stage the previous
// stage's output, and returns the final state.
func (p *Pipeline) Run(ctx context.Context, initial *handoff.State) (final *handoff.State, err error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline", p.id)
	defer span.End()
	defer func() { telemetry.CountExecution("pipeline", err) }()

	state := initial
	for i, stage := range p.stages {
		state, err = stage(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("patterns: pipeline stage %d: %w", i, err)
		}
	}
	return state, nil
}
