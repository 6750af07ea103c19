package patterns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/aggregate"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
	"github.com/hivekit-dev/hivekit/taskgroup"
)

// SwarmConfig configures a Swarm.
type SwarmConfig struct {
	AggregateMode aggregate.Mode // how to combine worker results, default Merge
	Separator     string         // join separator for Concat mode
	Deduplicate   bool           // de-duplicate merged sequences / concat tokens
	OnError       ErrorStrategy  // default ContinueOnError
	Model         string         // model for every worker, empty = runtime default
	Logger        *zap.Logger
}

// Swarm fans a single query out to one agent per perspective, runs them
// concurrently, and aggregates the results.
type Swarm struct {
	rt           agent.Runtime
	perspectives []string
	agg          *aggregate.Aggregator
	mode         aggregate.Mode
	onError      ErrorStrategy
	model        string
	logger       *zap.Logger
	id           string
}

// NewSwarm creates a Swarm with one worker per perspective.
func NewSwarm(rt agent.Runtime, perspectives []string, cfg SwarmConfig) (*Swarm, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: swarm requires a runtime")
	}
	if len(perspectives) == 0 {
		return nil, fmt.Errorf("patterns: swarm requires at least one perspective")
	}
	if cfg.AggregateMode == "" {
		cfg.AggregateMode = aggregate.Merge
	}
	if cfg.OnError == "" {
		cfg.OnError = ContinueOnError
	}
	opts := []aggregate.Option{}
	if cfg.Separator != "" {
		opts = append(opts, aggregate.WithSeparator(cfg.Separator))
	}
	if cfg.Deduplicate {
		opts = append(opts, aggregate.WithDeduplicate())
	}
	agg, err := aggregate.New(cfg.AggregateMode, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Swarm{
		rt:           rt,
		perspectives: perspectives,
		agg:          agg,
		mode:         cfg.AggregateMode,
		onError:      cfg.OnError,
		model:        cfg.Model,
		logger:       cfg.Logger,
		id:           uuid.NewString(),
	}, nil
}

// Execute sends query to every worker concurrently and returns the aggregate.
// The per-worker result shape follows the aggregation mode: a structured
// record for Merge and Best, free text for Concat.
func (s *Swarm) Execute(ctx context.Context, query string) (result any, err error) {
	ctx, span := telemetry.StartSpan(ctx, "swarm", s.id)
	defer span.End()
	defer func() { telemetry.CountExecution("swarm", err) }()

	tasks := make([]taskgroup.Task, len(s.perspectives))
	for i, perspective := range s.perspectives {
		i, perspective := i, perspective
		tasks[i] = func(ctx context.Context) (any, error) {
			worker, err := spawn(ctx, s.rt, perspective, s.model, agent.PatternInfo{
				Pattern:    "swarm",
				InstanceID: s.id,
				AgentRole:  "worker",
				Index:      i,
			})
			if err != nil {
				return nil, err
			}
			return s.invokeWorker(ctx, worker, query)
		}
	}

	results, err := taskgroup.Run(ctx, tasks, s.onError == StopOnError)
	if err != nil {
		return nil, taskgroup.First(err)
	}

	values := taskgroup.Values(results)
	s.logger.Debug("swarm workers finished",
		zap.String("swarm_id", s.id),
		zap.Int("workers", len(s.perspectives)),
		zap.Int("succeeded", len(values)))

	return s.agg.Aggregate(values)
}

func (s *Swarm) invokeWorker(ctx context.Context, worker agent.Agent, query string) (any, error) {
	if s.mode == aggregate.Concat {
		var text string
		if err := worker.Invoke(ctx, query, &text); err != nil {
			return nil, err
		}
		return text, nil
	}
	var record map[string]any
	if err := worker.Invoke(ctx, query, &record); err != nil {
		return nil, err
	}
	return record, nil
}
