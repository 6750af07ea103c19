package patterns

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// Specialist declares one blackboard contributor: its role and which
// blackboard keys it writes and reads.
type Specialist struct {
	Role      string
	WritesTo  []string
	ReadsFrom []string
}

// Change is one recorded blackboard mutation.
type Change struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

// BlackboardState is the shared key/value state specialists contribute to,
// with a full mutation history for auditing. It is mutated only by
// sequentially running specialists, never concurrently.
type BlackboardState struct {
	data    map[string]any
	history []Change
}

// NewBlackboardState creates an empty state.
func NewBlackboardState() *BlackboardState {
	return &BlackboardState{data: make(map[string]any)}
}

// Set stores value under key, recording the change.
func (s *BlackboardState) Set(key string, value any) {
	s.data[key] = value
	s.history = append(s.history, Change{Action: "set", Key: key, Value: value})
}

// Get returns the value under key.
func (s *BlackboardState) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Snapshot returns a copy of the current key/value data.
func (s *BlackboardState) Snapshot() map[string]any {
	out := make(map[string]any, len(s.data))
	maps.Copy(out, s.data)
	return out
}

// History returns the recorded changes in order.
func (s *BlackboardState) History() []Change {
	out := make([]Change, len(s.history))
	copy(out, s.history)
	return out
}

// BlackboardResult is the outcome of one Solve call.
type BlackboardResult struct {
	State      *BlackboardState
	Iterations int
	Completed  bool
}

// BlackboardConfig configures a Blackboard.
type BlackboardConfig struct {
	MaxIterations   int // default 5
	ControllerModel string
	SpecialistModel string
	Logger          *zap.Logger
}

// Blackboard has specialists contribute to a shared state in declared order
// each iteration, with a controller deciding when the solution is complete.
// Specialists run sequentially so later ones can read earlier writes within
// the same iteration.
type Blackboard struct {
	rt             agent.Runtime
	specialists    []Specialist
	controllerRole string
	maxIterations  int
	cfg            BlackboardConfig
	logger         *zap.Logger
	id             string

	mu               sync.Mutex
	controller       agent.Agent
	specialistAgents map[int]agent.Agent
}

// NewBlackboard creates a Blackboard with a fixed specialist list.
func NewBlackboard(rt agent.Runtime, specialists []Specialist, controllerRole string, cfg BlackboardConfig) (*Blackboard, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: blackboard requires a runtime")
	}
	if len(specialists) == 0 {
		return nil, fmt.Errorf("patterns: blackboard requires at least one specialist")
	}
	if controllerRole == "" {
		return nil, fmt.Errorf("patterns: blackboard requires a controller role")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 5
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("patterns: max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Blackboard{
		rt:               rt,
		specialists:      specialists,
		controllerRole:   controllerRole,
		maxIterations:    cfg.MaxIterations,
		cfg:              cfg,
		logger:           cfg.Logger,
		id:               uuid.NewString(),
		specialistAgents: make(map[int]agent.Agent),
	}, nil
}

// Solve iterates specialists over the shared state until the controller
// approves or MaxIterations is exhausted. The state always carries the query
// under the "query" key.
func (b *Blackboard) Solve(ctx context.Context, query string) (result *BlackboardResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "blackboard", b.id)
	defer span.End()
	defer func() { telemetry.CountExecution("blackboard", err) }()

	state := NewBlackboardState()
	state.Set("query", query)

	for iteration := 1; iteration <= b.maxIterations; iteration++ {
		for i, sp := range b.specialists {
			contribution, err := b.runSpecialist(ctx, i, query, state)
			if err != nil {
				return nil, err
			}
			// Only declared write keys are committed.
			for _, key := range sp.WritesTo {
				if v, ok := contribution[key]; ok {
					state.Set(key, v)
				}
			}
		}

		complete, err := b.checkCompletion(ctx, query, state)
		if err != nil {
			return nil, err
		}
		if complete {
			b.logger.Debug("controller approved blackboard state",
				zap.String("blackboard_id", b.id),
				zap.Int("iterations", iteration))
			return &BlackboardResult{State: state, Iterations: iteration, Completed: true}, nil
		}
	}

	return &BlackboardResult{State: state, Iterations: b.maxIterations, Completed: false}, nil
}

func (b *Blackboard) runSpecialist(ctx context.Context, index int, query string, state *BlackboardState) (map[string]any, error) {
	sp := b.specialists[index]
	a, err := b.ensureSpecialist(ctx, index)
	if err != nil {
		return nil, err
	}

	var readContext strings.Builder
	for _, key := range sp.ReadsFrom {
		if v, ok := state.Get(key); ok {
			fmt.Fprintf(&readContext, "\n%s: %v", key, v)
		}
	}

	prompt := fmt.Sprintf("Task: %s\n\nYou are responsible for: %v\n", query, sp.WritesTo)
	if readContext.Len() > 0 {
		prompt += fmt.Sprintf("Based on:%s\n", readContext.String())
	}
	prompt += fmt.Sprintf("\nCurrent blackboard state: %v\n\nProvide your contribution as an object with keys: %v",
		state.Snapshot(), sp.WritesTo)

	var contribution map[string]any
	if err := a.Invoke(ctx, prompt, &contribution); err != nil {
		return nil, err
	}
	return contribution, nil
}

func (b *Blackboard) checkCompletion(ctx context.Context, query string, state *BlackboardState) (bool, error) {
	controller, err := b.ensureController(ctx)
	if err != nil {
		return false, err
	}
	prompt := fmt.Sprintf("Task: %s\n\nCurrent blackboard state: %v\n\nIs the solution complete and coherent?\nReturn an object with:\n- \"complete\": true if done, false if more work needed\n- \"feedback\": optional guidance for the next iteration",
		query, state.Snapshot())

	var verdict struct {
		Complete bool   `json:"complete"`
		Feedback string `json:"feedback"`
	}
	if err := controller.Invoke(ctx, prompt, &verdict); err != nil {
		return false, err
	}
	if !verdict.Complete && verdict.Feedback != "" {
		state.Set("feedback", verdict.Feedback)
	}
	return verdict.Complete, nil
}

func (b *Blackboard) ensureController(ctx context.Context) (agent.Agent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.controller != nil {
		return b.controller, nil
	}
	controller, err := spawn(ctx, b.rt, b.controllerRole, b.cfg.ControllerModel, agent.PatternInfo{
		Pattern:    "blackboard",
		InstanceID: b.id,
		AgentRole:  "controller",
	})
	if err != nil {
		return nil, err
	}
	b.controller = controller
	return controller, nil
}

func (b *Blackboard) ensureSpecialist(ctx context.Context, index int) (agent.Agent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.specialistAgents[index]; ok {
		return a, nil
	}
	a, err := spawn(ctx, b.rt, b.specialists[index].Role, b.cfg.SpecialistModel, agent.PatternInfo{
		Pattern:    "blackboard",
		InstanceID: b.id,
		AgentRole:  "specialist",
		Index:      index,
	})
	if err != nil {
		return nil, err
	}
	b.specialistAgents[index] = a
	return a, nil
}
