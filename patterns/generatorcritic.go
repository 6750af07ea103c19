package patterns

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/handoff"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// ApprovalSentinel is the next-instruction marker the default approval check
// scans for.
const ApprovalSentinel = "APPROVED"

// GeneratorCriticConfig configures a GeneratorCritic.
type GeneratorCriticConfig struct {
	MaxRounds      int // default 3
	GeneratorModel string
	CriticModel    string

	// IsApproved decides whether the state after a critique round is final.
	// Default: NextInstruction contains ApprovalSentinel.
	IsApproved func(*handoff.State) bool
	Logger     *zap.Logger
}

// stateUpdate is the shape generator and critic replies decode into before
// being applied to the shared handoff state.
type stateUpdate struct {
	Artifacts       map[string]any `json:"artifacts"`
	NextInstruction string         `json:"next_instruction"`
}

// GeneratorCritic iterates a generator and a critic over a shared handoff
// state: the generator produces or refines a solution into the artifacts,
// the critic either approves or writes feedback under artifacts["feedback"]
// for the next round. Both handles persist for the instance's lifetime.
type GeneratorCritic struct {
	rt            agent.Runtime
	generatorRole string
	criticRole    string
	cfg           GeneratorCriticConfig
	maxRounds     int
	isApproved    func(*handoff.State) bool
	logger        *zap.Logger
	id            string

	mu        sync.Mutex
	generator agent.Agent
	critic    agent.Agent
}

// NewGeneratorCritic creates a GeneratorCritic refinement loop.
func NewGeneratorCritic(rt agent.Runtime, generatorRole, criticRole string, cfg GeneratorCriticConfig) (*GeneratorCritic, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: generator-critic requires a runtime")
	}
	if generatorRole == "" || criticRole == "" {
		return nil, fmt.Errorf("patterns: generator-critic requires generator and critic roles")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 3
	}
	if cfg.MaxRounds < 1 {
		return nil, fmt.Errorf("patterns: max rounds must be positive, got %d", cfg.MaxRounds)
	}
	isApproved := cfg.IsApproved
	if isApproved == nil {
		isApproved = func(s *handoff.State) bool {
			return strings.Contains(s.NextInstruction, ApprovalSentinel)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &GeneratorCritic{
		rt:            rt,
		generatorRole: generatorRole,
		criticRole:    criticRole,
		cfg:           cfg,
		maxRounds:     cfg.MaxRounds,
		isApproved:    isApproved,
		logger:        cfg.Logger,
		id:            uuid.NewString(),
	}, nil
}

// Run executes the refinement loop for task and returns the final state,
// whether approved or stopped at the round limit.
func (g *GeneratorCritic) Run(ctx context.Context, task string) (final *handoff.State, err error) {
	ctx, span := telemetry.StartSpan(ctx, "generatorcritic", g.id)
	defer span.End()
	defer func() { telemetry.CountExecution("generatorcritic", err) }()

	state := handoff.New("Task: "+task, "Generate initial solution")

	for round := 1; round <= g.maxRounds; round++ {
		if err := g.generate(ctx, task, state); err != nil {
			return nil, fmt.Errorf("patterns: generator round %d: %w", round, err)
		}
		if err := g.critique(ctx, task, state); err != nil {
			return nil, fmt.Errorf("patterns: critic round %d: %w", round, err)
		}
		state.RecordHandoff("generator", "critic")

		if g.isApproved(state) {
			g.logger.Debug("critic approved solution",
				zap.String("generatorcritic_id", g.id),
				zap.Int("round", round))
			break
		}
	}
	return state, nil
}

func (g *GeneratorCritic) generate(ctx context.Context, task string, state *handoff.State) error {
	generator, err := g.ensureGenerator(ctx)
	if err != nil {
		return err
	}

	feedbackText := "First attempt."
	if feedback, ok := state.Artifacts["feedback"]; ok && feedback != "" {
		feedbackText = fmt.Sprintf("Feedback from previous round: %v", feedback)
	}
	prompt := fmt.Sprintf("%s\n\nTask: %s\n\n%s\n\nGenerate your solution. Return an object with \"artifacts\" holding your solution and \"next_instruction\" for the reviewer.",
		state.Context, task, feedbackText)

	var update stateUpdate
	if err := generator.Invoke(ctx, prompt, &update); err != nil {
		return err
	}
	applyUpdate(state, update)
	return nil
}

func (g *GeneratorCritic) critique(ctx context.Context, task string, state *handoff.State) error {
	critic, err := g.ensureCritic(ctx)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("Review this solution:\n\nTask: %s\n\nSolution artifacts: %v\n\nProvide feedback. If approved, set \"next_instruction\" to %q.\nOtherwise provide constructive feedback under artifacts[\"feedback\"].",
		task, state.Artifacts, ApprovalSentinel)

	var update stateUpdate
	if err := critic.Invoke(ctx, prompt, &update); err != nil {
		return err
	}
	applyUpdate(state, update)
	return nil
}

func applyUpdate(state *handoff.State, update stateUpdate) {
	for k, v := range update.Artifacts {
		state.AddArtifact(k, v)
	}
	if update.NextInstruction != "" {
		state.NextInstruction = update.NextInstruction
	}
}

func (g *GeneratorCritic) ensureGenerator(ctx context.Context) (agent.Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generator != nil {
		return g.generator, nil
	}
	generator, err := spawn(ctx, g.rt, g.generatorRole, g.cfg.GeneratorModel, agent.PatternInfo{
		Pattern:    "generatorcritic",
		InstanceID: g.id,
		AgentRole:  "generator",
	})
	if err != nil {
		return nil, err
	}
	g.generator = generator
	return generator, nil
}

func (g *GeneratorCritic) ensureCritic(ctx context.Context) (agent.Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.critic != nil {
		return g.critic, nil
	}
	critic, err := spawn(ctx, g.rt, g.criticRole, g.cfg.CriticModel, agent.PatternInfo{
		Pattern:    "generatorcritic",
		InstanceID: g.id,
		AgentRole:  "critic",
	})
	if err != nil {
		return nil, err
	}
	g.critic = critic
	return critic, nil
}
