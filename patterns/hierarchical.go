package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/aggregate"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
	"github.com/hivekit-dev/hivekit/taskgroup"
)

// Assignment is one entry of a coordinator decomposition: which specialist
// does what.
type Assignment struct {
	Specialist string `json:"specialist"`
	Task       string `json:"task"`
}

// HierarchicalConfig configures a Hierarchical.
type HierarchicalConfig struct {
	AggregateMode    aggregate.Mode // how specialist outputs combine, default Concat
	Separator        string         // default "\n\n"
	OnError          ErrorStrategy  // specialist failure policy, default ContinueOnError
	CoordinatorModel string
	SpecialistModel  string
	Logger           *zap.Logger
}

// Hierarchical runs a two-phase coordinator/specialist topology: the
// coordinator decomposes the task into per-specialist assignments, the
// specialists run concurrently, and the coordinator synthesizes a final
// answer from their aggregated outputs. An empty decomposition means the
// coordinator answers the task directly.
type Hierarchical struct {
	rt              agent.Runtime
	coordinatorRole string
	specialistRoles map[string]string
	agg             *aggregate.Aggregator
	onError         ErrorStrategy
	cfg             HierarchicalConfig
	logger          *zap.Logger
	id              string

	mu          sync.Mutex
	coordinator agent.Agent
	specialists map[string]agent.Agent
}

// NewHierarchical creates a Hierarchical with a fixed named set of
// specialist roles.
func NewHierarchical(rt agent.Runtime, coordinatorRole string, specialistRoles map[string]string, cfg HierarchicalConfig) (*Hierarchical, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: hierarchical requires a runtime")
	}
	if coordinatorRole == "" {
		return nil, fmt.Errorf("patterns: hierarchical requires a coordinator role")
	}
	if len(specialistRoles) == 0 {
		return nil, fmt.Errorf("patterns: hierarchical requires at least one specialist")
	}
	if cfg.AggregateMode == "" {
		cfg.AggregateMode = aggregate.Concat
	}
	if cfg.Separator == "" {
		cfg.Separator = "\n\n"
	}
	if cfg.OnError == "" {
		cfg.OnError = ContinueOnError
	}
	agg, err := aggregate.New(cfg.AggregateMode, aggregate.WithSeparator(cfg.Separator))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Hierarchical{
		rt:              rt,
		coordinatorRole: coordinatorRole,
		specialistRoles: specialistRoles,
		agg:             agg,
		onError:         cfg.OnError,
		cfg:             cfg,
		logger:          cfg.Logger,
		id:              uuid.NewString(),
		specialists:     make(map[string]agent.Agent),
	}, nil
}

// Execute decomposes task, runs the assigned specialists, and synthesizes the
// final answer. When the coordinator returns no assignments it is invoked
// once more with the task itself and that answer is returned; specialists are
// never created in that case.
func (h *Hierarchical) Execute(ctx context.Context, task string) (result string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "hierarchical", h.id)
	defer span.End()
	defer func() { telemetry.CountExecution("hierarchical", err) }()

	assignments, err := h.decompose(ctx, task)
	if err != nil {
		return "", err
	}
	if len(assignments) == 0 {
		h.logger.Debug("task answered directly by coordinator", zap.String("hierarchy_id", h.id))
		coordinator, err := h.ensureCoordinator(ctx)
		if err != nil {
			return "", err
		}
		var direct string
		if err := coordinator.Invoke(ctx, task, &direct); err != nil {
			return "", err
		}
		return direct, nil
	}

	outputs, err := h.runSpecialists(ctx, assignments)
	if err != nil {
		return "", err
	}
	aggregated, err := h.agg.Aggregate(outputs)
	if err != nil {
		return "", err
	}
	return h.synthesize(ctx, task, aggregated)
}

func (h *Hierarchical) decompose(ctx context.Context, task string) ([]Assignment, error) {
	coordinator, err := h.ensureCoordinator(ctx)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Decompose this task into subtasks for specialists.\n\nTask: %s\n\nAvailable specialists: %s\n\nReturn a list of objects with keys: specialist, task.\nIf the task is simple enough to answer directly, return an empty list.",
		task, strings.Join(h.specialistNames(), ", "))

	var assignments []Assignment
	if err := coordinator.Invoke(ctx, prompt, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (h *Hierarchical) runSpecialists(ctx context.Context, assignments []Assignment) ([]any, error) {
	// Unknown names are a configuration bug; reject before anything runs.
	for _, a := range assignments {
		if _, ok := h.specialistRoles[a.Specialist]; !ok {
			return nil, &UnknownSpecialistError{Name: a.Specialist, Declared: h.specialistNames()}
		}
	}

	tasks := make([]taskgroup.Task, len(assignments))
	for i, a := range assignments {
		a := a
		tasks[i] = func(ctx context.Context) (any, error) {
			specialist, err := h.ensureSpecialist(ctx, a.Specialist)
			if err != nil {
				return nil, err
			}
			var out string
			if err := specialist.Invoke(ctx, a.Task, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	}

	results, err := taskgroup.Run(ctx, tasks, h.onError == StopOnError)
	if err != nil {
		return nil, taskgroup.First(err)
	}
	return taskgroup.Values(results), nil
}

func (h *Hierarchical) synthesize(ctx context.Context, task string, aggregated any) (string, error) {
	coordinator, err := h.ensureCoordinator(ctx)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Synthesize a final answer based on specialist results.\n\nOriginal task: %s\n\nSpecialist results:\n%v\n\nProvide a comprehensive final answer.",
		task, aggregated)
	var out string
	if err := coordinator.Invoke(ctx, prompt, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (h *Hierarchical) ensureCoordinator(ctx context.Context) (agent.Agent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.coordinator != nil {
		return h.coordinator, nil
	}
	coordinator, err := spawn(ctx, h.rt, h.coordinatorRole, h.cfg.CoordinatorModel, agent.PatternInfo{
		Pattern:    "hierarchical",
		InstanceID: h.id,
		AgentRole:  "coordinator",
	})
	if err != nil {
		return nil, err
	}
	h.coordinator = coordinator
	return coordinator, nil
}

func (h *Hierarchical) ensureSpecialist(ctx context.Context, name string) (agent.Agent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.specialists[name]; ok {
		return s, nil
	}
	specialist, err := spawn(ctx, h.rt, h.specialistRoles[name], h.cfg.SpecialistModel, agent.PatternInfo{
		Pattern:    "hierarchical",
		InstanceID: h.id,
		AgentRole:  "specialist",
	})
	if err != nil {
		return nil, err
	}
	h.specialists[name] = specialist
	return specialist, nil
}

func (h *Hierarchical) specialistNames() []string {
	names := make([]string, 0, len(h.specialistRoles))
	for name := range h.specialistRoles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
