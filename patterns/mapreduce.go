package patterns

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
	"github.com/hivekit-dev/hivekit/taskgroup"
)

const mapperOutputSeparator = "\n\n---\n\n"

// MapReduceConfig configures a MapReduce.
type MapReduceConfig struct {
	NumMappers   int           // mapper slots, default 3
	OnError      ErrorStrategy // default StopOnError
	MapperModel  string
	ReducerModel string
	Logger       *zap.Logger
}

// MapReduce distributes data chunks round-robin across mapper agents, runs
// the mappers concurrently, and synthesizes their outputs with one reducer
// agent.
type MapReduce struct {
	rt          agent.Runtime
	mapperRole  string
	reducerRole string
	numMappers  int
	onError     ErrorStrategy
	cfg         MapReduceConfig
	logger      *zap.Logger
	id          string

	mu      sync.Mutex
	reducer agent.Agent
}

// NewMapReduce creates a MapReduce with the given mapper and reducer roles.
func NewMapReduce(rt agent.Runtime, mapperRole, reducerRole string, cfg MapReduceConfig) (*MapReduce, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: mapreduce requires a runtime")
	}
	if cfg.NumMappers == 0 {
		cfg.NumMappers = 3
	}
	if cfg.NumMappers < 1 {
		return nil, fmt.Errorf("patterns: mapreduce requires at least one mapper, got %d", cfg.NumMappers)
	}
	if cfg.OnError == "" {
		cfg.OnError = StopOnError
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &MapReduce{
		rt:          rt,
		mapperRole:  mapperRole,
		reducerRole: reducerRole,
		numMappers:  cfg.NumMappers,
		onError:     cfg.OnError,
		cfg:         cfg,
		logger:      cfg.Logger,
		id:          uuid.NewString(),
	}, nil
}

// Execute runs the map phase over chunks and the reduce phase over the mapper
// outputs, returning the reducer's synthesis.
func (m *MapReduce) Execute(ctx context.Context, query string, chunks []any) (result string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "mapreduce", m.id)
	defer span.End()
	defer func() { telemetry.CountExecution("mapreduce", err) }()

	outputs, err := m.mapPhase(ctx, query, chunks)
	if err != nil {
		return "", err
	}
	return m.reducePhase(ctx, query, outputs)
}

// distribute assigns chunk i to mapper slot i modulo the mapper count. With
// fewer chunks than mappers some slots stay empty and are never spawned.
func (m *MapReduce) distribute(chunks []any) [][]any {
	slots := make([][]any, m.numMappers)
	for i, chunk := range chunks {
		idx := i % m.numMappers
		slots[idx] = append(slots[idx], chunk)
	}
	return slots
}

func (m *MapReduce) mapPhase(ctx context.Context, query string, chunks []any) ([]string, error) {
	slots := m.distribute(chunks)

	var tasks []taskgroup.Task
	for i, slot := range slots {
		if len(slot) == 0 {
			continue
		}
		i, slot := i, slot
		tasks = append(tasks, func(ctx context.Context) (any, error) {
			mapper, err := spawn(ctx, m.rt, m.mapperRole, m.cfg.MapperModel, agent.PatternInfo{
				Pattern:    "mapreduce",
				InstanceID: m.id,
				AgentRole:  "mapper",
				Index:      i,
			})
			if err != nil {
				return nil, err
			}
			var out string
			if err := mapper.Invoke(ctx, mapperPrompt(query, slot), &out); err != nil {
				return nil, err
			}
			return out, nil
		})
	}

	results, err := taskgroup.Run(ctx, tasks, m.onError == StopOnError)
	if err != nil {
		return nil, taskgroup.First(err)
	}

	outputs := make([]string, 0, len(results))
	for _, v := range taskgroup.Values(results) {
		outputs = append(outputs, v.(string))
	}
	m.logger.Debug("map phase finished",
		zap.String("mapreduce_id", m.id),
		zap.Int("chunks", len(chunks)),
		zap.Int("mappers", len(tasks)),
		zap.Int("succeeded", len(outputs)))
	return outputs, nil
}

func (m *MapReduce) reducePhase(ctx context.Context, query string, outputs []string) (string, error) {
	reducer, err := m.ensureReducer(ctx)
	if err != nil {
		return "", err
	}
	var out string
	if err := reducer.Invoke(ctx, reducerPrompt(query, outputs), &out); err != nil {
		return "", err
	}
	return out, nil
}

func (m *MapReduce) ensureReducer(ctx context.Context) (agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reducer != nil {
		return m.reducer, nil
	}
	reducer, err := spawn(ctx, m.rt, m.reducerRole, m.cfg.ReducerModel, agent.PatternInfo{
		Pattern:    "mapreduce",
		InstanceID: m.id,
		AgentRole:  "reducer",
	})
	if err != nil {
		return nil, err
	}
	m.reducer = reducer
	return reducer, nil
}

func mapperPrompt(query string, chunks []any) string {
	descs := make([]string, len(chunks))
	for i, c := range chunks {
		descs[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf("%s\n\nYour assigned chunks:\n%s\n\nProcess these chunks and return your analysis.",
		query, strings.Join(descs, "\n"))
}

func reducerPrompt(query string, outputs []string) string {
	return fmt.Sprintf("Original task: %s\n\nResults from %d mappers:\n\n%s\n\nSynthesize these results into a comprehensive final answer.",
		query, len(outputs), strings.Join(outputs, mapperOutputSeparator))
}
