package patterns

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// Handler is one link of a chain of responsibility: a role description, a
// predicate deciding whether it handles a query, and a priority (lower runs
// first).
type Handler struct {
	Role      string
	CanHandle func(query string) bool
	Priority  int
}

// ChainConfig configures a Chain.
type ChainConfig struct {
	Model  string
	Logger *zap.Logger
}

// Chain routes each query to the first handler, in ascending priority order,
// whose predicate matches. Only the matching handler's agent is ever
// spawned. A query no handler matches is a hard error; register a catch-all
// fallback handler to avoid it.
type Chain struct {
	rt       agent.Runtime
	handlers []Handler
	cfg      ChainConfig
	logger   *zap.Logger
	id       string
}

// NewChain creates a Chain, sorting handlers by ascending priority. The sort
// is stable so equal priorities keep their declared order.
func NewChain(rt agent.Runtime, handlers []Handler, cfg ChainConfig) (*Chain, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: chain requires a runtime")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("patterns: chain requires at least one handler")
	}
	for i, h := range handlers {
		if h.CanHandle == nil {
			return nil, fmt.Errorf("patterns: chain handler %d has no predicate", i)
		}
	}
	sorted := make([]Handler, len(handlers))
	copy(sorted, handlers)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Priority < sorted[b].Priority })
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Chain{
		rt:       rt,
		handlers: sorted,
		cfg:      cfg,
		logger:   cfg.Logger,
		id:       uuid.NewString(),
	}, nil
}

// Process dispatches query to the first matching handler and returns its
// agent's answer.
func (c *Chain) Process(ctx context.Context, query string) (result string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "chain", c.id)
	defer span.End()
	defer func() { telemetry.CountExecution("chain", err) }()

	for i, h := range c.handlers {
		if !h.CanHandle(query) {
			continue
		}
		c.logger.Debug("handler matched",
			zap.String("chain_id", c.id),
			zap.Int("handler", i),
			zap.Int("priority", h.Priority))

		a, err := spawn(ctx, c.rt, h.Role, c.cfg.Model, agent.PatternInfo{
			Pattern:    "chain",
			InstanceID: c.id,
			AgentRole:  "handler",
			Index:      i,
		})
		if err != nil {
			return "", err
		}
		var out string
		if err := a.Invoke(ctx, query, &out); err != nil {
			return "", err
		}
		return out, nil
	}

	return "", &NoHandlerError{Query: query}
}
