package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
	"github.com/hivekit-dev/hivekit/taskgroup"
)

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event is one message published on the bus.
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Subscriber declares the event types one agent reacts to.
type Subscriber struct {
	Role       string
	EventTypes []string
}

// EventDrivenConfig configures an EventDriven bus.
type EventDrivenConfig struct {
	Model  string
	Logger *zap.Logger
}

// EventDriven dispatches published events concurrently to every subscriber
// whose declared types match, spawning one agent per matching subscriber per
// publish. Dispatch runs in partial-results mode: a failed subscriber leaves
// a nil placeholder at its position instead of failing the publish.
type EventDriven struct {
	rt          agent.Runtime
	subscribers []Subscriber
	cfg         EventDrivenConfig
	logger      *zap.Logger
	id          string
}

// NewEventDriven creates an event bus over the given subscribers.
func NewEventDriven(rt agent.Runtime, subscribers []Subscriber, cfg EventDrivenConfig) (*EventDriven, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: event bus requires a runtime")
	}
	for i, s := range subscribers {
		if len(s.EventTypes) == 0 {
			return nil, fmt.Errorf("patterns: subscriber %d declares no event types", i)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &EventDriven{
		rt:          rt,
		subscribers: subscribers,
		cfg:         cfg,
		logger:      cfg.Logger,
		id:          uuid.NewString(),
	}, nil
}

// Publish dispatches event to all matching subscribers and returns their
// results in subscriber order. With no matching subscriber it returns an
// empty slice without spawning anything.
func (e *EventDriven) Publish(ctx context.Context, event Event) (results []any, err error) {
	ctx, span := telemetry.StartSpan(ctx, "eventdriven", e.id)
	defer span.End()
	defer func() { telemetry.CountExecution("eventdriven", err) }()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var matching []int
	for i, s := range e.subscribers {
		if matches(s, event) {
			matching = append(matching, i)
		}
	}
	if len(matching) == 0 {
		e.logger.Debug("event had no subscribers",
			zap.String("bus_id", e.id),
			zap.String("event_type", event.Type))
		return []any{}, nil
	}

	tasks := make([]taskgroup.Task, len(matching))
	for slot, idx := range matching {
		idx := idx
		tasks[slot] = func(ctx context.Context) (any, error) {
			sub := e.subscribers[idx]
			a, err := spawn(ctx, e.rt, sub.Role, e.cfg.Model, agent.PatternInfo{
				Pattern:    "eventdriven",
				InstanceID: e.id,
				AgentRole:  "subscriber",
				Index:      idx,
			})
			if err != nil {
				return nil, err
			}
			prompt := fmt.Sprintf("Event received:\nType: %s\nPayload: %v\nTimestamp: %s\n\nHandle this event according to your role.",
				event.Type, event.Payload, event.Timestamp.Format(time.RFC3339))
			var out string
			if err := a.Invoke(ctx, prompt, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	}

	dispatched, _ := taskgroup.Run(ctx, tasks, false)
	out := make([]any, len(dispatched))
	for i, r := range dispatched {
		if r.Err != nil {
			e.logger.Warn("subscriber failed",
				zap.String("bus_id", e.id),
				zap.String("event_type", event.Type),
				zap.Int("subscriber", matching[i]),
				zap.Error(r.Err))
			continue
		}
		out[i] = r.Value
	}
	return out, nil
}

func matches(s Subscriber, event Event) bool {
	for _, t := range s.EventTypes {
		if t == Wildcard || t == event.Type {
			return true
		}
	}
	return false
}
