package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LocalRuntime is a single-process Runtime backed by an OpenAI-compatible
// chat completion API. Each spawned agent holds the role description as its
// system prompt; Invoke sends one user message and decodes the reply.
//
// LocalRuntime applies an optional rate limit across all agents it spawns so
// a wide fan-out pattern cannot stampede the model endpoint. It performs no
// retries; transient API failures surface to the calling pattern, which
// applies its own fail-fast or partial-results policy.
type LocalRuntime struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// LocalRuntimeOption configures a LocalRuntime.
type LocalRuntimeOption func(*LocalRuntime)

// WithDefaultModel sets the model used when a SpawnSpec does not pin one.
func WithDefaultModel(model string) LocalRuntimeOption {
	return func(r *LocalRuntime) { r.model = model }
}

// WithRateLimit caps model calls at n per second across all spawned agents.
func WithRateLimit(n float64, burst int) LocalRuntimeOption {
	return func(r *LocalRuntime) { r.limiter = rate.NewLimiter(rate.Limit(n), burst) }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) LocalRuntimeOption {
	return func(r *LocalRuntime) { r.logger = logger }
}

// NewLocalRuntime creates a LocalRuntime from an API key.
func NewLocalRuntime(apiKey string, opts ...LocalRuntimeOption) (*LocalRuntime, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("agent: api key required")
	}
	r := &LocalRuntime{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Spawn creates a chat-backed agent bound to spec.Role.
func (r *LocalRuntime) Spawn(ctx context.Context, spec SpawnSpec) (Agent, error) {
	if strings.TrimSpace(spec.Role) == "" {
		return nil, fmt.Errorf("agent: role description required")
	}
	model := spec.Model
	if model == "" {
		model = r.model
	}
	r.logger.Debug("spawning agent",
		zap.String("pattern", spec.Pattern.Pattern),
		zap.String("instance_id", spec.Pattern.InstanceID),
		zap.String("agent_role", spec.Pattern.AgentRole),
		zap.String("model", model),
	)
	return &chatAgent{rt: r, role: spec.Role, model: model}, nil
}

type chatAgent struct {
	rt    *LocalRuntime
	role  string
	model string
}

func (a *chatAgent) Invoke(ctx context.Context, prompt string, out any) error {
	if a.rt.limiter != nil {
		if err := a.rt.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.role},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// Structured shapes get JSON mode; plain text does not.
	if _, ok := out.(*string); !ok {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.rt.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("agent: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("agent: empty completion response")
	}
	return DecodeReply(resp.Choices[0].Message.Content, out)
}

// DecodeReply decodes a raw model reply into out, a non-nil pointer. A
// *string target receives the reply verbatim; any other target is decoded as
// JSON, tolerating a markdown code fence around the payload.
func DecodeReply(reply string, out any) error {
	if s, ok := out.(*string); ok {
		*s = reply
		return nil
	}
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("agent: decoding reply into %T: %w", out, err)
	}
	return nil
}
