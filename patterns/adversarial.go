package patterns

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// DebateTurn is one recorded statement of a debate.
type DebateTurn struct {
	Round   int    `json:"round"`
	Role    string `json:"role"` // "advocate" or "adversary"
	Content string `json:"content"`
}

// DebateResult is the outcome of a debate. Verdict is empty unless a judge
// was configured and Resolve was called.
type DebateResult struct {
	Question       string       `json:"question"`
	AdvocateFinal  string       `json:"advocate_final"`
	AdversaryFinal string       `json:"adversary_final"`
	Verdict        string       `json:"verdict,omitempty"`
	History        []DebateTurn `json:"history"`
}

// AdversarialConfig configures an Adversarial.
type AdversarialConfig struct {
	JudgeRole      string // empty means no judge; Resolve returns both positions
	MaxRounds      int    // default 3
	AdvocateModel  string
	AdversaryModel string
	JudgeModel     string
	Logger         *zap.Logger
}

// Adversarial alternates an advocate and an adversary for a fixed number of
// rounds. The advocate opens each round, from round two onward seeing the
// adversary's previous critique; the adversary then critiques the advocate's
// current position. Both debater handles persist across rounds so each keeps
// its conversational memory; each Debate call starts with fresh debaters.
type Adversarial struct {
	rt            agent.Runtime
	id            string
	advocateRole  string
	adversaryRole string
	cfg           AdversarialConfig
	maxRounds     int
	logger        *zap.Logger

	mu    sync.Mutex
	judge agent.Agent
}

// NewAdversarial creates an Adversarial debate topology.
func NewAdversarial(rt agent.Runtime, advocateRole, adversaryRole string, cfg AdversarialConfig) (*Adversarial, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: adversarial requires a runtime")
	}
	if advocateRole == "" || adversaryRole == "" {
		return nil, fmt.Errorf("patterns: adversarial requires advocate and adversary roles")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 3
	}
	if cfg.MaxRounds < 1 {
		return nil, fmt.Errorf("patterns: max rounds must be positive, got %d", cfg.MaxRounds)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Adversarial{
		rt:            rt,
		id:            uuid.NewString(),
		advocateRole:  advocateRole,
		adversaryRole: adversaryRole,
		cfg:           cfg,
		maxRounds:     cfg.MaxRounds,
		logger:        cfg.Logger,
	}, nil
}

// Debate runs the full round sequence and returns both final positions with
// the complete turn history.
func (a *Adversarial) Debate(ctx context.Context, question string) (result *DebateResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "adversarial", a.id)
	defer span.End()
	defer func() { telemetry.CountExecution("adversarial", err) }()

	advocate, err := spawn(ctx, a.rt, a.advocateRole, a.cfg.AdvocateModel, agent.PatternInfo{
		Pattern:    "adversarial",
		InstanceID: a.id,
		AgentRole:  "advocate",
	})
	if err != nil {
		return nil, err
	}
	adversary, err := spawn(ctx, a.rt, a.adversaryRole, a.cfg.AdversaryModel, agent.PatternInfo{
		Pattern:    "adversarial",
		InstanceID: a.id,
		AgentRole:  "adversary",
	})
	if err != nil {
		return nil, err
	}

	var history []DebateTurn
	var advocatePosition, adversaryPosition string

	for round := 1; round <= a.maxRounds; round++ {
		var advocatePrompt string
		if round == 1 {
			advocatePrompt = fmt.Sprintf("Question: %s\n\nPresent your argument in favor. Be persuasive and thorough.", question)
		} else {
			advocatePrompt = fmt.Sprintf("Question: %s\n\nYour previous argument: %s\n\nAdversary's critique: %s\n\nRefine and strengthen your argument, addressing the critique.",
				question, advocatePosition, adversaryPosition)
		}
		if err := advocate.Invoke(ctx, advocatePrompt, &advocatePosition); err != nil {
			return nil, fmt.Errorf("patterns: advocate round %d: %w", round, err)
		}
		history = append(history, DebateTurn{Round: round, Role: "advocate", Content: advocatePosition})

		adversaryPrompt := fmt.Sprintf("Question: %s\n\nAdvocate's argument: %s\n\nCritique this argument. Find flaws, weaknesses, and counterarguments.",
			question, advocatePosition)
		if err := adversary.Invoke(ctx, adversaryPrompt, &adversaryPosition); err != nil {
			return nil, fmt.Errorf("patterns: adversary round %d: %w", round, err)
		}
		history = append(history, DebateTurn{Round: round, Role: "adversary", Content: adversaryPosition})
	}

	a.logger.Debug("debate finished",
		zap.String("adversarial_id", a.id),
		zap.Int("rounds", a.maxRounds))

	return &DebateResult{
		Question:       question,
		AdvocateFinal:  advocatePosition,
		AdversaryFinal: adversaryPosition,
		History:        history,
	}, nil
}

// Resolve runs a debate and, when a judge role is configured, has the judge
// pick the stronger position. Without a judge it behaves exactly like
// Debate.
func (a *Adversarial) Resolve(ctx context.Context, question string) (*DebateResult, error) {
	result, err := a.Debate(ctx, question)
	if err != nil {
		return nil, err
	}
	if a.cfg.JudgeRole == "" {
		return result, nil
	}

	judge, err := a.ensureJudge(ctx)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("You are judging a debate on: %s\n\nADVOCATE'S POSITION:\n%s\n\nADVERSARY'S POSITION:\n%s\n\nEvaluate both positions and decide which is stronger.\nProvide your verdict with reasoning.",
		question, result.AdvocateFinal, result.AdversaryFinal)
	if err := judge.Invoke(ctx, prompt, &result.Verdict); err != nil {
		return nil, fmt.Errorf("patterns: judge: %w", err)
	}
	return result, nil
}

func (a *Adversarial) ensureJudge(ctx context.Context) (agent.Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.judge != nil {
		return a.judge, nil
	}
	judge, err := spawn(ctx, a.rt, a.cfg.JudgeRole, a.cfg.JudgeModel, agent.PatternInfo{
		Pattern:    "adversarial",
		InstanceID: a.id,
		AgentRole:  "judge",
	})
	if err != nil {
		return nil, err
	}
	a.judge = judge
	return judge, nil
}
