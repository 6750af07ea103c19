package patterns

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/consensus"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
	"github.com/hivekit-dev/hivekit/taskgroup"
)

const defaultJurorRole = "You are an expert evaluator. Provide your honest assessment."

// JuryConfig configures a Jury.
type JuryConfig struct {
	Mode      consensus.Mode    // voting rule, default Majority
	Threshold float64           // required share for Threshold mode
	Weights   []float64         // per-juror weights, nil = equal
	Role      string            // one role for every juror
	Roles     []string          // per-juror roles, overrides Role
	Key       consensus.KeyFunc // key extraction for structured votes
	Model     string

	// AllowPartial tolerates juror failures as long as at least MinJurors
	// succeed. MinJurors defaults to the full juror count.
	AllowPartial bool
	MinJurors    int

	// Debug retains the raw vote list of the last decision.
	Debug  bool
	Logger *zap.Logger
}

// Jury has N independent jurors vote on a question and decides the verdict
// through a consensus rule.
type Jury struct {
	rt        agent.Runtime
	numJurors int
	cfg       JuryConfig
	cons      *consensus.Consensus
	minJurors int
	logger    *zap.Logger
	id        string

	mu        sync.Mutex
	lastVotes []any
}

// NewJury creates a Jury of numJurors voters.
func NewJury(rt agent.Runtime, numJurors int, cfg JuryConfig) (*Jury, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: jury requires a runtime")
	}
	if numJurors < 1 {
		return nil, fmt.Errorf("patterns: jury requires at least one juror, got %d", numJurors)
	}
	if cfg.Weights != nil && len(cfg.Weights) != numJurors {
		return nil, fmt.Errorf("patterns: %d weights for %d jurors", len(cfg.Weights), numJurors)
	}
	if cfg.Roles != nil && len(cfg.Roles) != numJurors {
		return nil, fmt.Errorf("patterns: %d roles for %d jurors", len(cfg.Roles), numJurors)
	}
	if cfg.Mode == "" {
		cfg.Mode = consensus.Majority
	}
	var opts []consensus.Option
	if cfg.Key != nil {
		opts = append(opts, consensus.WithKey(cfg.Key))
	}
	cons, err := consensus.New(cfg.Mode, cfg.Threshold, opts...)
	if err != nil {
		return nil, err
	}
	minJurors := cfg.MinJurors
	if minJurors == 0 {
		minJurors = numJurors
	}
	if minJurors < 1 || minJurors > numJurors {
		return nil, fmt.Errorf("patterns: min jurors %d out of range for %d jurors", minJurors, numJurors)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Jury{
		rt:        rt,
		numJurors: numJurors,
		cfg:       cfg,
		cons:      cons,
		minJurors: minJurors,
		logger:    cfg.Logger,
		id:        uuid.NewString(),
	}, nil
}

// Decide collects one vote per juror concurrently and returns the consensus
// verdict. Vote payloads decode as free-form JSON, so jurors may answer with
// booleans, strings, numbers, or structured records; supply a Key in the
// config for structured votes.
func (j *Jury) Decide(ctx context.Context, question string) (verdict any, err error) {
	ctx, span := telemetry.StartSpan(ctx, "jury", j.id)
	defer span.End()
	defer func() { telemetry.CountExecution("jury", err) }()

	tasks := make([]taskgroup.Task, j.numJurors)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (any, error) {
			juror, err := spawn(ctx, j.rt, j.jurorRole(i), j.cfg.Model, agent.PatternInfo{
				Pattern:    "jury",
				InstanceID: j.id,
				AgentRole:  "juror",
				Index:      i,
			})
			if err != nil {
				return nil, err
			}
			var vote any
			if err := juror.Invoke(ctx, question, &vote); err != nil {
				return nil, err
			}
			return vote, nil
		}
	}

	votes, weights, err := j.collect(ctx, tasks)
	if err != nil {
		return nil, err
	}

	if j.cfg.Debug {
		j.mu.Lock()
		j.lastVotes = votes
		j.mu.Unlock()
	}
	j.logger.Debug("jury votes collected",
		zap.String("jury_id", j.id),
		zap.Int("jurors", j.numJurors),
		zap.Int("votes", len(votes)))

	return j.cons.Decide(votes, weights)
}

// collect gathers votes under the configured failure policy. In partial mode
// each surviving vote keeps its juror's weight, so weighted voting still
// works when some jurors fail.
func (j *Jury) collect(ctx context.Context, tasks []taskgroup.Task) ([]any, []float64, error) {
	if !j.cfg.AllowPartial {
		results, err := taskgroup.Run(ctx, tasks, true)
		if err != nil {
			return nil, nil, taskgroup.First(err)
		}
		votes := make([]any, len(results))
		for i, r := range results {
			votes[i] = r.Value
		}
		return votes, j.cfg.Weights, nil
	}

	results, _ := taskgroup.Run(ctx, tasks, false)
	var votes []any
	var weights []float64
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		votes = append(votes, r.Value)
		if j.cfg.Weights != nil {
			weights = append(weights, j.cfg.Weights[i])
		}
	}
	if len(votes) < j.minJurors {
		return nil, nil, &QuorumError{Succeeded: len(votes), Required: j.minJurors}
	}
	return votes, weights, nil
}

// LastVotes returns the raw votes from the most recent decision. Votes are
// only retained when the config has Debug set.
func (j *Jury) LastVotes() []any {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]any, len(j.lastVotes))
	copy(out, j.lastVotes)
	return out
}

func (j *Jury) jurorRole(i int) string {
	if j.cfg.Roles != nil {
		return j.cfg.Roles[i]
	}
	if j.cfg.Role != "" {
		return j.cfg.Role
	}
	return defaultJurorRole
}
