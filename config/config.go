// Package config loads declarative YAML definitions of coordination patterns
// and builds ready-to-run pattern instances from them.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/aggregate"
	"github.com/hivekit-dev/hivekit/consensus"
	"github.com/hivekit-dev/hivekit/patterns"
)

// File is the top-level YAML document: named pattern definitions plus
// runtime defaults.
type File struct {
	DefaultModel string         `yaml:"default_model"`
	Patterns     map[string]Def `yaml:"patterns"`
}

// Def is one pattern definition. Type selects which of the per-pattern
// sections applies.
type Def struct {
	Type  string `yaml:"type"` // swarm, jury, mapreduce, chain, circuitbreaker
	Model string `yaml:"model"`

	// Swarm
	Perspectives  []string `yaml:"perspectives"`
	AggregateMode string   `yaml:"aggregate_mode"`
	Separator     string   `yaml:"separator"`
	Deduplicate   bool     `yaml:"deduplicate"`
	FailFast      bool     `yaml:"fail_fast"`

	// Jury
	NumJurors    int       `yaml:"num_jurors"`
	Mode         string    `yaml:"mode"`
	Threshold    float64   `yaml:"threshold"`
	Weights      []float64 `yaml:"weights"`
	Role         string    `yaml:"role"`
	Roles        []string  `yaml:"roles"`
	AllowPartial bool      `yaml:"allow_partial"`
	MinJurors    int       `yaml:"min_jurors"`

	// MapReduce
	MapperRole  string `yaml:"mapper_role"`
	ReducerRole string `yaml:"reducer_role"`
	NumMappers  int    `yaml:"num_mappers"`

	// Chain
	Handlers []HandlerDef `yaml:"handlers"`

	// CircuitBreaker
	PrimaryRole  string        `yaml:"primary_role"`
	FallbackRole string        `yaml:"fallback_role"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// HandlerDef is one chain handler. Match is a keyword the query must contain
// (case-sensitive); an empty Match makes the handler a catch-all.
type HandlerDef struct {
	Role     string `yaml:"role"`
	Match    string `yaml:"match"`
	Priority int    `yaml:"priority"`
}

// Load reads and validates a pattern definition file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates YAML pattern definitions.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	for name, def := range f.Patterns {
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("config: pattern %q: %w", name, err)
		}
	}
	return &f, nil
}

func (d Def) validate() error {
	switch d.Type {
	case "swarm":
		if len(d.Perspectives) == 0 {
			return fmt.Errorf("swarm requires perspectives")
		}
	case "jury":
		if d.NumJurors < 1 {
			return fmt.Errorf("jury requires num_jurors >= 1")
		}
		if d.Weights != nil && len(d.Weights) != d.NumJurors {
			return fmt.Errorf("%d weights for %d jurors", len(d.Weights), d.NumJurors)
		}
	case "mapreduce":
		if d.MapperRole == "" || d.ReducerRole == "" {
			return fmt.Errorf("mapreduce requires mapper_role and reducer_role")
		}
	case "chain":
		if len(d.Handlers) == 0 {
			return fmt.Errorf("chain requires handlers")
		}
	case "circuitbreaker":
		if d.PrimaryRole == "" || d.FallbackRole == "" {
			return fmt.Errorf("circuitbreaker requires primary_role and fallback_role")
		}
	default:
		return fmt.Errorf("unknown pattern type %q", d.Type)
	}
	return nil
}

// Build constructs the pattern a definition describes. The returned value is
// one of *patterns.Swarm, *patterns.Jury, *patterns.MapReduce,
// *patterns.Chain, or *patterns.CircuitBreaker.
func (f *File) Build(name string, rt agent.Runtime) (any, error) {
	def, ok := f.Patterns[name]
	if !ok {
		return nil, fmt.Errorf("config: no pattern named %q", name)
	}
	model := def.Model
	if model == "" {
		model = f.DefaultModel
	}

	switch def.Type {
	case "swarm":
		onError := patterns.ContinueOnError
		if def.FailFast {
			onError = patterns.StopOnError
		}
		return patterns.NewSwarm(rt, def.Perspectives, patterns.SwarmConfig{
			AggregateMode: aggregate.Mode(def.AggregateMode),
			Separator:     def.Separator,
			Deduplicate:   def.Deduplicate,
			OnError:       onError,
			Model:         model,
		})
	case "jury":
		return patterns.NewJury(rt, def.NumJurors, patterns.JuryConfig{
			Mode:         consensus.Mode(def.Mode),
			Threshold:    def.Threshold,
			Weights:      def.Weights,
			Role:         def.Role,
			Roles:        def.Roles,
			Model:        model,
			AllowPartial: def.AllowPartial,
			MinJurors:    def.MinJurors,
		})
	case "mapreduce":
		onError := patterns.StopOnError
		if def.AllowPartial {
			onError = patterns.ContinueOnError
		}
		return patterns.NewMapReduce(rt, def.MapperRole, def.ReducerRole, patterns.MapReduceConfig{
			NumMappers:   def.NumMappers,
			OnError:      onError,
			MapperModel:  model,
			ReducerModel: model,
		})
	case "chain":
		handlers := make([]patterns.Handler, len(def.Handlers))
		for i, hd := range def.Handlers {
			handlers[i] = patterns.Handler{
				Role:      hd.Role,
				CanHandle: matcher(hd.Match),
				Priority:  hd.Priority,
			}
		}
		return patterns.NewChain(rt, handlers, patterns.ChainConfig{Model: model})
	case "circuitbreaker":
		return patterns.NewCircuitBreaker(rt, def.PrimaryRole, def.FallbackRole, patterns.CircuitBreakerConfig{
			MaxFailures:   def.MaxFailures,
			ResetTimeout:  def.ResetTimeout,
			PrimaryModel:  model,
			FallbackModel: model,
		})
	}
	return nil, fmt.Errorf("config: unknown pattern type %q", def.Type)
}

func matcher(keyword string) func(string) bool {
	if keyword == "" {
		return func(string) bool { return true }
	}
	return func(q string) bool { return strings.Contains(q, keyword) }
}
