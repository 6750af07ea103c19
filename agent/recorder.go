package agent

import "context"

// Recorder is an optional observability sink. It is told about every agent a
// pattern creates and may return a wrapped handle (for example one that logs
// each Invoke). Record must be transparent: the returned Agent must honor the
// same contract as the one passed in.
type Recorder interface {
	Record(info PatternInfo, a Agent) Agent
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(info PatternInfo, a Agent) Agent

// Record calls f.
func (f RecorderFunc) Record(info PatternInfo, a Agent) Agent {
	return f(info, a)
}

type recordedRuntime struct {
	rt  Runtime
	rec Recorder
}

// WithRecorder wraps a Runtime so every spawned agent is passed through rec.
// A nil recorder returns rt unchanged. The recorder is called opportunistically:
// if it returns nil the original handle is used, so a misbehaving sink can
// never lose an agent.
func WithRecorder(rt Runtime, rec Recorder) Runtime {
	if rec == nil {
		return rt
	}
	return &recordedRuntime{rt: rt, rec: rec}
}

func (r *recordedRuntime) Spawn(ctx context.Context, spec SpawnSpec) (Agent, error) {
	a, err := r.rt.Spawn(ctx, spec)
	if err != nil {
		return nil, err
	}
	if wrapped := r.rec.Record(spec.Pattern, a); wrapped != nil {
		return wrapped, nil
	}
	return a, nil
}
