package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxSteps bounds the number of node executions in a single run.
const DefaultMaxSteps = 100

const tracerName = "github.com/DCGM/semant-demo/workflow"

// NodeObserver receives per-node timings.
type NodeObserver interface {
	ObserveNode(workflow, node string, d time.Duration)
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	maxSteps int
	tracer   trace.Tracer
	observer NodeObserver
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) RunnerOption {
	return func(c *runnerConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithTracer sets the tracer used for node spans.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(c *runnerConfig) { c.tracer = t }
}

// WithObserver registers a NodeObserver.
func WithObserver(o NodeObserver) RunnerOption {
	return func(c *runnerConfig) { c.observer = o }
}

// Runner interprets a compiled Workflow against one state value.
//
// Nodes run strictly one after another. After each node the runner applies
// the returned Update and only then resolves the outgoing edge, so routers
// always see the merged state. Cancellation is checked before every node and
// never interrupts a running stage.
type Runner[S any] struct {
	cfg    runnerConfig
	logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner[S any](logger *zap.Logger, opts ...RunnerOption) *Runner[S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := runnerConfig{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	return &Runner[S]{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "workflow_runner")),
	}
}

// Run executes wf from its entry point until a transition resolves to END.
func (r *Runner[S]) Run(ctx context.Context, wf *Workflow[S], initial S) (S, error) {
	return r.RunWithHistory(ctx, wf, initial, nil)
}

// RunWithHistory is Run with node-level recording into history. history may
// be nil.
func (r *Runner[S]) RunWithHistory(ctx context.Context, wf *Workflow[S], initial S, history *ExecutionHistory) (S, error) {
	state := initial
	if wf == nil {
		return state, fmt.Errorf("workflow is nil")
	}

	current := wf.entry
	for step := 0; ; step++ {
		if step >= r.cfg.maxSteps {
			return state, fmt.Errorf("%w: %d", ErrStepLimit, r.cfg.maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("workflow cancelled before node %s: %w", current, err)
		}

		stage, ok := wf.stages[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrUnknownNode, current)
		}

		var rec *NodeExecution
		if history != nil {
			rec = history.RecordNodeStart(current)
		}

		state = r.execNode(ctx, wf, current, stage, state)

		next, branch, err := wf.next(current, state)
		if rec != nil {
			history.RecordNodeEnd(rec, next, branch, err)
		}
		if err != nil {
			r.logger.Error("workflow transition failed",
				zap.String("workflow", wf.name),
				zap.String("node", current),
				zap.Error(err),
			)
			return state, err
		}
		if branch != "" {
			r.logger.Debug("conditional edge resolved",
				zap.String("node", current),
				zap.String("branch", branch),
				zap.String("next", next),
			)
		}
		if next == End {
			return state, nil
		}
		current = next
	}
}

func (r *Runner[S]) execNode(ctx context.Context, wf *Workflow[S], id string, stage Stage[S], state S) S {
	ctx, span := r.cfg.tracer.Start(ctx, "workflow.node "+id,
		trace.WithAttributes(
			attribute.String("workflow.name", wf.name),
			attribute.String("workflow.node", id),
		),
	)
	defer span.End()

	start := time.Now()
	r.logger.Debug("executing node", zap.String("node", id))

	update := stage.Run(ctx, state)
	if update != nil {
		update.Apply(&state)
	}

	d := time.Since(start)
	span.SetStatus(codes.Ok, "")
	r.logger.Debug("node completed", zap.String("node", id), zap.Duration("duration", d))
	if r.cfg.observer != nil {
		r.cfg.observer.ObserveNode(wf.name, id, d)
	}
	return state
}
