package workflow

import (
	"context"
	"fmt"
	"sort"
)

// Reserved node names. They mark the graph boundaries and never carry a stage.
const (
	End   = "END"
	Start = "START"
)

// Source records where a compiled Workflow's topology came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceFallback Source = "fallback"
)

// Update is a partial state change returned by a stage. The runner applies it
// to the running state before choosing the next node.
type Update[S any] interface {
	Apply(state *S)
}

// Stage executes one node against a snapshot of the state.
type Stage[S any] interface {
	Run(ctx context.Context, state S) Update[S]
}

// StageFunc adapts a function to Stage.
type StageFunc[S any] func(ctx context.Context, state S) Update[S]

// Run calls f.
func (f StageFunc[S]) Run(ctx context.Context, state S) Update[S] {
	return f(ctx, state)
}

// Router inspects the state and returns a branch key. Routers must be pure.
type Router[S any] func(state S) string

// Edge is an unconditional transition.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ConditionalEdge routes from a node to one of several destinations.
type ConditionalEdge[S any] struct {
	From       string            `json:"from"`
	RouterName string            `json:"router"`
	Branches   map[string]string `json:"branches"`

	router Router[S]
}

// Route evaluates the router against state and resolves the destination.
func (c *ConditionalEdge[S]) Route(state S) (key, dest string, err error) {
	key = c.router(state)
	dest, ok := c.Branches[key]
	if !ok {
		return key, "", fmt.Errorf("%w: node %q router %q returned %q", ErrUnroutedBranch, c.From, c.RouterName, key)
	}
	return key, dest, nil
}

// Workflow is a compiled, immutable graph of stages. It is safe for
// concurrent use by any number of runs.
type Workflow[S any] struct {
	name        string
	entry       string
	source      Source
	order       []string
	stages      map[string]Stage[S]
	edges       map[string]string
	conditional map[string]*ConditionalEdge[S]
}

func (w *Workflow[S]) Name() string   { return w.name }
func (w *Workflow[S]) Entry() string  { return w.entry }
func (w *Workflow[S]) Source() Source { return w.source }

// IsFallback reports whether the workflow was built from the hardcoded topology.
func (w *Workflow[S]) IsFallback() bool { return w.source == SourceFallback }

// Nodes returns the node IDs in sorted order.
func (w *Workflow[S]) Nodes() []string {
	out := make([]string, 0, len(w.stages))
	for id := range w.stages {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasNode reports whether id is a compiled node.
func (w *Workflow[S]) HasNode(id string) bool {
	_, ok := w.stages[id]
	return ok
}

// Edges returns the direct edges sorted by source.
func (w *Workflow[S]) Edges() []Edge {
	out := make([]Edge, 0, len(w.edges))
	for from, to := range w.edges {
		out = append(out, Edge{From: from, To: to})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// ConditionalEdges returns copies of the conditional edges sorted by source.
// The copies carry no router and are meant for inspection.
func (w *Workflow[S]) ConditionalEdges() []ConditionalEdge[S] {
	out := make([]ConditionalEdge[S], 0, len(w.conditional))
	for _, c := range w.conditional {
		branches := make(map[string]string, len(c.Branches))
		for k, v := range c.Branches {
			branches[k] = v
		}
		out = append(out, ConditionalEdge[S]{From: c.From, RouterName: c.RouterName, Branches: branches})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// Successors lists every destination reachable in one step from id, in a
// stable order.
func (w *Workflow[S]) Successors(id string) []string {
	if to, ok := w.edges[id]; ok {
		return []string{to}
	}
	c, ok := w.conditional[id]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(c.Branches))
	for k := range c.Branches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Branches[k])
	}
	return out
}

// next resolves the node that follows id given the merged state.
func (w *Workflow[S]) next(id string, state S) (dest, branch string, err error) {
	if to, ok := w.edges[id]; ok {
		return to, "", nil
	}
	if c, ok := w.conditional[id]; ok {
		key, to, err := c.Route(state)
		return to, key, err
	}
	return "", "", fmt.Errorf("%w: %s", ErrDeadEnd, id)
}
