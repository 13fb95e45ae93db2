package workflow

import (
	"fmt"
)

type conditionalSpec[S any] struct {
	from       string
	routerName string
	router     Router[S]
	branches   map[string]string
}

// Builder assembles a Workflow with a fluent API. All structural checks run
// in Build, so a returned Workflow is always runnable.
type Builder[S any] struct {
	name        string
	entry       string
	order       []string
	stages      map[string]Stage[S]
	edges       []Edge
	conditional []conditionalSpec[S]
	errs        []error
}

// NewBuilder creates an empty builder.
func NewBuilder[S any](name string) *Builder[S] {
	return &Builder[S]{
		name:   name,
		stages: make(map[string]Stage[S]),
	}
}

// AddNode registers a stage under id.
func (b *Builder[S]) AddNode(id string, stage Stage[S]) *Builder[S] {
	switch {
	case id == "" || id == End || id == Start:
		b.errs = append(b.errs, fmt.Errorf("%w: reserved or empty node id %q", ErrUnknownNode, id))
	case stage == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: node %q has no stage", ErrUnknownNode, id))
	default:
		if _, dup := b.stages[id]; dup {
			b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
			return b
		}
		b.stages[id] = stage
		b.order = append(b.order, id)
	}
	return b
}

// AddEdge adds an unconditional transition. to may be End.
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	b.edges = append(b.edges, Edge{From: from, To: to})
	return b
}

// AddConditionalEdge routes from a node through router. Branch destinations
// may be End.
func (b *Builder[S]) AddConditionalEdge(from, routerName string, router Router[S], branches map[string]string) *Builder[S] {
	copied := make(map[string]string, len(branches))
	for k, v := range branches {
		copied[k] = v
	}
	b.conditional = append(b.conditional, conditionalSpec[S]{
		from:       from,
		routerName: routerName,
		router:     router,
		branches:   copied,
	})
	return b
}

// SetEntry sets the first node to execute.
func (b *Builder[S]) SetEntry(id string) *Builder[S] {
	b.entry = id
	return b
}

// Build validates the graph and returns the compiled Workflow.
func (b *Builder[S]) Build(source Source) (*Workflow[S], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	wf := &Workflow[S]{
		name:        b.name,
		entry:       b.entry,
		source:      source,
		order:       append([]string(nil), b.order...),
		stages:      make(map[string]Stage[S], len(b.stages)),
		edges:       make(map[string]string, len(b.edges)),
		conditional: make(map[string]*ConditionalEdge[S], len(b.conditional)),
	}
	for id, st := range b.stages {
		wf.stages[id] = st
	}
	for _, e := range b.edges {
		wf.edges[e.From] = e.To
	}
	for _, c := range b.conditional {
		wf.conditional[c.from] = &ConditionalEdge[S]{
			From:       c.from,
			RouterName: c.routerName,
			Branches:   c.branches,
			router:     c.router,
		}
	}
	return wf, nil
}

func (b *Builder[S]) validate() error {
	if len(b.errs) > 0 {
		return b.errs[0]
	}

	if b.entry == "" {
		return fmt.Errorf("%w: entry point not set", ErrEntryNotDeclared)
	}
	if _, ok := b.stages[b.entry]; !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotDeclared, b.entry)
	}

	outgoing := make(map[string]int)
	for _, e := range b.edges {
		if _, ok := b.stages[e.From]; !ok {
			return fmt.Errorf("%w: edge source %q", ErrUnknownNode, e.From)
		}
		if err := b.checkTarget(e.From, e.To); err != nil {
			return err
		}
		outgoing[e.From]++
	}

	for _, c := range b.conditional {
		if _, ok := b.stages[c.from]; !ok {
			return fmt.Errorf("%w: conditional edge source %q", ErrUnknownNode, c.from)
		}
		if c.router == nil {
			return fmt.Errorf("%w: %q on node %s", ErrUnknownRouter, c.routerName, c.from)
		}
		if len(c.branches) == 0 {
			return fmt.Errorf("%w: node %s", ErrNoBranches, c.from)
		}
		for _, to := range c.branches {
			if err := b.checkTarget(c.from, to); err != nil {
				return err
			}
		}
		outgoing[c.from]++
	}

	for _, id := range b.order {
		if outgoing[id] > 1 {
			return fmt.Errorf("%w: %s", ErrDuplicateEdge, id)
		}
	}

	reachable, endReached := b.walk()
	if !endReached {
		return fmt.Errorf("%w: entry %s", ErrUnreachableEnd, b.entry)
	}
	// 可达节点必须有出边，否则只能在运行时以 ErrDeadEnd 失败
	for _, id := range b.order {
		if reachable[id] && outgoing[id] == 0 {
			return fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id)
		}
	}
	return nil
}

func (b *Builder[S]) checkTarget(from, to string) error {
	if to == End {
		return nil
	}
	if _, ok := b.stages[to]; !ok {
		return fmt.Errorf("%w: edge %s -> %q", ErrUnknownNode, from, to)
	}
	return nil
}

// walk follows every edge from the entry. It returns the set of reachable
// nodes and whether END is reachable through any branch.
func (b *Builder[S]) walk() (map[string]bool, bool) {
	adj := make(map[string][]string)
	for _, e := range b.edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	for _, c := range b.conditional {
		for _, to := range c.branches {
			adj[c.from] = append(adj[c.from], to)
		}
	}

	visited := map[string]bool{b.entry: true}
	endReached := false
	queue := []string{b.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if next == End {
				endReached = true
				continue
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited, endReached
}
