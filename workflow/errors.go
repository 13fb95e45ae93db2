package workflow

import "errors"

// Compile-time errors returned by Builder.Build.
var (
	ErrUnknownNode      = errors.New("unknown node")
	ErrUnknownRouter    = errors.New("unknown router")
	ErrEntryNotDeclared = errors.New("entry point is not a declared node")
	ErrUnreachableEnd   = errors.New("no path from entry point to END")
	ErrDuplicateEdge    = errors.New("node has more than one outgoing edge")
	ErrNoBranches       = errors.New("conditional edge has no branches")
	ErrDuplicateNode    = errors.New("duplicate node")
	ErrNoOutgoingEdge   = errors.New("reachable node has no outgoing edge")
)

// Run-time errors returned by Runner.Run.
var (
	ErrUnroutedBranch = errors.New("router returned a branch with no destination")
	ErrDeadEnd        = errors.New("node has no outgoing edge")
	ErrStepLimit      = errors.New("workflow exceeded step limit")
)
