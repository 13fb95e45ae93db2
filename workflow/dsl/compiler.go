package dsl

import (
	"errors"
	"fmt"

	"github.com/DCGM/semant-demo/workflow"
)

// ErrConflictingEntry START 边与 entry_point 指向不同节点
var ErrConflictingEntry = errors.New("START edge conflicts with entry_point")

// DefaultWorkflowName 配置未指定 name 时使用
const DefaultWorkflowName = "workflow"

// CompileError 已通过结构校验的配置仍无法编译
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile workflow: %v", e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

func compileErr(format string, args ...any) error {
	return &CompileError{Err: fmt.Errorf(format, args...)}
}

// Compile 将 GraphConfig 与阶段/路由注册表组合为可执行 Workflow。
//
// 节点名称必须存在于 stages 中，条件边的 function 必须存在于 routers 中，
// 入口必须是已声明节点，且从入口出发必须能到达 END。
// 相同输入多次编译得到等价的 Workflow。
func Compile[S any, K ~string](cfg *GraphConfig, stages map[K]workflow.Stage[S], routers map[string]workflow.Router[S]) (*workflow.Workflow[S], error) {
	if cfg == nil {
		return nil, compileErr("config is nil")
	}

	entry, err := resolveEntry(cfg)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	declared := cfg.DeclaredNodes()
	isDeclared := make(map[string]bool, len(declared))
	for _, id := range declared {
		isDeclared[id] = true
	}
	if entry == "" {
		return nil, compileErr("%w: entry point not set", workflow.ErrEntryNotDeclared)
	}
	if !isDeclared[entry] {
		return nil, compileErr("%w: %s", workflow.ErrEntryNotDeclared, entry)
	}

	name := cfg.Name
	if name == "" {
		name = DefaultWorkflowName
	}
	b := workflow.NewBuilder[S](name)

	for _, id := range declared {
		stage, ok := stages[K(id)]
		if !ok {
			return nil, compileErr("%w: %s is not a registered stage", workflow.ErrUnknownNode, id)
		}
		b.AddNode(id, stage)
	}

	for i, e := range cfg.Edges {
		if e.From == workflow.Start {
			continue
		}
		if e.Conditional == nil {
			b.AddEdge(e.From, e.To)
			continue
		}
		router, ok := routers[e.Conditional.Function]
		if !ok {
			return nil, compileErr("%w: edge %d references router %q", workflow.ErrUnknownRouter, i, e.Conditional.Function)
		}
		b.AddConditionalEdge(e.From, e.Conditional.Function, router, e.Conditional.Branches)
	}
	b.SetEntry(entry)

	wf, err := b.Build(workflow.SourceConfig)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	return wf, nil
}

// resolveEntry 合并 entry_point 与 from: START 的边
func resolveEntry(cfg *GraphConfig) (string, error) {
	entry := cfg.EntryPoint
	for i, e := range cfg.Edges {
		if e.From != workflow.Start {
			continue
		}
		if e.Conditional != nil || e.To == "" {
			return "", fmt.Errorf("edge %d: START must have a plain 'to' target", i)
		}
		if entry != "" && entry != e.To {
			return "", fmt.Errorf("%w: %q vs %q", ErrConflictingEntry, entry, e.To)
		}
		entry = e.To
	}
	return entry, nil
}
