package dsl

import "github.com/DCGM/semant-demo/workflow"

// GraphConfig 声明式工作流拓扑
//
//	entry_point: query-analyzer
//	edges:
//	  - from: query-analyzer
//	    to: retrieval
//	  - from: evaluator
//	    conditional:
//	      function: should_correct
//	      branches:
//	        correct: correction-handler
//	        proceed: response-generator
type GraphConfig struct {
	// Name 工作流名称（可选）
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// EntryPoint 入口节点；也可通过 from: START 的边声明
	EntryPoint string `yaml:"entry_point" json:"entry_point"`
	// Nodes 显式声明的节点（可选，边中出现的节点会自动声明）
	Nodes []string `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	// Edges 边列表；nil 表示配置缺失 edges 字段
	Edges []EdgeConfig `yaml:"edges" json:"edges"`
}

// EdgeConfig 单条边：直连 (to) 或条件 (conditional) 二选一
type EdgeConfig struct {
	From        string             `yaml:"from" json:"from"`
	To          string             `yaml:"to,omitempty" json:"to,omitempty"`
	Conditional *ConditionalConfig `yaml:"conditional,omitempty" json:"conditional,omitempty"`
}

// ConditionalConfig 条件边定义
type ConditionalConfig struct {
	// Function 路由器名称，编译时在路由注册表中解析
	Function string `yaml:"function" json:"function"`
	// Branches 分支键 → 目标节点（可为 END）
	Branches map[string]string `yaml:"branches" json:"branches"`
}

// IsConditional 是否为条件边
func (e EdgeConfig) IsConditional() bool {
	return e.Conditional != nil
}

func isSentinel(id string) bool {
	return id == workflow.End || id == workflow.Start
}

// DeclaredNodes 返回声明的节点（显式 nodes + 边端点），按首次出现顺序，不含 START/END
func (c *GraphConfig) DeclaredNodes() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || isSentinel(id) || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, n := range c.Nodes {
		add(n)
	}
	for _, e := range c.Edges {
		add(e.From)
		add(e.To)
		if e.Conditional != nil {
			for _, k := range sortedBranchKeys(e.Conditional.Branches) {
				add(e.Conditional.Branches[k])
			}
		}
	}
	return out
}
