package dsl

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ValidationDefect 配置中的单个结构性问题
type ValidationDefect struct {
	// Edge 边索引；配置级问题为 -1
	Edge    int
	Message string
}

func (d ValidationDefect) Error() string {
	if d.Edge < 0 {
		return d.Message
	}
	return fmt.Sprintf("edge %d: %s", d.Edge, d.Message)
}

// Defects 返回配置的所有结构性问题。
// 仅做结构检查，不校验节点/路由器是否已注册（编译阶段负责）。
func Defects(cfg *GraphConfig) []ValidationDefect {
	if cfg == nil {
		return []ValidationDefect{{Edge: -1, Message: "config is nil"}}
	}
	if cfg.Edges == nil {
		return []ValidationDefect{{Edge: -1, Message: "edges list is missing"}}
	}

	var defects []ValidationDefect
	for i, e := range cfg.Edges {
		if e.From == "" {
			defects = append(defects, ValidationDefect{Edge: i, Message: "missing 'from'"})
		}

		if e.Conditional == nil {
			if e.To == "" {
				defects = append(defects, ValidationDefect{Edge: i, Message: "needs either 'to' or 'conditional'"})
			}
			continue
		}

		if e.To != "" {
			defects = append(defects, ValidationDefect{Edge: i, Message: "declares both 'to' and 'conditional'"})
		}
		if e.Conditional.Function == "" {
			defects = append(defects, ValidationDefect{Edge: i, Message: "conditional edge missing router 'function'"})
		}
		if len(e.Conditional.Branches) == 0 {
			defects = append(defects, ValidationDefect{Edge: i, Message: "conditional edge missing 'branches'"})
		}
	}
	return defects
}

// Validate 校验配置结构，不抛错；每个问题记录一条 Warn 日志
func Validate(cfg *GraphConfig, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	defects := Defects(cfg)
	for _, d := range defects {
		logger.Warn("invalid workflow config", zap.Int("edge", d.Edge), zap.String("defect", d.Message))
	}
	return len(defects) == 0
}

func sortedBranchKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
