// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供泛型状态图的构建、执行与轨迹记录。

# 概述

一个 Workflow[S] 由若干命名节点（Stage[S]）、普通边和条件边组成。
节点读取状态快照并返回增量 Update[S]，运行器将增量合并进状态后沿边前进，
直到到达 END。图在构建后只读，可被并发请求共享。

# 核心类型

  - Stage / StageFunc:  节点：Run(ctx, state) Update
  - Update:             状态增量，只修改自己携带的字段
  - Router:             条件边的分支函数，返回分支键
  - Builder:            构建并校验图（未知节点、重复边、END 不可达）
  - Workflow:           编译后的不可变图，Source 标记来自配置或内置拓扑
  - Runner:             顺序执行器，支持步数上限与节点观察者
  - ExecutionHistory:   单次执行的节点轨迹
  - HistoryStore:       轨迹存储接口；MemoryHistoryStore 为内置实现

# 可视化

RenderASCII 与 RenderMermaid 输出图的文本形式，供 CLI 与 HTTP API 使用。
声明式 YAML 拓扑见子包 dsl。
*/
package workflow
