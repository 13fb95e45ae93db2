// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package orchestrator 将 RAG 请求的各个阶段组织成一张有向图并执行。

# 阶段

注册表固定包含六个节点：query-analyzer、retrieval、evaluator、
correction-handler、response-generator 与 basic-response-generator。
每个阶段只调用一次协作者，失败或 panic 时返回降级更新，不会中断请求。

# 拓扑

边从 YAML 配置加载（见 workflow/dsl），配置不可用时退回内置拓扑。
evaluator 之后的条件边由 should_correct 路由器决定是否进入纠错循环，
correction-handler 每次执行都会增加 CorrectionAttempts，循环次数有上限。

# 生命周期

Orchestrator 在构造时编译工作流，之后只读并可被并发请求共享。
向量库句柄由 Orchestrator 持有，Close 时释放。
*/
package orchestrator
