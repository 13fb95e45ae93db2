// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的 RAG 服务指标采集能力。

# 概述

Collector 通过 promauto 自动注册指标，按 namespace 隔离。
它实现了 orchestrator.Recorder，由编排器在每个节点、每次请求
结束时回调；HTTP 中间件通过 RecordHTTPRequest 记录接口调用。

# 主要指标

  - rag_queries_total / rag_query_duration_seconds：请求结果与耗时。
  - rag_stage_duration_seconds：按 workflow/node 分组的阶段耗时。
  - rag_stage_degradations_total：阶段降级次数。
  - rag_correction_attempts：每个请求的纠错次数分布。
  - rag_workflow_info：当前工作流名称与来源（config / fallback）。
  - http_requests_total / http_request_duration_seconds。
*/
package metrics
