// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 RAG 编排服务的 HTTP API 与服务器生命周期管理。

# 路由

  - POST /v1/query：执行一次查询，返回 orchestrator.QueryResult。
    处理失败时返回 500，data 中仍包含致歉回复与执行 ID。
  - GET /v1/executions/{id}：按执行 ID 返回节点轨迹。
  - GET /v1/graph：返回已编译工作流，format=json|ascii|mermaid。
  - GET /health：存活检查，附带工作流名称与来源。
  - GET /ready：运行已注册的就绪检查（Redis、数据库等）。
  - GET /metrics：Prometheus 指标。

# 核心类型

  - Manager：封装 net/http.Server，提供非阻塞 Start、阻塞式 Run
    与带超时的 Shutdown。
  - Handler：组装路由，外层中间件负责请求 ID、panic 恢复、
    访问日志与按路由模式记录的 HTTP 指标。
*/
package server
