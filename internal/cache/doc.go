// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的执行轨迹存储，实现 workflow.HistoryStore。

# 概述

每次请求的 ExecutionHistory 以 JSON 写入 "<prefix><execution_id>" 键，
按配置的 TTL 过期，供 HTTP 接口与 CLI 按执行 ID 回查。
Manager 负责连接生命周期管理，包括初始化 Ping、后台健康检查与优雅关闭。

# 核心类型

  - Manager：持有 go-redis 客户端，提供 Save/Get/Delete/Ping/Close。
  - Config：地址、密码、键前缀、TTL、连接池大小与健康检查间隔。

# 错误语义

  - 未知执行 ID 返回 workflow.ErrHistoryNotFound。
  - 关闭后的任何操作返回 ErrClosed。
*/
package cache
