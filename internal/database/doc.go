// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的执行轨迹持久化与连接池管理。

# 概述

Open 按驱动（postgres / mysql / sqlite）选择 GORM 方言并包装为
PoolManager；HistoryStore 在其之上实现 workflow.HistoryStore，
把每次请求的 ExecutionHistory 写入 execution_histories 表。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 Ping/Stats/Close、
    后台健康检查与带退避重试的事务执行。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与健康检查间隔。
  - HistoryStore：AutoMigrate 表结构，Save 以 id 冲突时覆盖写入，
    Get 对未知 ID 返回 workflow.ErrHistoryNotFound。
  - ExecutionRecord：表记录，Payload 列保存完整 JSON 轨迹。
*/
package database
