// Package dsl 提供声明式工作流拓扑（YAML）的加载、结构校验与编译。
//
// Load/Parse 读取 GraphConfig，失败返回 *ConfigError；Validate 仅做结构检查并
// 逐条记录问题；Compile 在阶段注册表与路由注册表上解析节点和路由器，
// 生成不可变的 workflow.Workflow，失败返回 *CompileError。
package dsl
