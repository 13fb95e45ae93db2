// Package config 提供 semant-rag 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序合并，
// 环境变量使用 SEMANT_ 前缀，例如 SEMANT_LLM_BASE_URL、
// SEMANT_ORCHESTRATOR_MAX_CORRECTION_ATTEMPTS。
package config
