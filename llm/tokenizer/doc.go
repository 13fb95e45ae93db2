// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package tokenizer 提供统一的 Token 计数与截断接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于回答生成时的上下文预算管理。
package tokenizer
