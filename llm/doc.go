// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、请求/响应模型与错误语义。

# 概述

RAG 各阶段（查询分析、检索评估、查询改写、回答生成）只依赖 Provider 接口，
具体实现位于 providers/openaicompat（OpenAI 兼容协议，可对接 Ollama、vLLM、
OpenAI 等）。嵌入模型位于 embedding 子包，Token 计数位于 tokenizer 子包，
重试策略位于 retry 子包。

# 错误语义

所有上游错误统一映射为 *Error，携带 ErrorCode、HTTP 状态与 Retryable 标记，
由 retry 子包据此决定是否重试。
*/
package llm
