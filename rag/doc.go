// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供 RAG 请求编排所调用的各阶段协作组件及其数据类型。

编排器只依赖这些组件的方法签名；每个组件发起一次外部调用
（LLM、嵌入模型或向量库），返回结构化结果或错误，降级策略由编排器负责。

# 核心接口/类型

  - QueryAnalysis / RetrievedInformation / EvaluationResults / GeneratedResponse: 各阶段输出
  - DocumentSearcher: 检索所依赖的向量库句柄（SimilaritySearch / Close）
  - AgentsConfig: config/agents.yaml 中的提示词与检索参数

# 主要能力

  - 查询分析：判断查询有效性并改写检索查询（QueryAnalyzer）
  - 知识库检索与查询改写（Retriever）
  - 检索质量评估：打分并决定是否需要纠错（Evaluator）
  - 回答生成：按 token 预算截断检索上下文后调用模型（ResponseGenerator）
  - 向量库：Weaviate（nearText，失败时回退 BM25）与内存存储（MemoryStore）
*/
package rag
