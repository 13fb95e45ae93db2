// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供测试共享的工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext
  - 文件: WriteFile 在临时目录写入工作流、代理与文档配置

# 子包

  - testutil/mocks: MockProvider（LLM Provider，支持按提示词路由响应与错误注入）、
    MockSearcher（向量库句柄，记录查询与 Close 次数）、MockEmbedder（确定性词袋嵌入）
  - testutil/fixtures: 模型 JSON 输出样例与知识库文档样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse(fixtures.AnalysisJSON(true, "algebra"))
	searcher := mocks.NewMockSearcher(fixtures.AlgebraDocuments()...)
*/
package testutil
