// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供统一的文本嵌入（Embedding）接口，
用于将文本转换为向量表示以支持内存向量库的语义检索。

# 核心接口

  - Provider：统一嵌入接口，定义 EmbedQuery、EmbedDocuments 方法。
  - OpenAIProvider：基于 OpenAI 兼容 /embeddings 端点的实现，
    同样适用于 Ollama、vLLM 等本地服务。

# 使用方式

	provider := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		BaseURL: "http://localhost:11434/v1",
		Model:   "nomic-embed-text",
	}, logger)

	vec, err := provider.EmbedQuery(ctx, "搜索关键词")
	vecs, err := provider.EmbedDocuments(ctx, []string{"文档1", "文档2"})
*/
package embedding
