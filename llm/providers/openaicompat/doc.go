// Package openaicompat implements llm.Provider for any server speaking the
// OpenAI Chat Completions API: OpenAI itself, Ollama, vLLM or LM Studio.
//
// Calls are rate limited per provider and transient failures (429, 5xx,
// network errors) are retried with exponential backoff.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "ollama",
//	    BaseURL:      "http://localhost:11434/v1",
//	    DefaultModel: "llama3",
//	}, logger)
package openaicompat
