package rag

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt keys in the agents file.
const (
	PromptAnalysis           = "analysis_prompt"
	PromptRefinement         = "refinement_prompt"
	PromptEvaluation         = "evaluation_prompt"
	PromptResponseGeneration = "response_generation_prompt"
)

// DefaultMaxResultsPerSource 未配置 max_results_per_source 时的检索条数
const DefaultMaxResultsPerSource = 1

// ErrPromptNotFound 代理配置缺少所需提示词
var ErrPromptNotFound = errors.New("prompt not found")

// AgentConfig 单个代理的提示词配置
type AgentConfig struct {
	Prompts map[string]string `yaml:"prompts"`
}

// Prompt 返回指定键的提示词
func (c AgentConfig) Prompt(key string) (string, error) {
	p := strings.TrimSpace(c.Prompts[key])
	if p == "" {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, key)
	}
	return c.Prompts[key], nil
}

// RetrievalAgentConfig 检索代理配置
type RetrievalAgentConfig struct {
	AgentConfig         `yaml:",inline"`
	MaxResultsPerSource int `yaml:"max_results_per_source"`
}

// AgentsConfig 对应 config/agents.yaml
type AgentsConfig struct {
	QueryAnalyzer     AgentConfig          `yaml:"query-analyzer-agent"`
	Retrieval         RetrievalAgentConfig `yaml:"retrieval-agent"`
	Evaluator         AgentConfig          `yaml:"evaluator-agent"`
	ResponseGenerator AgentConfig          `yaml:"response-generator-agent"`
}

// LoadAgentsConfig 读取代理提示词文件
func LoadAgentsConfig(path string) (*AgentsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents config %s: %w", path, err)
	}
	cfg, err := ParseAgentsConfig(data)
	if err != nil {
		return nil, fmt.Errorf("agents config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseAgentsConfig 解析 YAML；未设置的检索条数取默认值
func ParseAgentsConfig(data []byte) (*AgentsConfig, error) {
	var cfg AgentsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if cfg.Retrieval.MaxResultsPerSource <= 0 {
		cfg.Retrieval.MaxResultsPerSource = DefaultMaxResultsPerSource
	}
	return &cfg, nil
}

// Validate 检查四个代理的必需提示词均已配置
func (c *AgentsConfig) Validate() error {
	var errs []error
	check := func(agent string, ac AgentConfig, key string) {
		if _, err := ac.Prompt(key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", agent, err))
		}
	}
	check("query-analyzer-agent", c.QueryAnalyzer, PromptAnalysis)
	check("retrieval-agent", c.Retrieval.AgentConfig, PromptRefinement)
	check("evaluator-agent", c.Evaluator, PromptEvaluation)
	check("response-generator-agent", c.ResponseGenerator, PromptResponseGeneration)
	return errors.Join(errs...)
}

// DefaultAgentsConfig 内置提示词，agents 文件缺失时使用
func DefaultAgentsConfig() *AgentsConfig {
	return &AgentsConfig{
		QueryAnalyzer: AgentConfig{Prompts: map[string]string{
			PromptAnalysis: "Analyze the following user query for a knowledge base search.\n" +
				"Decide whether it is a valid, answerable question and rewrite it into a clear search query.\n\n" +
				"Query: {query}",
		}},
		Retrieval: RetrievalAgentConfig{
			AgentConfig: AgentConfig{Prompts: map[string]string{
				PromptRefinement: "The search for the query below returned poor results.\n" +
					"Original query: {original_query}\n" +
					"Results: {failed_results}\n\n" +
					"Write a single improved search query. Return only the query text.",
			}},
			MaxResultsPerSource: DefaultMaxResultsPerSource,
		},
		Evaluator: AgentConfig{Prompts: map[string]string{
			PromptEvaluation: "Evaluate how well the retrieved results answer the query.\n" +
				"Query: {query}\n" +
				"Query analysis: {query_analysis}\n" +
				"Retrieved results: {retrieved_results}\n\n" +
				"Give a score from 1 to 10 and decide whether the search needs correction.",
		}},
		ResponseGenerator: AgentConfig{Prompts: map[string]string{
			PromptResponseGeneration: "Answer the user's question using only the retrieved information.\n" +
				"Question: {query}\n" +
				"Query analysis: {query_analysis}\n" +
				"Retrieved information: {retrieved_information}\n" +
				"Evaluation: {evaluation_results}\n\n" +
				"If the information is insufficient, say so.",
		}},
	}
}
