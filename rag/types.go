package rag

import (
	"context"
	"errors"
)

// Retrieval quality labels.
const (
	RetrievalQualityUnknown = "unknown"
	RetrievalQualityPoor    = "poor"
)

// SourceTypeContent 知识库内容检索结果的来源类型
const SourceTypeContent = "content"

// ErrStoreClosed 向量库已关闭
var ErrStoreClosed = errors.New("document store is closed")

// QueryAnalysis 查询分析阶段输出
type QueryAnalysis struct {
	OriginalQuery string `json:"original_query"`
	IsValid       bool   `json:"is_valid"`
	RefinedQuery  string `json:"refined_query"`
	Error         string `json:"error,omitempty"`
}

// RetrievedDocument 单条检索结果，Rank 从 1 开始
type RetrievedDocument struct {
	Rank           int            `json:"rank"`
	Content        string         `json:"content"`
	Source         string         `json:"source"`
	SourceType     string         `json:"source_type"`
	RelevanceScore float64        `json:"relevance_score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// RetrievedInformation 检索阶段输出
type RetrievedInformation struct {
	Query                string              `json:"query"`
	SearchQuery          string              `json:"search_query,omitempty"`
	KnowledgeBaseResults []RetrievedDocument `json:"knowledge_base_results"`
	RetrievalQuality     string              `json:"retrieval_quality"`
	Error                string              `json:"error,omitempty"`
}

// EvaluationResults 检索质量评估输出
type EvaluationResults struct {
	Query           string  `json:"query"`
	Score           float64 `json:"score"`
	NeedsCorrection bool    `json:"needs_correction"`
	Error           string  `json:"error,omitempty"`
}

// GeneratedResponse 回答生成阶段输出，附带生成所依据的输入
type GeneratedResponse struct {
	Query                string                `json:"query"`
	ResponseText         string                `json:"response_text"`
	QueryAnalysis        *QueryAnalysis        `json:"query_analysis,omitempty"`
	RetrievedInformation *RetrievedInformation `json:"retrieved_information,omitempty"`
	EvaluationResults    *EvaluationResults    `json:"evaluation_results,omitempty"`
	Error                string                `json:"error,omitempty"`
}

// Document 向量库中的一条文档
type Document struct {
	ID         string         `json:"id" yaml:"id"`
	Content    string         `json:"content" yaml:"content"`
	Source     string         `json:"source,omitempty" yaml:"source"`
	SourceType string         `json:"source_type,omitempty" yaml:"source_type"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata"`
	Embedding  []float64      `json:"-" yaml:"-"`
	// Score 检索时的相似度或 BM25 分数
	Score float64 `json:"score,omitempty" yaml:"-"`
}

// DocumentSearcher 检索阶段依赖的向量库句柄。
// 由 Orchestrator 持有，在关闭时统一释放。
type DocumentSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
	Close() error
}
