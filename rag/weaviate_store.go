package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WeaviateConfig 知识库所在的 Weaviate 实例与集合。
// BaseURL 非空时覆盖 Scheme/Host/Port。属性名为空时使用
// text / source / source_type / metadata。
type WeaviateConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Scheme  string `json:"scheme,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`

	Collection       string        `json:"collection"`
	AutoCreateSchema bool          `json:"auto_create_schema,omitempty"` // 首次写入时建类
	Timeout          time.Duration `json:"timeout,omitempty"`

	TextProperty       string `json:"text_property,omitempty"`
	SourceProperty     string `json:"source_property,omitempty"`
	SourceTypeProperty string `json:"source_type_property,omitempty"`
	MetadataProperty   string `json:"metadata_property,omitempty"` // JSON 文本
}

func (c *WeaviateConfig) applyDefaults() {
	defaults := []struct {
		field *string
		value string
	}{
		{&c.Host, "localhost"},
		{&c.Scheme, "http"},
		{&c.TextProperty, "text"},
		{&c.SourceProperty, "source"},
		{&c.SourceTypeProperty, "source_type"},
		{&c.MetadataProperty, "metadata"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// WeaviateStore 通过 REST 与 GraphQL 访问 Weaviate。
// 检索先走 nearText，集合没有 vectorizer 时退回 BM25。
type WeaviateStore struct {
	cfg     WeaviateConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	closed  atomic.Bool

	schemaOnce sync.Once
	schemaErr  error
}

var _ DocumentSearcher = (*WeaviateStore)(nil)

func NewWeaviateStore(cfg WeaviateConfig, logger *zap.Logger) *WeaviateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port)
	}
	return &WeaviateStore{
		cfg:     cfg,
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "weaviate_store")),
	}
}

// 同一文档 ID 总是映射到同一对象 ID，重复导入即覆盖
var weaviateNamespace = uuid.MustParse("6f1c2a7e-3b4d-5e6f-8a9b-0c1d2e3f4a5b")

func weaviateObjectID(docID string) string {
	return uuid.NewSHA1(weaviateNamespace, []byte(docID)).String()
}

func (s *WeaviateStore) call(ctx context.Context, method, path string, in, out any) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("weaviate encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("weaviate request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(s.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("weaviate %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("weaviate %s %s: status=%d body=%s", method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weaviate decode %s: %w", path, err)
	}
	return nil
}

// Ready 供启动探测与 /health/ready 使用
func (s *WeaviateStore) Ready(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, "/v1/.well-known/ready", nil, nil)
}

// SimilaritySearch 返回至多 k 个片段；k<=0 时返回空结果
func (s *WeaviateStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	switch {
	case strings.TrimSpace(s.cfg.Collection) == "":
		return nil, errors.New("weaviate collection is required")
	case k <= 0:
		return []Document{}, nil
	case strings.TrimSpace(query) == "":
		return nil, errors.New("query text is required")
	}

	q := s.search(query, k)
	docs, err := s.runSearch(ctx, q.nearText())
	if err == nil || ctx.Err() != nil {
		return docs, err
	}
	s.logger.Warn("nearText search failed, retrying with bm25", zap.Error(err))
	return s.runSearch(ctx, q.bm25())
}

func (s *WeaviateStore) search(text string, k int) searchQuery {
	return searchQuery{
		class:  s.cfg.Collection,
		text:   text,
		limit:  k,
		target: s.cfg.TextProperty,
		fields: []string{s.cfg.TextProperty, s.cfg.SourceProperty, s.cfg.SourceTypeProperty, s.cfg.MetadataProperty},
	}
}

type graphQLResponse struct {
	Data struct {
		Get map[string][]map[string]json.RawMessage `json:"Get"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *WeaviateStore) runSearch(ctx context.Context, gql string) ([]Document, error) {
	var resp graphQLResponse
	if err := s.call(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": gql}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", resp.Errors[0].Message)
	}

	hits := resp.Data.Get[s.cfg.Collection]
	docs := make([]Document, len(hits))
	for i, hit := range hits {
		docs[i] = s.decodeHit(hit)
	}
	return docs, nil
}

// decodeHit nearText 结果带 distance（越小越近），bm25 结果带字符串形式的 score
func (s *WeaviateStore) decodeHit(hit map[string]json.RawMessage) Document {
	text := func(prop string) (v string) {
		_ = json.Unmarshal(hit[prop], &v)
		return v
	}
	doc := Document{
		Content:    text(s.cfg.TextProperty),
		Source:     text(s.cfg.SourceProperty),
		SourceType: text(s.cfg.SourceTypeProperty),
		Metadata:   decodeMetadata(hit[s.cfg.MetadataProperty]),
	}

	var extra struct {
		ID       string   `json:"id"`
		Distance *float64 `json:"distance"`
		Score    *string  `json:"score"`
	}
	_ = json.Unmarshal(hit["_additional"], &extra)
	doc.ID = extra.ID
	if extra.Distance != nil {
		doc.Score = 1 - *extra.Distance
	} else if extra.Score != nil {
		_, _ = fmt.Sscanf(*extra.Score, "%g", &doc.Score)
	}
	return doc
}

// decodeMetadata 元数据可能存成 JSON 对象，也可能是 JSON 文本
func decodeMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var meta map[string]any
	if json.Unmarshal(raw, &meta) == nil {
		return meta
	}
	var encoded string
	if json.Unmarshal(raw, &encoded) != nil || encoded == "" || encoded == "{}" {
		return nil
	}
	if json.Unmarshal([]byte(encoded), &meta) != nil {
		return nil
	}
	return meta
}

type weaviateProperty struct {
	Name            string   `json:"name"`
	DataType        []string `json:"dataType"`
	Description     string   `json:"description"`
	IndexFilterable bool     `json:"indexFilterable"`
	IndexSearchable bool     `json:"indexSearchable"`
}

type weaviateClass struct {
	Class       string             `json:"class"`
	Description string             `json:"description"`
	Vectorizer  string             `json:"vectorizer"`
	Properties  []weaviateProperty `json:"properties"`
	Inverted    map[string]any     `json:"invertedIndexConfig"`
}

func (s *WeaviateStore) classSchema() weaviateClass {
	prop := func(name, desc string, indexed bool) weaviateProperty {
		return weaviateProperty{Name: name, DataType: []string{"text"}, Description: desc, IndexFilterable: indexed, IndexSearchable: indexed}
	}
	return weaviateClass{
		Class:       s.cfg.Collection,
		Description: "Knowledge base chunks",
		Vectorizer:  "none",
		Properties: []weaviateProperty{
			prop(s.cfg.TextProperty, "Chunk text", true),
			prop(s.cfg.SourceProperty, "Source document", true),
			prop(s.cfg.SourceTypeProperty, "Source type", true),
			prop(s.cfg.MetadataProperty, "Metadata as JSON", false),
		},
		Inverted: map[string]any{"bm25": map[string]float64{"b": 0.75, "k1": 1.2}},
	}
}

// ensureClass 只在 AutoCreateSchema 时执行一次；类已存在则跳过
func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	if !s.cfg.AutoCreateSchema {
		return nil
	}
	s.schemaOnce.Do(func() {
		if s.call(ctx, http.MethodGet, "/v1/schema/"+s.cfg.Collection, nil, &json.RawMessage{}) == nil {
			return
		}
		if err := s.call(ctx, http.MethodPost, "/v1/schema", s.classSchema(), nil); err != nil {
			s.schemaErr = fmt.Errorf("create weaviate class %s: %w", s.cfg.Collection, err)
			return
		}
		s.logger.Info("weaviate class created", zap.String("class", s.cfg.Collection))
	})
	return s.schemaErr
}

type batchObject struct {
	Class      string         `json:"class"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	Vector     []float64      `json:"vector,omitempty"`
}

type batchResult struct {
	ID     string `json:"id"`
	Result struct {
		Errors *struct {
			Error []struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"result"`
}

// AddDocuments 批量写入（同 ID 覆盖）。集合有 vectorizer 时 Embedding 可为空
func (s *WeaviateStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if strings.TrimSpace(s.cfg.Collection) == "" {
		return errors.New("weaviate collection is required")
	}

	objects := make([]batchObject, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		meta := "{}"
		if doc.Metadata != nil {
			if b, err := json.Marshal(doc.Metadata); err == nil {
				meta = string(b)
			}
		}
		objects[i] = batchObject{
			Class: s.cfg.Collection,
			ID:    weaviateObjectID(doc.ID),
			Properties: map[string]any{
				s.cfg.TextProperty:       doc.Content,
				s.cfg.SourceProperty:     doc.Source,
				s.cfg.SourceTypeProperty: doc.SourceType,
				s.cfg.MetadataProperty:   meta,
			},
			Vector: doc.Embedding,
		}
	}

	if err := s.ensureClass(ctx); err != nil {
		return err
	}

	var results []batchResult
	if err := s.call(ctx, http.MethodPost, "/v1/batch/objects", map[string]any{"objects": objects}, &results); err != nil {
		return err
	}
	for _, r := range results {
		if e := r.Result.Errors; e != nil && len(e.Error) > 0 {
			return fmt.Errorf("weaviate batch object %s: %s", r.ID, e.Error[0].Message)
		}
	}
	s.logger.Debug("weaviate batch written", zap.Int("count", len(docs)))
	return nil
}

// Close 释放空闲连接；之后的调用返回 ErrStoreClosed
func (s *WeaviateStore) Close() error {
	if !s.closed.Swap(true) {
		s.client.CloseIdleConnections()
	}
	return nil
}
