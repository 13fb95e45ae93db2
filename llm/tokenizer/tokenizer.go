package tokenizer

import (
	"strings"

	"go.uber.org/zap"
)

// Tokenizer 统一的 token 计数与截断接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Truncate 将文本截断到最多 maxTokens 个 token.
	// 未超出预算时原样返回。
	Truncate(text string, maxTokens int) (string, error)

	// Name 返回分词器的名称.
	Name() string
}

// Kind 分词器实现类型
type Kind string

const (
	KindTiktoken  Kind = "tiktoken"
	KindEstimator Kind = "estimator"
)

// New 按类型创建分词器。
// tiktoken 在首次使用时加载编码数据，加载失败时自动退化为估算器。
func New(kind Kind, model string, logger *zap.Logger) Tokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch Kind(strings.ToLower(string(kind))) {
	case KindEstimator:
		return NewEstimatorTokenizer(model, 0)
	default:
		return &fallbackTokenizer{
			primary:  NewTiktokenTokenizer(model),
			fallback: NewEstimatorTokenizer(model, 0),
			logger:   logger.With(zap.String("component", "tokenizer")),
		}
	}
}

// fallbackTokenizer primary 出错时改用 fallback
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
	logger   *zap.Logger
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	f.logger.Debug("primary tokenizer failed, using estimator", zap.Error(err))
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) Truncate(text string, maxTokens int) (string, error) {
	out, err := f.primary.Truncate(text, maxTokens)
	if err == nil {
		return out, nil
	}
	f.logger.Debug("primary tokenizer failed, using estimator", zap.Error(err))
	return f.fallback.Truncate(text, maxTokens)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name()
}
