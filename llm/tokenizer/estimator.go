package tokenizer

import "unicode"

// 每个 token 约对应的字符数：CJK 约 1.5 个字符，其他约 4 个
const (
	cjkCharsPerToken   = 1.5
	otherCharsPerToken = 4.0
)

// cjkRanges 统一表意文字、扩展 A/B、兼容表意文字、CJK 标点和全角字符
var cjkRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303F, Stride: 1},
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
		{Lo: 0xF900, Hi: 0xFAFF, Stride: 1},
		{Lo: 0xFF00, Hi: 0xFFEF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x20000, Hi: 0x2A6DF, Stride: 1},
	},
}

// EstimatorTokenizer 不依赖词表，按字符类别估算 token 数。
// 离线或模型没有 tiktoken 编码时使用。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// CountTokens 非空文本至少算 1 个 token
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(int(estimate(text)), 1), nil
}

// Truncate 保留估算值不超过 maxTokens 的最长前缀，按 rune 边界切分
func (e *EstimatorTokenizer) Truncate(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	budget := float64(maxTokens)
	if estimate(text) <= budget {
		return text, nil
	}
	var used float64
	for i, r := range text {
		if used += costOf(r); used > budget {
			return text[:i], nil
		}
	}
	return text, nil
}

func estimate(text string) float64 {
	var total float64
	for _, r := range text {
		total += costOf(r)
	}
	return total
}

func costOf(r rune) float64 {
	if unicode.Is(cjkRanges, r) {
		return 1 / cjkCharsPerToken
	}
	return 1 / otherCharsPerToken
}
