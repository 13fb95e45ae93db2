package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的精确分词器.
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 模型名前缀到 tiktoken 编码的映射
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{prefix: "gpt-4o", encoding: "o200k_base"},
	{prefix: "o1", encoding: "o200k_base"},
	{prefix: "o3", encoding: "o200k_base"},
	{prefix: "gpt-4", encoding: "cl100k_base"},
	{prefix: "gpt-3.5", encoding: "cl100k_base"},
	{prefix: "text-embedding-3", encoding: "cl100k_base"},
}

// NewTiktokenTokenizer 为给定模型创建分词器。未知模型使用 cl100k_base 近似。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding := "cl100k_base"
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			encoding = m.encoding
			break
		}
	}
	return &TiktokenTokenizer{model: model, encoding: encoding}
}

// init 延迟加载编码数据（首次使用时可能需要下载）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) (string, error) {
	if err := t.init(); err != nil {
		return "", err
	}
	if maxTokens <= 0 {
		return "", nil
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return t.enc.Decode(tokens[:maxTokens]), nil
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
