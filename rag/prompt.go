package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RenderPrompt 替换 {name} 形式的占位符；{{ 与 }} 输出字面大括号。
// 未知占位符保持原样。
func RenderPrompt(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, 4+len(vars)*2)
	pairs = append(pairs, "{{", "{", "}}", "}")
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// errNoJSONObject 模型输出中找不到 JSON 对象
var errNoJSONObject = errors.New("no JSON object in model output")

// parseJSONObject 从模型文本中提取第一个 JSON 对象，容忍 ``` 代码块与前后说明文字
func parseJSONObject(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse model JSON: %w", err)
	}
	return out, nil
}

func boolField(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return def
}

func numberField(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f
		}
	}
	return def
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// toJSON 将结构化输入序列化进提示词
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
