// =============================================================================
// 📦 测试数据工厂 - RAG 阶段模型输出与知识库文档
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/DCGM/semant-demo/rag"
)

// AnalysisJSON 返回查询分析阶段的模型输出
func AnalysisJSON(valid bool, refined string) string {
	return fmt.Sprintf(`{"is_valid": %t, "refined_query": %q}`, valid, refined)
}

// EvaluationJSON 返回评估阶段的模型输出
func EvaluationJSON(score float64, needsCorrection bool) string {
	return fmt.Sprintf(`{"score": %g, "needs_correction": %t}`, score, needsCorrection)
}

// FencedJSON 模拟模型把 JSON 包在 markdown 代码块里的输出
func FencedJSON(body string) string {
	return "Here is the result:\n```json\n" + body + "\n```"
}

// AlgebraDocuments 代数主题的知识库样例
func AlgebraDocuments() []rag.Document {
	return []rag.Document{
		{
			ID:         "algebra-1",
			Content:    "Algebra studies symbols and the rules for manipulating them, such as solving equations for an unknown x.",
			Source:     "math/algebra-intro.md",
			SourceType: rag.SourceTypeContent,
			Metadata:   map[string]any{"chapter": "1"},
		},
		{
			ID:         "algebra-2",
			Content:    "A linear equation has the form ax + b = 0 and is solved by isolating the variable.",
			Source:     "math/linear-equations.md",
			SourceType: rag.SourceTypeContent,
		},
		{
			ID:         "history-1",
			Content:    "The printing press was invented in the fifteenth century.",
			Source:     "history/printing.md",
			SourceType: rag.SourceTypeContent,
		},
	}
}
