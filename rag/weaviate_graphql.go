package rag

import (
	"fmt"
	"strings"
)

// searchQuery 一次 Get 查询的公共部分；nearText 与 bm25 只在检索子句上不同
type searchQuery struct {
	class  string
	text   string
	limit  int
	target string // bm25 检索的属性
	fields []string
}

func (q searchQuery) nearText() string {
	clause := fmt.Sprintf(`nearText: { concepts: ["%s"] }`, escapeGraphQLString(q.text))
	return q.render(clause, "distance")
}

func (q searchQuery) bm25() string {
	clause := fmt.Sprintf(`bm25: { query: "%s" properties: ["%s"] }`, escapeGraphQLString(q.text), q.target)
	return q.render(clause, "score")
}

func (q searchQuery) render(clause, metric string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{ Get { %s(\n", q.class)
	fmt.Fprintf(&b, "  %s\n", clause)
	fmt.Fprintf(&b, "  limit: %d\n", q.limit)
	b.WriteString(") {\n")
	for _, f := range q.fields {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	fmt.Fprintf(&b, "  _additional { id %s }\n", metric)
	b.WriteString("} } }")
	return b.String()
}

var graphQLEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// escapeGraphQLString 转义后可放进双引号字符串字面量
func escapeGraphQLString(s string) string {
	return graphQLEscaper.Replace(s)
}
