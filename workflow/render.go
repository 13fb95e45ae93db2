package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// walkOrder returns nodes in breadth-first order from the entry, followed by
// any unreachable nodes in declaration order.
func (w *Workflow[S]) walkOrder() []string {
	seen := map[string]bool{w.entry: true}
	out := []string{w.entry}
	for i := 0; i < len(out); i++ {
		for _, next := range w.Successors(out[i]) {
			if next == End || seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
		}
	}
	for _, id := range w.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RenderASCII renders the workflow as a plain-text edge list.
func RenderASCII[S any](w *Workflow[S]) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow: %s (source: %s)\n", w.name, w.source)
	fmt.Fprintf(&sb, "%s --> %s\n", Start, w.entry)

	for _, id := range w.walkOrder() {
		if to, ok := w.edges[id]; ok {
			fmt.Fprintf(&sb, "%s --> %s\n", id, to)
			continue
		}
		if c, ok := w.conditional[id]; ok {
			for _, key := range sortedKeys(c.Branches) {
				fmt.Fprintf(&sb, "%s --[%s]--> %s\n", id, key, c.Branches[key])
			}
		}
	}
	return sb.String()
}

func mermaidID(id string) string {
	switch id {
	case Start:
		return "__start__"
	case End:
		return "__end__"
	}
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(id)
}

// RenderMermaid renders the workflow as a Mermaid flowchart. Conditional
// transitions are drawn dotted and labelled with their branch key.
func RenderMermaid[S any](w *Workflow[S]) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	fmt.Fprintf(&sb, "    %s([%s])\n", mermaidID(Start), Start)
	fmt.Fprintf(&sb, "    %s([%s])\n", mermaidID(End), End)

	order := w.walkOrder()
	for _, id := range order {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", mermaidID(id), id)
	}

	fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(Start), mermaidID(w.entry))
	for _, id := range order {
		if to, ok := w.edges[id]; ok {
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(id), mermaidID(to))
			continue
		}
		if c, ok := w.conditional[id]; ok {
			for _, key := range sortedKeys(c.Branches) {
				fmt.Fprintf(&sb, "    %s -. %s .-> %s\n", mermaidID(id), key, mermaidID(c.Branches[key]))
			}
		}
	}
	return sb.String()
}
