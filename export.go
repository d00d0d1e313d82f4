package framegraph

import (
	"fmt"
	"strings"
)

// DOT exports the compiled graph as Graphviz DOT text. Surviving passes are
// numbered in execution order; culled passes are drawn dashed. Each edge is
// labelled with the resource it carries.
func (cg *CompiledGraph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph framegraph {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := cg.aliases()
	for i, id := range cg.order {
		fmt.Fprintf(&b, "  %s [label=\"%d: %s\"];\n", aliases[id], i, escapeDOT(cg.names[id]))
	}
	for _, id := range cg.culled {
		fmt.Fprintf(&b, "  %s [label=\"%s\", style=dashed, color=gray];\n", aliases[id], escapeDOT(cg.names[id]))
	}
	for _, e := range cg.edges {
		fmt.Fprintf(&b, "  %s -> %s [label=\"%s\"];\n", aliases[e.From], aliases[e.To], escapeDOT(cg.labels[e.Resource]))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports the compiled graph as Mermaid flowchart text.
func (cg *CompiledGraph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := cg.aliases()
	for i, id := range cg.order {
		fmt.Fprintf(&b, "    %s[\"%d: %s\"]\n", aliases[id], i, escapeMermaid(cg.names[id]))
	}
	for _, id := range cg.culled {
		fmt.Fprintf(&b, "    %s[\"%s\"]:::culled\n", aliases[id], escapeMermaid(cg.names[id]))
	}
	for _, e := range cg.edges {
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", aliases[e.From], escapeMermaid(cg.labels[e.Resource]), aliases[e.To])
	}
	if len(cg.culled) > 0 {
		b.WriteString("    classDef culled stroke-dasharray: 5 5\n")
	}
	return b.String()
}

// aliases names surviving passes n0..nK in execution order, then culled
// passes after them.
func (cg *CompiledGraph) aliases() map[PassID]string {
	m := make(map[PassID]string, len(cg.order)+len(cg.culled))
	for i, id := range cg.order {
		m[id] = fmt.Sprintf("n%d", i)
	}
	for i, id := range cg.culled {
		m[id] = fmt.Sprintf("n%d", len(cg.order)+i)
	}
	return m
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	s = strings.ReplaceAll(s, "\"", "#quot;")
	return strings.ReplaceAll(s, "|", "#124;")
}
