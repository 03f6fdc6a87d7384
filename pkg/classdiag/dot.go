package classdiag

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-graphviz"
)

// ToDOT converts edges to a Graphviz digraph with bases above derived types.
func ToDOT(edges []Edge) string {
	var buf bytes.Buffer
	buf.WriteString("digraph classes {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("  edge [arrowhead=empty];\n")
	buf.WriteString("\n")

	var nodes []string
	for _, e := range edges {
		nodes = append(nodes, e.Base, e.Derived)
	}
	slices.Sort(nodes)
	for _, n := range slices.Compact(nodes) {
		fmt.Fprintf(&buf, "  %q;\n", n)
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Base, e.Derived)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG draws a DOT graph with the embedded Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
