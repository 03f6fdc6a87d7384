package page

import (
	"bytes"
	"context"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/dispatch"
	"github.com/matzehuels/mmdoc/pkg/emit"
)

// KindDiagram is the node kind that replaces diagram fences in a parsed page.
var KindDiagram = ast.NewNodeKind("Diagram")

// diagramNode is a resolved diagram directive.
type diagramNode struct {
	ast.BaseBlock
	inst *diagram.Instance
}

func newDiagramNode(inst *diagram.Instance) *diagramNode {
	return &diagramNode{inst: inst}
}

func (n *diagramNode) Kind() ast.NodeKind { return KindDiagram }

func (n *diagramNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Location": n.inst.Location}, nil)
}

// diagramRenderer hands diagram nodes to the dispatcher.
type diagramRenderer struct {
	ctx    context.Context
	d      *dispatch.Dispatcher
	target emit.Target
}

func (r *diagramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, r.render)
}

func (r *diagramRenderer) render(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if err := r.ctx.Err(); err != nil {
		return ast.WalkStop, err
	}
	r.d.Visit(r.ctx, w, r.target, n.(*diagramNode).inst)
	return ast.WalkSkipChildren, nil
}

// RenderHTML writes the page body as HTML. Diagrams use the dispatcher's HTML
// target; a diagram that fails is reported by the dispatcher and left out.
func (p *Page) RenderHTML(ctx context.Context, w io.Writer, d *dispatch.Dispatcher) error {
	md := newMarkdown(goldmark.WithRendererOptions(
		html.WithUnsafe(),
		renderer.WithNodeRenderers(util.Prioritized(&diagramRenderer{ctx: ctx, d: d, target: d.HTML()}, 100)),
	))
	return md.Renderer().Render(w, p.Source, p.doc)
}

// Fragment is the output of one diagram for a non-HTML target.
type Fragment struct {
	Location string
	Text     string
}

// Fragments emits every diagram for target. Diagrams that fail or produce no
// output are omitted.
func (p *Page) Fragments(ctx context.Context, d *dispatch.Dispatcher, target emit.Target) ([]Fragment, error) {
	var out []Fragment
	for _, inst := range p.Diagrams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if !d.Visit(ctx, &buf, target, inst) || buf.Len() == 0 {
			continue
		}
		out = append(out, Fragment{Location: inst.Location, Text: buf.String()})
	}
	return out, nil
}
