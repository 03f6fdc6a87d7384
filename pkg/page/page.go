// Package page reads Markdown pages and finds their diagram directives.
//
// Diagrams are written as fenced code blocks. A mermaid fence carries the
// diagram inline or names a file, with options in braces after the language:
//
//	```mermaid {align=center zoom caption="Request flow"}
//	graph LR; client --> server
//	```
//
//	```mermaid {file=diagrams/flow.mmd}
//	```
//
// A classtree fence lists class and namespace references, one per line, and
// becomes the inheritance diagram built by package classdiag:
//
//	```classtree {full namespace=pkg}
//	pkg.render.Renderer
//	```
//
// A directive that cannot be turned into a diagram becomes a [Warning] on the
// page and disappears from the output; the rest of the page is unaffected.
package page

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/matzehuels/mmdoc/pkg/classdiag"
	"github.com/matzehuels/mmdoc/pkg/diagram"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// Fence languages that declare diagrams.
const (
	LangMermaid   = "mermaid"
	LangClassTree = "classtree"
)

// Warning is a directive that was dropped.
type Warning struct {
	Location string
	Err      error
}

func (w Warning) String() string {
	return w.Location + ": " + pkgerrors.UserMessage(w.Err)
}

// Options configure a Parser.
type Options struct {
	// Root is the source tree root. File arguments may not leave it.
	Root string

	// Classes returns the registry for classtree fences. It is called at most
	// once per page and only when the page has a classtree fence. Nil makes
	// every classtree fence a warning.
	Classes func() (classdiag.Registry, error)

	// RootBase is the universal base left out of class diagrams.
	RootBase string
}

// Parser turns Markdown into pages. It is safe for concurrent use.
type Parser struct {
	opts Options
	md   goldmark.Markdown
}

// NewParser returns a parser with GitHub-flavored Markdown enabled.
func NewParser(opts Options) *Parser {
	return &Parser{
		opts: opts,
		md:   newMarkdown(),
	}
}

func newMarkdown(opts ...goldmark.Option) goldmark.Markdown {
	return goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}, opts...)...)
}

// Page is a parsed Markdown page.
type Page struct {
	// Path is the page file as given to Parse.
	Path string
	// Name is Path relative to the source root, used in locations.
	Name   string
	Source []byte
	Title  string

	// Diagrams are the page's diagram instances in document order.
	Diagrams []*diagram.Instance
	Warnings []Warning

	// Dependencies are the external diagram files the page read.
	Dependencies []string

	doc ast.Node
}

// Parse reads src, the content of the page at path, and resolves its
// directives. Only malformed Markdown plumbing fails the whole page; directive
// problems are recorded as warnings.
func (p *Parser) Parse(path string, src []byte) (*Page, error) {
	doc := p.md.Parser().Parse(text.NewReader(src))
	pg := &Page{Path: path, Name: p.Name(path), Source: src, doc: doc}

	var fences []*ast.FencedCodeBlock
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && pg.Title == "" {
				pg.Title = plainText(node, src)
			}
		case *ast.FencedCodeBlock:
			lang := string(node.Language(src))
			if lang == LangMermaid || lang == LangClassTree {
				fences = append(fences, node)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}

	d := &directives{parser: p, page: pg, resolver: diagram.NewResolver(filepath.Dir(path), p.opts.Root)}
	for _, fence := range fences {
		loc := fmt.Sprintf("%s:%d", pg.Name, fenceLine(fence, src))
		inst, err := d.instance(fence, src)
		parent := fence.Parent()
		if err != nil {
			pg.Warnings = append(pg.Warnings, Warning{Location: loc, Err: err})
			parent.RemoveChild(parent, fence)
			continue
		}
		inst.Location = loc
		pg.Diagrams = append(pg.Diagrams, inst)
		parent.ReplaceChild(parent, fence, newDiagramNode(inst))
	}
	pg.Dependencies = d.resolver.Dependencies()
	return pg, nil
}

// Name returns path relative to the parser root with forward slashes, as used
// in page names and warning locations.
func (p *Parser) Name(path string) string {
	if p.opts.Root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(p.opts.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// directives resolves the fences of one page.
type directives struct {
	parser   *Parser
	page     *Page
	resolver *diagram.Resolver

	registry    classdiag.Registry
	registryErr error
	loaded      bool
}

func (d *directives) instance(fence *ast.FencedCodeBlock, src []byte) (*diagram.Instance, error) {
	info := ""
	if fence.Info != nil {
		info = string(fence.Info.Segment.Value(src))
	}
	lang, attrs, err := parseInfo(info)
	if err != nil {
		return nil, err
	}
	body := fenceBody(fence, src)

	switch lang {
	case LangMermaid:
		return d.mermaid(body, attrs)
	case LangClassTree:
		return d.classTree(body, attrs)
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeUnsupported, "unknown directive %q", lang)
}

var (
	presentationKeys = []string{"align", "alt", "caption", "zoom", "name", "inline"}
	mermaidKeys      = []string{"config", "title", "file"}
	classTreeKeys    = []string{"full", "strict", "namespace"}
)

func (d *directives) mermaid(body string, attrs attributes) (*diagram.Instance, error) {
	if err := checkKeys(attrs, presentationKeys, mermaidKeys); err != nil {
		return nil, err
	}
	file, _ := attrs.get("file")
	text, err := d.resolver.Resolve(body, file)
	if err != nil {
		return nil, err
	}
	opts, err := presentation(attrs)
	if err != nil {
		return nil, err
	}
	opts.Config, _ = attrs.get("config")
	opts.Title, _ = attrs.get("title")
	return diagram.NewInstance(text, opts, renderOptions(attrs))
}

func (d *directives) classTree(body string, attrs attributes) (*diagram.Instance, error) {
	if err := checkKeys(attrs, presentationKeys, classTreeKeys); err != nil {
		return nil, err
	}
	refs := strings.Fields(body)
	if len(refs) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "classtree needs at least one class or namespace")
	}

	var copts classdiag.Options
	var err error
	if copts.Full, err = attrs.flag("full"); err != nil {
		return nil, err
	}
	if copts.Strict, err = attrs.flag("strict"); err != nil {
		return nil, err
	}
	copts.Namespace, _ = attrs.get("namespace")
	copts.RootBase = d.parser.opts.RootBase

	reg, err := d.classes()
	if err != nil {
		return nil, err
	}
	src, err := classdiag.Build(reg, refs, copts)
	if err != nil {
		return nil, err
	}
	opts, err := presentation(attrs)
	if err != nil {
		return nil, err
	}
	return diagram.NewInstance(src, opts, renderOptions(attrs))
}

func (d *directives) classes() (classdiag.Registry, error) {
	if !d.loaded {
		d.loaded = true
		if d.parser.opts.Classes == nil {
			d.registryErr = pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "classtree requires classes.source_dir to be configured")
		} else {
			d.registry, d.registryErr = d.parser.opts.Classes()
		}
	}
	return d.registry, d.registryErr
}

func presentation(attrs attributes) (diagram.Options, error) {
	var opts diagram.Options
	var err error
	opts.Align, _ = attrs.get("align")
	opts.Alt, _ = attrs.get("alt")
	opts.Caption, _ = attrs.get("caption")
	opts.Name, _ = attrs.get("name")
	if opts.Zoom, err = attrs.flag("zoom"); err != nil {
		return opts, err
	}
	if opts.Inline, err = attrs.flag("inline"); err != nil {
		return opts, err
	}
	return opts, nil
}

// renderOptions picks the attributes that become renderer flags.
func renderOptions(attrs attributes) map[string]string {
	out := make(map[string]string)
	for _, k := range attrs.keys {
		if _, ok := render.OptionFlags[k]; ok {
			out[k] = attrs.values[k]
		}
	}
	return out
}

func checkKeys(attrs attributes, allowed ...[]string) error {
	for _, k := range attrs.keys {
		if _, ok := render.OptionFlags[k]; ok {
			continue
		}
		known := false
		for _, set := range allowed {
			known = known || slices.Contains(set, k)
		}
		if !known {
			return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown option %q", k)
		}
	}
	return nil
}

func fenceBody(fence *ast.FencedCodeBlock, src []byte) string {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}

// fenceLine returns the 1-based line of the opening fence.
func fenceLine(fence *ast.FencedCodeBlock, src []byte) int {
	offset := -1
	switch {
	case fence.Info != nil:
		offset = fence.Info.Segment.Start
	case fence.Lines().Len() > 0:
		offset = fence.Lines().At(0).Start
	}
	if offset < 0 {
		return 0
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
