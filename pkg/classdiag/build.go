package classdiag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/mmdoc/pkg/errors"
)

// Preamble opens every generated diagram.
const Preamble = "graph TD;"

// DefaultRootBase is the base every type implicitly has; it is never drawn.
const DefaultRootBase = "any"

// Options control which edges are collected.
type Options struct {
	// Full follows bases transitively instead of stopping after one level.
	Full bool
	// Strict limits namespace references to classes defined in the namespace,
	// dropping aliases of classes defined elsewhere.
	Strict bool
	// Namespace, when set, drops bases whose qualified name lies outside it.
	Namespace string
	// RootBase is the universal base to exclude. Empty means DefaultRootBase.
	RootBase string
}

// Edge is an inheritance relation from Base to Derived, both short names.
type Edge struct {
	Base    string
	Derived string
}

// Build resolves refs against reg and returns the flowchart source.
func Build(reg Registry, refs []string, opts Options) (string, error) {
	edges, err := Edges(reg, refs, opts)
	if err != nil {
		return "", err
	}
	return Source(edges), nil
}

// Source renders edges as flowchart text.
func Source(edges []Edge) string {
	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", e.Base, e.Derived)
	}
	return sb.String()
}

// Edges collects the deduplicated inheritance edges for refs, sorted by base
// then derived.
func Edges(reg Registry, refs []string, opts Options) ([]Edge, error) {
	if len(refs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no classes or namespaces given")
	}
	c := &collector{
		reg:     reg,
		opts:    opts,
		edges:   make(map[Edge]struct{}),
		visited: make(map[string]bool),
	}
	if c.opts.RootBase == "" {
		c.opts.RootBase = DefaultRootBase
	}

	for _, ref := range refs {
		if err := errors.ValidateClassRef(ref); err != nil {
			return nil, err
		}
		classes, err := c.expand(ref)
		if err != nil {
			return nil, err
		}
		for _, d := range classes {
			c.collect(d)
		}
	}

	out := make([]Edge, 0, len(c.edges))
	for e := range c.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if n := strings.Compare(a.Base, b.Base); n != 0 {
			return n
		}
		return strings.Compare(a.Derived, b.Derived)
	})
	return out, nil
}

type collector struct {
	reg     Registry
	opts    Options
	edges   map[Edge]struct{}
	visited map[string]bool
}

// expand turns a reference into the classes it denotes.
func (c *collector) expand(ref string) ([]Descriptor, error) {
	ent, err := c.reg.Resolve(ref)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNaming) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeNaming, err, "cannot resolve %q", ref)
	}
	if ent.Kind == KindClass {
		return []Descriptor{ent.Class}, nil
	}

	var out []Descriptor
	for _, member := range ent.Members {
		m, err := c.reg.Resolve(member)
		if err != nil || m.Kind != KindClass {
			continue
		}
		if c.opts.Strict && m.Class.Namespace != ent.Namespace {
			continue
		}
		out = append(out, m.Class)
	}
	return out, nil
}

// collect records the edges of d and, in full mode, of its ancestors.
func (c *collector) collect(d Descriptor) {
	qn := d.QualifiedName()
	if c.visited[qn] {
		return
	}
	c.visited[qn] = true

	for _, base := range d.Bases {
		if base == c.opts.RootBase || !c.inScope(base) {
			continue
		}
		c.edges[Edge{Base: shortName(base), Derived: d.Name}] = struct{}{}

		if !c.opts.Full {
			continue
		}
		// Bases outside the registry still get their edge but end the walk.
		ent, err := c.reg.Resolve(base)
		if err != nil || ent.Kind != KindClass {
			continue
		}
		c.collect(ent.Class)
	}
}

func (c *collector) inScope(base string) bool {
	ns := c.opts.Namespace
	if ns == "" {
		return true
	}
	return base == ns || strings.HasPrefix(base, ns+".")
}
