// Package bundle assembles the client-side scripts a page with diagrams needs.
//
// The assembler looks at the diagram instances of a single page and decides
// which scripts to inject: the mermaid ES module with its optional plugins, a
// d3 helper for zoomable diagrams, and exactly one behavior script that wires
// up initialization, zoom and the fullscreen viewer. Scripts are rendered from
// embedded templates, so the output for a given configuration and page is
// byte-for-byte stable.
package bundle

import (
	"strings"
)

// Kind distinguishes injected tags.
type Kind int

const (
	// KindScript is an external classic script loaded by URL.
	KindScript Kind = iota
	// KindModule is an inline ES module.
	KindModule
)

// Injection is one tag to place in the page head.
type Injection struct {
	Kind     Kind
	URL      string // KindScript only
	Body     string // KindModule only
	Priority int
}

// Bundle is the ordered set of injections for one page.
type Bundle struct {
	Injections []Injection
}

// Empty reports whether the page needs no scripts.
func (b Bundle) Empty() bool {
	return len(b.Injections) == 0
}

// Behavior returns the body of the module script, or "" when there is none.
func (b Bundle) Behavior() string {
	for _, inj := range b.Injections {
		if inj.Kind == KindModule {
			return inj.Body
		}
	}
	return ""
}

// HTML renders the injections as tags, one per line.
func (b Bundle) HTML() string {
	var sb strings.Builder
	for _, inj := range b.Injections {
		switch inj.Kind {
		case KindScript:
			sb.WriteString(`<script src="`)
			sb.WriteString(inj.URL)
			sb.WriteString(`"></script>`)
		case KindModule:
			sb.WriteString(`<script type="module">`)
			sb.WriteString("\n")
			sb.WriteString(inj.Body)
			sb.WriteString(`</script>`)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
