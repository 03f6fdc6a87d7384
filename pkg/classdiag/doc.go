// Package classdiag builds Mermaid flowcharts of type hierarchies.
//
// A diagram is requested with a list of references. A reference names either a
// class, which is included directly, or a namespace, whose member classes are
// all included. For every included class one edge is recorded per direct base,
// and with [Options.Full] the walk continues through the bases' own bases.
//
// The builder never inspects code itself. It asks a [Registry] to resolve
// names, so the same algorithm serves hand-built hierarchies
// ([StaticRegistry]) and hierarchies read from Go source ([LoadGoPackages]),
// where a package is a namespace, a named type is a class and an embedded
// field is a base.
//
// # Output
//
// [Build] returns flowchart text ready to hand to the renderer:
//
//	graph TD;
//	    B --> C1
//	    B --> C2
//
// [ToDOT] and [RenderSVG] draw the same edges through Graphviz for a quick
// preview without the mermaid toolchain.
package classdiag
