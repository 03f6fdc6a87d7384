// Package pkg provides the core libraries for mmdoc.
//
// # Overview
//
// mmdoc turns Mermaid diagram directives in Markdown pages into rendered
// artifacts or client-rendered markup, and assembles the scripts a page needs
// to display them. The pkg directory is organized by pipeline stage:
//
//  1. [page] - Parse Markdown and resolve diagram directives
//  2. [diagram] - Diagram sources, presentation options and front-matter
//  3. [dispatch] and [emit] - Choose and write the per-target representation
//  4. [render] - Run the Mermaid CLI, with disk and mirror reuse
//  5. [bundle] - Compute the page's script and style injections
//  6. [pipeline] - Build pages and sites; watch mode
//
// # Architecture
//
// The typical data flow through mmdoc:
//
//	Markdown page
//	     ↓
//	[page] (directives → diagram instances, warnings)
//	     ↓
//	[dispatch] → [emit] (target markup) → [render] (artifacts on demand)
//	     ↓
//	[bundle] (head injections for the page)
//	     ↓
//	HTML / LaTeX / Texinfo / text / man output
//
// # Quick Start
//
// Build a documentation tree:
//
//	cfg, _ := config.Discover("docs")
//	runner := pipeline.NewRunner(cfg, nil, nil, logger)
//	res, err := runner.BuildSite(ctx, pipeline.Options{SrcDir: "docs"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Stats)
//
// # Supporting Packages
//
// [config] - mmdoc.toml loading and validation.
//
// [cache] - Content-addressed artifact keys and the artifact mirror
// (file or Redis) consulted before running the renderer.
//
// [classdiag] - Inheritance flowcharts built from a class registry; the Go
// loader treats packages as namespaces and embedded types as bases.
//
// [observability] - Hooks for render, cache and HTTP events with a
// Prometheus implementation.
//
// [errors] - Structured error codes shared by every stage.
//
// [buildinfo] - Version information injected at build time.
package pkg
