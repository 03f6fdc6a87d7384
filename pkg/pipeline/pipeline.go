// Package pipeline builds documentation sites with rendered diagrams.
//
// A [Runner] ties the stages together for every entry point (the build
// command, the preview server and watch mode):
//
//  1. Parse: read a Markdown page and resolve its diagram directives
//  2. Render: turn each diagram into target markup, running the external
//     renderer only for artifacts not already on disk or in the mirror
//  3. Assemble: compute the page's client-script bundle and inject it into
//     the page head
//
// Pages are independent, so a site build renders them concurrently. A
// diagram that fails never fails its page; it is logged and counted as a
// warning.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, mirror, nil, logger)
//	result, err := runner.BuildSite(ctx, pipeline.Options{
//	    SrcDir: "docs",
//	    OutDir: "docs/_build",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats.Diagrams, "diagrams")
package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/matzehuels/mmdoc/pkg/emit"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// TargetHTML is the default build target. Diagrams use the configured HTML
// output format.
const TargetHTML = "html"

// DefaultOutDir is the output directory inside the source tree when none is given.
const DefaultOutDir = "_build"

// Options configure one build.
type Options struct {
	SrcDir string
	OutDir string

	// Target is "html" or a non-HTML target name: latex, texinfo, text, man.
	Target string

	// Concurrency bounds the pages built in parallel; 0 uses the configured value.
	Concurrency int

	// OnScan receives the page names, relative to SrcDir, before any is built.
	OnScan func(pages []string)

	// OnPage is called after each page, from the goroutine that built it.
	OnPage func(PageResult)
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults(defaultConcurrency int) error {
	if o.SrcDir == "" {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "source directory is required")
	}
	if o.OutDir == "" {
		o.OutDir = filepath.Join(o.SrcDir, DefaultOutDir)
	}
	if o.Target == "" {
		o.Target = TargetHTML
	}
	if _, err := parseTarget(o.Target); err != nil {
		return err
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return nil
}

// parseTarget maps a build target name to the emitter target.
func parseTarget(name string) (emit.Target, error) {
	if name == TargetHTML {
		return emit.TargetRaw, nil
	}
	t, err := emit.ParseTarget(name)
	if err != nil {
		return 0, err
	}
	if t.IsHTML() {
		return 0, pkgerrors.New(pkgerrors.ErrCodeInvalidFormat,
			"target %q selects an HTML format; use target html and set render.output_format", name)
	}
	return t, nil
}

// outputExt returns the extension of built pages for target.
func outputExt(t emit.Target) string {
	switch t {
	case emit.TargetPrint:
		return ".tex"
	case emit.TargetTexinfo:
		return ".texi"
	case emit.TargetText:
		return ".txt"
	case emit.TargetMan:
		return ".man"
	}
	return ".html"
}

// PageResult describes one built page.
type PageResult struct {
	Source   string // page file
	Name     string // page path relative to the source root
	Output   string // written file
	Title    string
	Diagrams int
	Warnings int
	Duration time.Duration
}

// Stats summarizes a site build.
type Stats struct {
	Pages      int
	Diagrams   int
	Warnings   int
	Assets     int
	Rendered   int64
	DiskHits   int64
	MirrorHits int64
	Duration   time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("%d pages, %d diagrams (%d rendered, %d reused, %d mirrored), %d warnings",
		s.Pages, s.Diagrams, s.Rendered, s.DiskHits, s.MirrorHits, s.Warnings)
}

// Result is the outcome of a site build.
type Result struct {
	// Pages are sorted by name.
	Pages []PageResult
	Stats Stats
}
