// Package diagram defines the diagram data model shared by every stage of the
// rendering pipeline.
//
// A [Source] is diagram text plus the renderer options that change the
// rendered output. An [Instance] is one occurrence of a diagram in a page: its
// source, its presentation [Options] and, when pointer-zoom is requested, a
// generated zoom identifier. Instances are created once when a page is parsed
// and are read-only afterwards.
//
// Instances are built with [NewInstance], which rejects empty sources and
// prepends the front-matter block derived from [Options.Config] and
// [Options.Title], so every later stage sees the final text that is hashed and
// rendered.
package diagram

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// Alignment values accepted by [Options.Align].
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Source is immutable diagram text plus the renderer options that affect the
// rendered artifact. Option order is irrelevant and keys are unique.
type Source struct {
	Text    string
	Options map[string]string
}

// Options are the presentation hints of a diagram instance.
type Options struct {
	Align   string // left, center, right or empty
	Alt     string // alternate text; defaults to the escaped source
	Caption string // wraps the diagram in a figure when set
	Zoom    bool   // per-instance pointer-zoom
	Config  string // JSON object merged into the front-matter config
	Title   string // front-matter title
	Name    string // element id
	Inline  bool   // inline placement in print output
}

// Instance is a diagram occurrence in a page.
type Instance struct {
	Source  Source
	Options Options

	// ZoomID addresses the rendered element for pointer-zoom wiring.
	// It is set only when Options.Zoom is true.
	ZoomID string

	// Location identifies where the diagram was declared, e.g. "guide.md:12".
	Location string
}

// newZoomID generates zoom identifiers. Tests replace it for stable output.
var newZoomID = func() string {
	return "id-" + uuid.NewString()
}

// NewInstance validates text and opts and returns a ready-to-render instance.
//
// The returned instance's source text carries the front-matter block when
// opts.Config or opts.Title is set. renderOptions may be nil.
func NewInstance(text string, opts Options, renderOptions map[string]string) (*Instance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "ignoring diagram without content")
	}
	if err := pkgerrors.ValidateAlign(opts.Align); err != nil {
		return nil, err
	}
	if opts.Name != "" {
		if err := pkgerrors.ValidateIdentifier(opts.Name); err != nil {
			return nil, err
		}
	}

	fm, err := FrontMatter(opts.Config, opts.Title)
	if err != nil {
		return nil, err
	}

	ro := make(map[string]string, len(renderOptions))
	for k, v := range renderOptions {
		ro[k] = v
	}

	inst := &Instance{
		Source:  Source{Text: fm + text, Options: ro},
		Options: opts,
	}
	if opts.Zoom {
		inst.ZoomID = newZoomID()
	}
	return inst, nil
}

// Code returns the trimmed diagram text, as embedded in raw output.
func (i *Instance) Code() string {
	return strings.TrimSpace(i.Source.Text)
}

// HasZoom reports whether the instance carries a zoom identifier.
func (i *Instance) HasZoom() bool {
	return i.ZoomID != ""
}
