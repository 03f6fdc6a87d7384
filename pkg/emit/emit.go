// Package emit turns diagram instances into target-specific markup.
//
// Each output target is one [Target] value with one emitter implementation.
// [For] selects the implementation with an exhaustive switch, so adding a
// target without an emitter fails loudly instead of silently falling back.
//
// Emitters append to the output only on success: when an emitter returns an
// error nothing was written and the caller skips the node. A zero artifact
// from the renderer is not an error: HTML targets fall back to the escaped
// diagram source and print targets emit nothing.
package emit

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// Target is an output target.
type Target int

const (
	TargetRaw     Target = iota // HTML, rendered client-side
	TargetRaster                // HTML with a PNG artifact
	TargetVector                // HTML with an SVG artifact
	TargetPrint                 // LaTeX with a PDF artifact
	TargetTexinfo               // Texinfo with a PNG artifact
	TargetText                  // plain text
	TargetMan                   // manual page
)

var targetNames = [...]string{
	TargetRaw:     "raw",
	TargetRaster:  "png",
	TargetVector:  "svg",
	TargetPrint:   "latex",
	TargetTexinfo: "texinfo",
	TargetText:    "text",
	TargetMan:     "man",
}

// String returns the target name.
func (t Target) String() string {
	if t < 0 || int(t) >= len(targetNames) {
		return fmt.Sprintf("Target(%d)", int(t))
	}
	return targetNames[t]
}

// ParseTarget parses a target name as returned by Target.String.
func ParseTarget(s string) (Target, error) {
	for i, name := range targetNames {
		if name == s {
			return Target(i), nil
		}
	}
	return 0, pkgerrors.New(pkgerrors.ErrCodeInvalidFormat, "unknown target %q", s)
}

// IsHTML reports whether the target produces HTML.
func (t Target) IsHTML() bool {
	return t == TargetRaw || t == TargetRaster || t == TargetVector
}

// Renderer produces artifacts. *render.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, bc *render.BuildContext, src diagram.Source, format string) (render.Artifact, error)
	Crop(ctx context.Context, bc *render.BuildContext, in render.Artifact) (render.Artifact, error)
}

// Env is what emitters need beyond the instance itself.
type Env struct {
	Renderer Renderer
	Build    *render.BuildContext
}

// Emitter appends the representation of one instance to w.
type Emitter interface {
	Emit(ctx context.Context, env Env, w io.Writer, inst *diagram.Instance) error
}

// For returns the emitter for t.
func For(t Target) (Emitter, error) {
	switch t {
	case TargetRaw:
		return rawEmitter{}, nil
	case TargetRaster:
		return rasterEmitter{}, nil
	case TargetVector:
		return vectorEmitter{}, nil
	case TargetPrint:
		return printEmitter{}, nil
	case TargetTexinfo:
		return texinfoEmitter{}, nil
	case TargetText, TargetMan:
		return textEmitter{}, nil
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidFormat, "no emitter for %s", t)
}

// flush writes b to w in one call.
func flush(w io.Writer, b *strings.Builder) error {
	_, err := io.WriteString(w, b.String())
	return err
}

func escape(s string) string {
	return html.EscapeString(s)
}

// altText returns the escaped alternate text, defaulting to the source.
func altText(inst *diagram.Instance) string {
	if inst.Options.Alt != "" {
		return escape(inst.Options.Alt)
	}
	return escape(inst.Code())
}

func needsRenderer(env Env) error {
	if env.Renderer == nil || env.Build == nil {
		return pkgerrors.New(pkgerrors.ErrCodeInternal, "emitter needs a renderer and a build context")
	}
	return nil
}
