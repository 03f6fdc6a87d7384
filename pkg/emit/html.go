package emit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// rawEmitter embeds the source for client-side rendering.
type rawEmitter struct{}

func (rawEmitter) Emit(_ context.Context, _ Env, w io.Writer, inst *diagram.Instance) error {
	var b strings.Builder
	figure(&b, inst, func(align string) {
		classes := "mermaid"
		b.WriteString("<pre")
		if align != "" {
			fmt.Fprintf(&b, ` align="%s"`, align)
			classes += " align-" + align
		}
		if inst.ZoomID != "" {
			fmt.Fprintf(&b, ` data-zoom-id="%s"`, escape(inst.ZoomID))
		}
		if inst.Options.Name != "" {
			fmt.Fprintf(&b, ` id="%s"`, escape(inst.Options.Name))
		}
		fmt.Fprintf(&b, ` class="%s">`, classes)
		b.WriteString(escape(inst.Code()))
		b.WriteString("</pre>")
	})
	return flush(w, &b)
}

// rasterEmitter embeds a PNG with its optional image map.
type rasterEmitter struct{}

func (rasterEmitter) Emit(ctx context.Context, env Env, w io.Writer, inst *diagram.Instance) error {
	if err := needsRenderer(env); err != nil {
		return err
	}
	art, err := env.Renderer.Render(ctx, env.Build, inst.Source, render.FormatPNG)
	if err != nil {
		return err
	}

	var b strings.Builder
	if art.IsZero() {
		b.WriteString(escape(inst.Code()))
		return flush(w, &b)
	}

	imap, err := readImageMap(art.MapPath())
	if err != nil {
		return err
	}

	figure(&b, inst, func(align string) {
		alignOpen(&b, align)
		fmt.Fprintf(&b, `<img src="%s" alt="%s"`, escape(art.WebPath), altText(inst))
		if imap != nil {
			fmt.Fprintf(&b, ` usemap="#%s"`, escape(imap.Name))
		}
		b.WriteString(" />\n")
		if imap != nil {
			b.WriteString(imap.Content)
		}
		alignClose(&b, align)
	})
	return flush(w, &b)
}

// vectorEmitter embeds an SVG through an object element.
type vectorEmitter struct{}

func (vectorEmitter) Emit(ctx context.Context, env Env, w io.Writer, inst *diagram.Instance) error {
	if err := needsRenderer(env); err != nil {
		return err
	}
	art, err := env.Renderer.Render(ctx, env.Build, inst.Source, render.FormatSVG)
	if err != nil {
		return err
	}

	var b strings.Builder
	if art.IsZero() {
		b.WriteString(escape(inst.Code()))
		return flush(w, &b)
	}

	figure(&b, inst, func(align string) {
		alignOpen(&b, align)
		fmt.Fprintf(&b, "<object data=\"%s\" type=\"image/svg+xml\">\n<p class=\"warning\">%s</p></object>\n",
			escape(art.WebPath), altText(inst))
		alignClose(&b, align)
	})
	return flush(w, &b)
}

// figure wraps body in a figure when the instance has a caption. The figure
// takes over the alignment, so body receives an empty align.
func figure(b *strings.Builder, inst *diagram.Instance, body func(align string)) {
	if inst.Options.Caption == "" {
		body(inst.Options.Align)
		return
	}
	align := inst.Options.Align
	if align == "" {
		align = "default"
	}
	fmt.Fprintf(b, `<figure class="align-%s">`+"\n", align)
	body("")
	fmt.Fprintf(b, "\n<figcaption>\n<p>%s</p>\n</figcaption>\n</figure>\n", escape(inst.Options.Caption))
}

func alignOpen(b *strings.Builder, align string) {
	if align != "" {
		fmt.Fprintf(b, `<div align="%s" class="align-%s">`, align, align)
	}
}

func alignClose(b *strings.Builder, align string) {
	if align != "" {
		b.WriteString("</div>\n")
	}
}
