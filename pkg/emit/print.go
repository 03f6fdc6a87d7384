package emit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// printEmitter includes a (cropped) PDF in LaTeX output.
type printEmitter struct{}

func (printEmitter) Emit(ctx context.Context, env Env, w io.Writer, inst *diagram.Instance) error {
	if err := needsRenderer(env); err != nil {
		return err
	}
	art, err := env.Renderer.Render(ctx, env.Build, inst.Source, render.FormatPDF)
	if err != nil {
		return err
	}
	if art.IsZero() {
		return nil
	}

	cropped, err := env.Renderer.Crop(ctx, env.Build, art)
	if err != nil {
		return err
	}
	if !cropped.IsZero() {
		art = cropped
	}

	sep := "\n"
	if inst.Options.Inline {
		sep = ""
	}

	var b strings.Builder
	caption := inst.Options.Caption != "" && !inst.Options.Inline
	if caption {
		b.WriteString("\\begin{figure}[htbp]\n")
		if inst.Options.Align == "" || inst.Options.Align == diagram.AlignCenter {
			b.WriteString("\\centering\n")
		}
	}

	var post string
	if !inst.Options.Inline {
		switch inst.Options.Align {
		case diagram.AlignLeft:
			b.WriteString("{")
			post = "\\hspace*{\\fill}}"
		case diagram.AlignRight:
			b.WriteString("{\\hspace*{\\fill}")
			post = "}"
		}
	}
	fmt.Fprintf(&b, "%s\\includegraphics{%s}%s", sep, latexPath(art.WebPath), sep)
	b.WriteString(post)

	if caption {
		fmt.Fprintf(&b, "\n\\caption{%s}\n\\end{figure}\n", latexEscape(inst.Options.Caption))
	}
	return flush(w, &b)
}

// texinfoEmitter includes a PNG in Texinfo output.
type texinfoEmitter struct{}

func (texinfoEmitter) Emit(ctx context.Context, env Env, w io.Writer, inst *diagram.Instance) error {
	if err := needsRenderer(env); err != nil {
		return err
	}
	art, err := env.Renderer.Render(ctx, env.Build, inst.Source, render.FormatPNG)
	if err != nil {
		return err
	}
	if art.IsZero() {
		return nil
	}
	_, err = fmt.Fprintf(w, "@image{%s,,,[mermaid],png}\n", strings.TrimSuffix(art.WebPath, ".png"))
	return err
}

// textEmitter describes the diagram in text and manual page output.
type textEmitter struct{}

func (textEmitter) Emit(_ context.Context, _ Env, w io.Writer, inst *diagram.Instance) error {
	var err error
	if inst.Options.Alt != "" {
		_, err = fmt.Fprintf(w, "[graph: %s]", inst.Options.Alt)
	} else {
		_, err = io.WriteString(w, "[graph]")
	}
	return err
}

var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`%`, `\%`,
	`~`, `\textasciitilde{}`,
)

func latexEscape(s string) string {
	return latexReplacer.Replace(s)
}

// pathReplacer turns characters TeX treats specially into other-category
// characters that expand cleanly inside \includegraphics. A percent sign never
// becomes a token, so it goes through LaTeX's \@percentchar.
var pathReplacer = strings.NewReplacer(
	`%`, `\csname @percentchar\endcsname `,
	`#`, `\string#`,
	`&`, `\string&`,
	`$`, `\string$`,
	`^`, `\string^`,
	`~`, `\string~`,
	`{`, `\string{`,
	`}`, `\string}`,
)

// latexPath quotes a slash-separated file path for \includegraphics.
func latexPath(p string) string {
	return pathReplacer.Replace(p)
}
