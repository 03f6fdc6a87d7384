package bundle

import (
	"bytes"
	"embed"
	"encoding/json"
	"strconv"
	"strings"
	"text/template"

	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("bundle").ParseFS(templateFS, "templates/*.tmpl"))

// globalZoom addresses every rendered diagram on the page.
const globalZoom = ".mermaid svg"

// Assembler builds per-page bundles from the [html] configuration.
type Assembler struct {
	cfg config.HTML
	raw bool
}

// New returns an assembler for pages rendered in outputFormat.
// Zoom only applies to raw output, where diagrams become inline SVG in the browser.
func New(cfg config.HTML, outputFormat string) *Assembler {
	return &Assembler{cfg: cfg, raw: outputFormat == config.FormatRaw}
}

// zoomPlan is the zoom target for a page. Count -1 means every diagram.
type zoomPlan struct {
	Selector string
	Count    int
}

// scriptData feeds default.js.tmpl.
type scriptData struct {
	MermaidURL string
	ELKURL     string
	ZenUMLURL  string
	InitConfig string // JSON object
	CSS        string // JSON string literal
	Zoom       bool
	Selector   string
	Count      int
	Fullscreen bool
	Button     string
}

type cssData struct {
	Width         string
	Height        string
	ButtonOpacity string
}

// Assemble returns the bundle for one page. A page without diagrams gets an
// empty bundle.
func (a *Assembler) Assemble(page []*diagram.Instance) (Bundle, error) {
	if len(page) == 0 {
		return Bundle{}, nil
	}

	mermaidURL, err := mermaidScript.resolve(a.cfg.Local, a.cfg.Version)
	if err != nil {
		return Bundle{}, err
	}
	data := scriptData{MermaidURL: mermaidURL, Button: a.cfg.Button}
	if a.cfg.IncludeElk {
		if data.ELKURL, err = elkScript.resolve(a.cfg.ElkLocal, a.cfg.ElkVersion); err != nil {
			return Bundle{}, err
		}
	}
	if a.cfg.IncludeZenUML {
		if data.ZenUMLURL, err = zenumlScript.resolve(a.cfg.ZenUMLLocal, a.cfg.ZenUMLVersion); err != nil {
			return Bundle{}, err
		}
	}

	zoom, err := a.planZoom(page)
	if err != nil {
		return Bundle{}, err
	}
	data.Zoom = zoom != nil
	if data.Zoom {
		data.Selector, data.Count = zoom.Selector, zoom.Count
	}
	data.Fullscreen = a.cfg.Fullscreen

	var b Bundle
	if data.Zoom {
		d3URL, err := d3Script.resolve(a.cfg.D3Local, a.cfg.D3Version)
		if err != nil {
			return Bundle{}, err
		}
		if d3URL != "" {
			b.Injections = append(b.Injections, Injection{Kind: KindScript, URL: d3URL, Priority: a.cfg.Priority})
		}
	}

	if !data.Zoom && !data.Fullscreen && data.MermaidURL == "" {
		return b, nil
	}

	if data.InitConfig, err = a.cfg.InitConfigJSON(); err != nil {
		return Bundle{}, err
	}
	if data.CSS, err = a.css(data.Fullscreen); err != nil {
		return Bundle{}, err
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "main", data); err != nil {
		return Bundle{}, errors.Wrap(errors.ErrCodeInternal, err, "failed to render client script")
	}
	b.Injections = append(b.Injections, Injection{Kind: KindModule, Body: buf.String(), Priority: a.cfg.Priority})
	return b, nil
}

// planZoom returns nil when no diagram on the page is zoomable.
func (a *Assembler) planZoom(page []*diagram.Instance) (*zoomPlan, error) {
	if !a.raw {
		return nil, nil
	}
	if a.cfg.Zoom {
		return &zoomPlan{Selector: globalZoom, Count: -1}, nil
	}

	var selectors []string
	for _, inst := range page {
		if inst.ZoomID == "" {
			continue
		}
		if err := errors.ValidateIdentifier(inst.ZoomID); err != nil {
			return nil, err
		}
		selectors = append(selectors, `.mermaid[data-zoom-id="`+inst.ZoomID+`"] svg`)
	}
	if len(selectors) == 0 {
		return nil, nil
	}
	return &zoomPlan{Selector: strings.Join(selectors, ", "), Count: len(selectors)}, nil
}

func (a *Assembler) css(fullscreen bool) (string, error) {
	if err := errors.ValidateCSSSize(a.cfg.Width); err != nil {
		return "", err
	}
	if err := errors.ValidateCSSSize(a.cfg.Height); err != nil {
		return "", err
	}
	opacity, err := buttonOpacity(a.cfg.ButtonOpacity)
	if err != nil {
		return "", err
	}

	data := cssData{Width: a.cfg.Width, Height: a.cfg.Height, ButtonOpacity: opacity}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "default.css.tmpl", data); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "failed to render stylesheet")
	}
	if fullscreen {
		buf.WriteString("\n")
		if err := templates.ExecuteTemplate(&buf, "fullscreen.css.tmpl", data); err != nil {
			return "", errors.Wrap(errors.ErrCodeInternal, err, "failed to render stylesheet")
		}
	}

	lit, err := json.Marshal(buf.String())
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "failed to encode stylesheet")
	}
	return string(lit), nil
}

// buttonOpacity converts a percentage such as "50" to a CSS opacity.
func buttonOpacity(pct string) (string, error) {
	if pct == "" {
		return "1", nil
	}
	v, err := strconv.ParseFloat(pct, 64)
	if err != nil || v < 0 || v > 100 {
		return "", errors.New(errors.ErrCodeInvalidConfig, "fullscreen_button_opacity must be between 0 and 100, got %q", pct)
	}
	return strconv.FormatFloat(v/100, 'f', -1, 64), nil
}
