package bundle

import (
	"strings"
	"testing"

	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/errors"
)

func page(zoomIDs ...string) []*diagram.Instance {
	out := make([]*diagram.Instance, 0, len(zoomIDs))
	for _, id := range zoomIDs {
		out = append(out, &diagram.Instance{
			Source:  diagram.Source{Text: "graph TD; A-->B"},
			Options: diagram.Options{Zoom: id != ""},
			ZoomID:  id,
		})
	}
	return out
}

func defaultHTML() config.HTML {
	return config.Default().HTML
}

func TestAssembleEmptyPage(t *testing.T) {
	b, err := New(defaultHTML(), config.FormatRaw).Assemble(nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !b.Empty() {
		t.Errorf("expected empty bundle, got %d injections", len(b.Injections))
	}
	if b.HTML() != "" {
		t.Errorf("HTML() = %q, want empty", b.HTML())
	}
}

func TestMermaidURL(t *testing.T) {
	tests := []struct {
		name    string
		local   string
		version string
		want    string
		code    errors.Code
	}{
		{name: "local wins", local: "_static/mermaid.mjs", version: "11.0.0", want: "_static/mermaid.mjs"},
		{name: "pinned", version: "11.4.0", want: "https://cdn.jsdelivr.net/npm/mermaid@11.4.0/dist/mermaid.esm.min.mjs"},
		{name: "pinned with v", version: "v10.3.0", want: "https://cdn.jsdelivr.net/npm/mermaid@10.3.0/dist/mermaid.esm.min.mjs"},
		{name: "latest", version: "latest", want: "https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.esm.min.mjs"},
		{name: "omitted", version: "", want: ""},
		{name: "too old", version: "10.2.4", code: errors.ErrCodeUnsupported},
		{name: "not a version", version: "eleven", code: errors.ErrCodeInvalidConfig},
		{name: "bad local", local: "javascript:alert(1)\"", code: errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mermaidScript.resolve(tt.local, tt.version)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Fatalf("resolve() error = %v, want code %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssembleRejectsOldMermaid(t *testing.T) {
	cfg := defaultHTML()
	cfg.Version = "9.4.3"
	_, err := New(cfg, config.FormatRaw).Assemble(page(""))
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Fatalf("Assemble() error = %v, want UNSUPPORTED", err)
	}
	if !strings.Contains(err.Error(), "10.3.0 or later") {
		t.Errorf("error %q does not name the minimum version", err)
	}
}

func TestPlugins(t *testing.T) {
	cfg := defaultHTML()
	cfg.IncludeElk = true
	cfg.IncludeZenUML = true
	cfg.ZenUMLVersion = "latest"

	b, err := New(cfg, config.FormatRaw).Assemble(page(""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := b.Behavior()
	for _, want := range []string{
		`import elkLayouts from "https://cdn.jsdelivr.net/npm/@mermaid-js/layout-elk@0.2.0/dist/mermaid-layout-elk.esm.min.mjs";`,
		`import zenuml from "https://cdn.jsdelivr.net/npm/@mermaid-js/mermaid-zenuml/dist/mermaid-zenuml.esm.min.mjs";`,
		"mermaid.registerLayoutLoaders(elkLayouts);",
		"await mermaid.registerExternalDiagrams([zenuml]);",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("behavior script missing %q", want)
		}
	}
	if i, j := strings.Index(body, "import mermaid"), strings.Index(body, "import elkLayouts"); i < 0 || j < i {
		t.Errorf("base import must precede plugin imports")
	}

	cfg.IncludeElk = false
	b, err = New(cfg, config.FormatRaw).Assemble(page(""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if strings.Contains(b.Behavior(), "elkLayouts") {
		t.Error("elk imported although include_elk is off")
	}
}

func TestGlobalZoom(t *testing.T) {
	cfg := defaultHTML()
	cfg.Zoom = true
	cfg.Fullscreen = false

	b, err := New(cfg, config.FormatRaw).Assemble(page("", ""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(b.Injections) != 2 {
		t.Fatalf("got %d injections, want d3 tag and module", len(b.Injections))
	}
	if b.Injections[0].Kind != KindScript || b.Injections[0].URL != "https://cdn.jsdelivr.net/npm/d3@7.9.0/dist/d3.min.js" {
		t.Errorf("first injection = %+v, want d3 helper tag", b.Injections[0])
	}
	body := b.Behavior()
	if !strings.Contains(body, `const zoomSelector = ".mermaid svg";`) {
		t.Error("missing global zoom selector")
	}
	if !strings.Contains(body, "const zoomCount = -1;") {
		t.Error("missing global zoom count")
	}
	if strings.Contains(body, "initFullscreen") {
		t.Error("fullscreen wired although disabled")
	}
}

func TestPerInstanceZoom(t *testing.T) {
	cfg := defaultHTML()
	cfg.Fullscreen = false

	b, err := New(cfg, config.FormatRaw).Assemble(page("id-a", "", "id-b"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := b.Behavior()
	// The selector is JS-escaped inside a string literal.
	want := `const zoomSelector = ".mermaid[data-zoom-id\u003D\"id-a\"] svg, .mermaid[data-zoom-id\u003D\"id-b\"] svg";`
	if !strings.Contains(body, want) {
		t.Errorf("behavior script missing %s\n%s", want, body)
	}
	if !strings.Contains(body, "const zoomCount = 2;") {
		t.Error("zoom count should equal the number of zoomable instances")
	}
}

func TestNoZoomWithoutZoomableInstances(t *testing.T) {
	cfg := defaultHTML()
	cfg.Fullscreen = false

	b, err := New(cfg, config.FormatRaw).Assemble(page("", ""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(b.Injections) != 1 {
		t.Fatalf("got %d injections, want only the init script", len(b.Injections))
	}
	body := b.Behavior()
	if strings.Contains(body, "zoomSelector") || strings.Contains(body, "d3.") {
		t.Error("zoom script emitted for a page without zoomable diagrams")
	}
	if !strings.Contains(body, `mermaid.initialize({"startOnLoad":false});`) {
		t.Errorf("missing initialization:\n%s", body)
	}
}

func TestZoomOnlyInRawOutput(t *testing.T) {
	cfg := defaultHTML()
	cfg.Zoom = true

	for _, format := range []string{config.FormatPNG, config.FormatSVG} {
		t.Run(format, func(t *testing.T) {
			b, err := New(cfg, format).Assemble(page("id-a"))
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			for _, inj := range b.Injections {
				if inj.Kind == KindScript {
					t.Errorf("unexpected helper tag %s", inj.URL)
				}
			}
			if strings.Contains(b.Behavior(), "zoomSelector") {
				t.Error("zoom wired for non-raw output")
			}
		})
	}
}

func TestVariants(t *testing.T) {
	tests := []struct {
		name       string
		zoom       bool
		fullscreen bool
		version    string
		wantModule bool
		contains   []string
		excludes   []string
	}{
		{
			name: "zoom and fullscreen", zoom: true, fullscreen: true, version: "11.4.0", wantModule: true,
			contains: []string{"attachZoom()", "initFullscreen();", "addZoom(d3.select(svg))", ".mermaid-fullscreen-modal"},
		},
		{
			name: "zoom only", zoom: true, version: "11.4.0", wantModule: true,
			contains: []string{"attachZoom()"},
			excludes: []string{"initFullscreen", ".mermaid-fullscreen-modal"},
		},
		{
			name: "fullscreen only", fullscreen: true, version: "11.4.0", wantModule: true,
			contains: []string{"initFullscreen();", `btn.textContent = "⛶";`},
			excludes: []string{"attachZoom", "addZoom"},
		},
		{
			name: "init only", version: "11.4.0", wantModule: true,
			contains: []string{"await mermaid.run();"},
			excludes: []string{"attachZoom", "initFullscreen"},
		},
		{
			name: "nothing to do", version: "", wantModule: false,
		},
		{
			name: "fullscreen without base URL", fullscreen: true, version: "", wantModule: true,
			contains: []string{"const mermaid = window.mermaid;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultHTML()
			cfg.Zoom = tt.zoom
			cfg.Fullscreen = tt.fullscreen
			cfg.Version = tt.version

			b, err := New(cfg, config.FormatRaw).Assemble(page(""))
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			modules := 0
			for _, inj := range b.Injections {
				if inj.Kind == KindModule {
					modules++
				}
			}
			if tt.wantModule && modules != 1 {
				t.Fatalf("got %d behavior scripts, want exactly one", modules)
			}
			if !tt.wantModule && modules != 0 {
				t.Fatalf("got %d behavior scripts, want none", modules)
			}
			body := b.Behavior()
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("behavior script missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(body, s) {
					t.Errorf("behavior script unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestStylesheet(t *testing.T) {
	cfg := defaultHTML()
	cfg.Width = "80%"
	cfg.Height = "30em"
	cfg.ButtonOpacity = "25"

	b, err := New(cfg, config.FormatRaw).Assemble(page(""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := b.Behavior()
	for _, want := range []string{`width: 80%;`, `height: 30em;`, `opacity: 0.25;`} {
		if !strings.Contains(body, want) {
			t.Errorf("stylesheet missing %q", want)
		}
	}

	cfg.Height = "500px; } body { display: none"
	if _, err := New(cfg, config.FormatRaw).Assemble(page("")); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Assemble() error = %v, want INVALID_CONFIG for a bad CSS size", err)
	}
}

func TestButtonTextEscaped(t *testing.T) {
	cfg := defaultHTML()
	cfg.Button = `"</script><script>alert(1)//`

	b, err := New(cfg, config.FormatRaw).Assemble(page(""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if strings.Contains(b.Behavior(), "</script>") {
		t.Error("button text was not escaped")
	}
}

func TestInvalidZoomID(t *testing.T) {
	_, err := New(defaultHTML(), config.FormatRaw).Assemble(page(`x"] svg, body`))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("Assemble() error = %v, want INVALID_INPUT", err)
	}
}

func TestPriority(t *testing.T) {
	cfg := defaultHTML()
	cfg.Zoom = true
	cfg.Priority = 800

	b, err := New(cfg, config.FormatRaw).Assemble(page(""))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for _, inj := range b.Injections {
		if inj.Priority != 800 {
			t.Errorf("injection priority = %d, want 800", inj.Priority)
		}
	}
}

func TestDeterministic(t *testing.T) {
	cfg := defaultHTML()
	cfg.IncludeElk = true
	cfg.InitConfig = map[string]any{"theme": "dark", "startOnLoad": false, "flowchart": map[string]any{"curve": "basis"}}

	a := New(cfg, config.FormatRaw)
	first, err := a.Assemble(page("id-a", "id-b"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := a.Assemble(page("id-a", "id-b"))
		if err != nil {
			t.Fatalf("Assemble: %v", err)
		}
		if next.HTML() != first.HTML() {
			t.Fatal("bundle output differs between identical runs")
		}
	}
}

func TestHTML(t *testing.T) {
	b := Bundle{Injections: []Injection{
		{Kind: KindScript, URL: "d3.js"},
		{Kind: KindModule, Body: "run();\n"},
	}}
	want := "<script src=\"d3.js\"></script>\n<script type=\"module\">\nrun();\n</script>\n"
	if got := b.HTML(); got != want {
		t.Errorf("HTML() = %q, want %q", got, want)
	}
}
