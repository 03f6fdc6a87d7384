package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if got := cfg.Render.Command.String(); got != "mmdc" {
		t.Errorf("command = %q, want mmdc", got)
	}
	if cfg.Render.OutputFormat != FormatRaw {
		t.Errorf("output format = %q, want raw", cfg.Render.OutputFormat)
	}
	if cfg.HTML.Version != "11.12.1" {
		t.Errorf("mermaid version = %q", cfg.HTML.Version)
	}
	if !cfg.HTML.Fullscreen {
		t.Error("fullscreen should default to true")
	}
	if cfg.HTML.Priority != 500 {
		t.Errorf("priority = %d, want 500", cfg.HTML.Priority)
	}
	js, err := cfg.HTML.InitConfigJSON()
	if err != nil {
		t.Fatal(err)
	}
	if js != `{"startOnLoad":false}` {
		t.Errorf("init config = %s", js)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[render]
command = "npx -p @mermaid-js/mermaid-cli mmdc"
output_format = "svg"
params = ["--theme", "forest"]

[html]
version = "latest"
zoom = true
width = "80%"

[cache]
mirror = "redis"
redis_url = "redis://localhost:6379/0"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantCmd := CommandLine{"npx", "-p", "@mermaid-js/mermaid-cli", "mmdc"}
	if !reflect.DeepEqual(cfg.Render.Command, wantCmd) {
		t.Errorf("command = %v, want %v", cfg.Render.Command, wantCmd)
	}
	if cfg.Render.OutputFormat != FormatSVG {
		t.Errorf("output format = %q", cfg.Render.OutputFormat)
	}
	if !reflect.DeepEqual(cfg.Render.Params, []string{"--theme", "forest"}) {
		t.Errorf("params = %v", cfg.Render.Params)
	}
	if !cfg.HTML.Zoom || cfg.HTML.Version != "latest" || cfg.HTML.Width != "80%" {
		t.Errorf("html = %+v", cfg.HTML)
	}
	// Unset keys keep their defaults.
	if cfg.HTML.Height != DefaultHeight {
		t.Errorf("height = %q, want default", cfg.HTML.Height)
	}
	if cfg.Cache.Mirror != MirrorRedis {
		t.Errorf("mirror = %q", cfg.Cache.Mirror)
	}
}

func TestParseCommandArray(t *testing.T) {
	cfg, err := Parse(`
[render]
command = ["docker", "run", "--rm", "minlag/mermaid-cli"]
pdfcrop = "pdfcrop --margins 2"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Render.Command) != 4 || cfg.Render.Command[3] != "minlag/mermaid-cli" {
		t.Errorf("command = %v", cfg.Render.Command)
	}
	if len(cfg.Render.PDFCrop) != 3 {
		t.Errorf("pdfcrop = %v", cfg.Render.PDFCrop)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		toml string
		code pkgerrors.Code
	}{
		{"bad output format", "[render]\noutput_format = \"gif\"\n", pkgerrors.ErrCodeInvalidFormat},
		{"empty command", "[render]\ncommand = []\n", pkgerrors.ErrCodeInvalidConfig},
		{"bad width", "[html]\nwidth = \"100%;color:red\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"bad local url", "[html]\nlocal = \"javascript:alert(1)\\\" x\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"redis without url", "[cache]\nmirror = \"redis\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"unknown mirror", "[cache]\nmirror = \"s3\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"prefix with slash", "[render]\nprefix = \"a/b\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"bad opacity", "[html]\nfullscreen_button_opacity = \"half\"\n", pkgerrors.ErrCodeInvalidConfig},
		{"malformed toml", "[render\n", pkgerrors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.toml)
			if err == nil {
				t.Fatal("expected error")
			}
			if !pkgerrors.Is(err, tt.code) {
				t.Errorf("code = %s, want %s (err: %v)", pkgerrors.GetCode(err), tt.code, err)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "docs", "guide")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(root, FileName)
	if err := os.WriteFile(cfgPath, []byte("[render]\nprefix = \"diag\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	path, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", path, ok, err)
	}
	if path != cfgPath {
		t.Errorf("path = %q, want %q", path, cfgPath)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Render.Prefix != "diag" {
		t.Errorf("prefix = %q", cfg.Render.Prefix)
	}
	if cfg.Root() != root {
		t.Errorf("root = %q, want %q", cfg.Root(), root)
	}
	if got := cfg.ResolvePath("seq.json"); got != filepath.Join(root, "seq.json") {
		t.Errorf("ResolvePath = %q", got)
	}
}

func TestDiscoverWithoutFile(t *testing.T) {
	// A temp dir normally has no mmdoc.toml above it.
	dir := t.TempDir()
	if _, ok, _ := Find(dir); ok {
		t.Skip("an mmdoc.toml exists above the temp dir")
	}
	cfg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("path = %q, want empty", cfg.Path)
	}
	if got := cfg.ResolvePath("x"); got != "x" {
		t.Errorf("ResolvePath without file = %q", got)
	}
}
