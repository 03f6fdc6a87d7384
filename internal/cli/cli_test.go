package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/observability"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// testConfig writes an mmdoc.toml and returns its path.
func testConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmdoc.toml")
	writeTestFile(t, path, content)
	return path
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"render", "build", "bundle", "classtree", "serve", "cache", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestBundleCommand(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.md")
	writeTestFile(t, page, "# Index\n\n```mermaid\ngraph TD; A --> B\n```\n")
	cfg := testConfig(t, "[html]\nzoom = true\n")

	out, err := execute(t, "--config", cfg, "bundle", page)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	for _, want := range []string{"d3@7.9.0", `<script type="module">`, "mermaid.initialize("} {
		if !strings.Contains(out, want) {
			t.Errorf("bundle output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "--config", cfg, "bundle", "--behavior", page)
	if err != nil {
		t.Fatalf("bundle --behavior: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Error("--behavior should print only the module body")
	}
}

func TestBuildCommand(t *testing.T) {
	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "index.md"), "# Index\n\n```mermaid\ngraph TD; A --> B\n```\n")
	out := t.TempDir()
	cfg := testConfig(t, "")

	if _, err := execute(t, "--config", cfg, "build", src, "-o", out, "--plain"); err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `class="mermaid"`) {
		t.Errorf("index.html missing raw diagram:\n%s", data)
	}

	_, err = execute(t, "--config", cfg, "build", src, "-o", out, "-f", "gif")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeInvalidFormat) {
		t.Errorf("invalid format error = %v, want INVALID_FORMAT", err)
	}
}

func TestRenderCommandInvalidFormat(t *testing.T) {
	_, err := execute(t, "render", "flow.mmd", "-f", "gif")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeInvalidFormat) {
		t.Errorf("render error = %v, want INVALID_FORMAT", err)
	}
}

func TestClasstreeCommand(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "go.mod"), "module example.com/zoo\n\ngo 1.24\n")
	writeTestFile(t, filepath.Join(root, "animal", "animal.go"), "package animal\n\ntype Base struct{}\n")
	writeTestFile(t, filepath.Join(root, "animal", "dog", "dog.go"), `package dog

import "example.com/zoo/animal"

type Dog struct {
	animal.Base
}
`)
	cfg := testConfig(t, "")

	out, err := execute(t, "--config", cfg, "classtree", "--source", root, "animal.dog")
	if err != nil {
		t.Fatalf("classtree: %v", err)
	}
	if want := "graph TD;\n    Base --> Dog\n"; out != want {
		t.Errorf("classtree output = %q, want %q", out, want)
	}

	out, err = execute(t, "--config", cfg, "classtree", "--source", root, "--dot", "animal.dog")
	if err != nil {
		t.Fatalf("classtree --dot: %v", err)
	}
	if !strings.Contains(out, `"Base" -> "Dog"`) {
		t.Errorf("DOT output missing edge:\n%s", out)
	}

	if _, err := execute(t, "--config", cfg, "classtree", "--source", root, "animal.Cat"); !pkgerrors.Is(err, pkgerrors.ErrCodeNaming) {
		t.Errorf("unknown ref error = %v, want NAMING", err)
	}
}

func TestServer(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "guide.html"), "<h1>Guide</h1>")

	reg := prometheus.NewRegistry()
	observability.SetHTTPHooks(observability.NewPrometheus(reg))
	defer observability.Reset()

	srv := httptest.NewServer(newServer(dir, reg))
	defer srv.Close()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/healthz", wantStatus: http.StatusOK, wantBody: "ok"},
		{path: "/guide.html", wantStatus: http.StatusOK, wantBody: "<h1>Guide</h1>"},
		{path: "/missing.html", wantStatus: http.StatusNotFound},
		{path: "/metrics", wantStatus: http.StatusOK, wantBody: `mmdoc_http_requests_total{method="GET",status="404"} 1`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion bash: %v", err)
	}
	if !strings.Contains(out, "mmdoc") {
		t.Error("bash completion script should mention mmdoc")
	}

	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell should be rejected")
	}
}

func TestFlagCompletion(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"build", "--target", ""}, buildTargets},
		{[]string{"build", "--format", ""}, htmlFormats},
		{[]string{"render", "--format", ""}, renderFormats},
		{[]string{"serve", "--target", ""}, buildTargets},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args[:2], " "), func(t *testing.T) {
			out, err := execute(t, append([]string{"__complete"}, tt.args...)...)
			if err != nil {
				t.Fatalf("__complete: %v", err)
			}
			lines := strings.Split(out, "\n")
			for _, want := range tt.want {
				found := false
				for _, l := range lines {
					if l == want {
						found = true
					}
				}
				if !found {
					t.Errorf("completions %q missing %q", out, want)
				}
			}
		})
	}
}
