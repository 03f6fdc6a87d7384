package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir(t *testing.T) {
	tests := []struct {
		name string
		xdg  string
		want func(home string) string
	}{
		{
			name: "home default",
			want: func(home string) string { return filepath.Join(home, ".cache", appName) },
		},
		{
			name: "XDG_CACHE_HOME",
			xdg:  "/tmp/custom-cache",
			want: func(string) string { return filepath.Join("/tmp/custom-cache", appName) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CACHE_HOME", tt.xdg)
			home, err := os.UserHomeDir()
			if err != nil {
				t.Skip("no home directory")
			}
			dir, err := cacheDir()
			if err != nil {
				t.Fatalf("cacheDir() error: %v", err)
			}
			if want := tt.want(home); dir != want {
				t.Errorf("cacheDir() = %q, want %q", dir, want)
			}
		})
	}
}

func TestMirrorDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	c := New(os.Stderr, LogInfo)
	c.configPath = filepath.Join(t.TempDir(), "mmdoc.toml")
	if err := os.WriteFile(c.configPath, []byte("[render]\nprefix = \"m\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir, err := c.mirrorDir()
	if err != nil {
		t.Fatalf("mirrorDir() error: %v", err)
	}
	if want := filepath.Join(xdg, appName, mirrorSubdir); dir != want {
		t.Errorf("mirrorDir() = %q, want %q", dir, want)
	}

	if err := os.WriteFile(c.configPath, []byte("[cache]\ndir = \"mirror\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir, err = c.mirrorDir()
	if err != nil {
		t.Fatalf("mirrorDir() error: %v", err)
	}
	if want := filepath.Join(filepath.Dir(c.configPath), "mirror"); dir != want {
		t.Errorf("mirrorDir() with cache.dir = %q, want %q", dir, want)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"ab/abc.png", "ab/abd.svg", "cd/cde.png", "top.png"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := clearDir(dir)
	if err != nil {
		t.Fatalf("clearDir() error: %v", err)
	}
	if n != 4 {
		t.Errorf("clearDir() = %d, want 4", n)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cache dir should survive: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir not emptied: %v", entries)
	}

	n, err = clearDir(filepath.Join(dir, "missing"))
	if err != nil || n != 0 {
		t.Errorf("clearDir(missing) = %d, %v; want 0, nil", n, err)
	}
}
