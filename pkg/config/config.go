// Package config loads mmdoc project configuration.
//
// Configuration lives in an mmdoc.toml file discovered by walking up from the
// source directory. Every option has a default, so a missing file is not an
// error. The file is decoded with BurntSushi/toml and validated with
// go-playground/validator before any diagram is rendered, so a bad output
// format is reported once instead of once per diagram.
//
// # Example
//
//	[render]
//	command = "npx -p @mermaid-js/mermaid-cli mmdc"
//	output_format = "svg"
//	params = ["--theme", "forest"]
//
//	[html]
//	version = "11.4.0"
//	zoom = true
//
//	[cache]
//	mirror = "redis"
//	redis_url = "redis://localhost:6379/0"
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// FileName is the name of the project configuration file.
const FileName = "mmdoc.toml"

// Output formats for HTML targets.
const (
	FormatRaw = "raw"
	FormatPNG = "png"
	FormatSVG = "svg"
)

// Mirror kinds for the second-level artifact cache.
const (
	MirrorNone  = "none"
	MirrorFile  = "file"
	MirrorRedis = "redis"
)

// Default values.
const (
	DefaultCommand        = "mmdc"
	DefaultOutputFormat   = FormatRaw
	DefaultImageDir       = "_images"
	DefaultPrefix         = "mermaid"
	DefaultMermaidVersion = "11.12.1"
	DefaultElkVersion     = "0.2.0"
	DefaultZenUMLVersion  = "0.2.2"
	DefaultD3Version      = "7.9.0"
	DefaultPriority       = 500
	DefaultWidth          = "100%"
	DefaultHeight         = "500px"
	DefaultButton         = "⛶"
	DefaultButtonOpacity  = "50"
	DefaultRootBase       = "any"
	DefaultConcurrency    = 4
)

// Config is the full project configuration.
type Config struct {
	Render  Render  `toml:"render"`
	HTML    HTML    `toml:"html"`
	Cache   Cache   `toml:"cache"`
	Classes Classes `toml:"classes"`

	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `toml:"-"`
}

// Render configures the external renderer.
type Render struct {
	Command        CommandLine `toml:"command" validate:"min=1"`
	Shell          bool        `toml:"shell"`
	PDFCrop        CommandLine `toml:"pdfcrop"`
	OutputFormat   string      `toml:"output_format" validate:"oneof=raw png svg"`
	Params         []string    `toml:"params"`
	Verbose        bool        `toml:"verbose"`
	SequenceConfig string      `toml:"sequence_config"`
	ImageDir       string      `toml:"image_dir" validate:"required"`
	Prefix         string      `toml:"prefix" validate:"required,excludesall=/\\"`
	Concurrency    int         `toml:"concurrency" validate:"gte=1,lte=64"`
}

// HTML configures the client-side script bundle.
type HTML struct {
	Version       string         `toml:"version"`
	Local         string         `toml:"local" validate:"omitempty,scripturl"`
	ElkVersion    string         `toml:"elk_version"`
	ElkLocal      string         `toml:"elk_local" validate:"omitempty,scripturl"`
	IncludeElk    bool           `toml:"include_elk"`
	ZenUMLVersion string         `toml:"zenuml_version"`
	ZenUMLLocal   string         `toml:"zenuml_local" validate:"omitempty,scripturl"`
	IncludeZenUML bool           `toml:"include_zenuml"`
	D3Version     string         `toml:"d3_version"`
	D3Local       string         `toml:"d3_local" validate:"omitempty,scripturl"`
	Zoom          bool           `toml:"zoom"`
	Fullscreen    bool           `toml:"fullscreen"`
	Button        string         `toml:"fullscreen_button"`
	ButtonOpacity string         `toml:"fullscreen_button_opacity" validate:"numeric"`
	Width         string         `toml:"width" validate:"csssize"`
	Height        string         `toml:"height" validate:"csssize"`
	Priority      int            `toml:"js_priority" validate:"gte=0"`
	InitConfig    map[string]any `toml:"init_config"`
}

// Cache configures the artifact mirror.
type Cache struct {
	Mirror   string `toml:"mirror" validate:"oneof=none file redis"`
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url" validate:"required_if=Mirror redis"`
	Scope    string `toml:"scope"`
}

// Classes configures class-hierarchy diagrams.
type Classes struct {
	SourceDir string `toml:"source_dir"`
	RootBase  string `toml:"root_base"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Render: Render{
			Command:      CommandLine{DefaultCommand},
			OutputFormat: DefaultOutputFormat,
			ImageDir:     DefaultImageDir,
			Prefix:       DefaultPrefix,
			Concurrency:  DefaultConcurrency,
		},
		HTML: HTML{
			Version:       DefaultMermaidVersion,
			ElkVersion:    DefaultElkVersion,
			ZenUMLVersion: DefaultZenUMLVersion,
			D3Version:     DefaultD3Version,
			Fullscreen:    true,
			Button:        DefaultButton,
			ButtonOpacity: DefaultButtonOpacity,
			Width:         DefaultWidth,
			Height:        DefaultHeight,
			Priority:      DefaultPriority,
			InitConfig:    map[string]any{"startOnLoad": false},
		},
		Cache: Cache{
			Mirror: MirrorNone,
		},
		Classes: Classes{
			RootBase: DefaultRootBase,
		},
	}
}

// Find walks up from startDir looking for mmdoc.toml.
// It reports false when no file exists between startDir and the filesystem root.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the configuration for startDir, falling back to
// defaults when no file exists.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// Load decodes the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "%s: failed to parse TOML", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults. It is the in-memory variant of Load.
func Parse(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "failed to parse TOML")
	}
	return cfg, cfg.Validate()
}

// Root returns the directory containing the configuration file, or "" for defaults.
func (c *Config) Root() string {
	if c.Path == "" {
		return ""
	}
	return filepath.Dir(c.Path)
}

// ResolvePath resolves p relative to the configuration file directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Path == "" {
		return p
	}
	return filepath.Join(c.Root(), p)
}

// InitConfigJSON returns the mermaid initialization object as JSON.
func (h HTML) InitConfigJSON() (string, error) {
	obj := h.InitConfig
	if obj == nil {
		obj = map[string]any{}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "init_config is not JSON-serializable")
	}
	return string(data), nil
}

// CommandLine is a command with its leading arguments. In TOML it may be
// written either as a string split on whitespace or as an array of strings.
type CommandLine []string

// UnmarshalTOML implements toml.Unmarshaler.
func (c *CommandLine) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*c = strings.Fields(val)
		return nil
	case []any:
		out := make(CommandLine, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("command entries must be strings, got %T", item)
			}
			out = append(out, s)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("command must be a string or an array of strings, got %T", v)
	}
}

// String joins the command with spaces.
func (c CommandLine) String() string {
	return strings.Join(c, " ")
}
