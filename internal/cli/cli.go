// Package cli implements the mmdoc command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/buildinfo"
	"github.com/matzehuels/mmdoc/pkg/cache"
	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mmdoc"

	// mirrorSubdir holds the file mirror inside the cache directory.
	mirrorSubdir = "artifacts"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string // --config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "mmdoc renders Mermaid diagrams in Markdown documentation",
		Long:         `mmdoc builds Markdown documentation with Mermaid diagrams, rendering them to images with the Mermaid CLI or embedding them for client-side rendering with zoom and fullscreen viewing.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "configuration file (default: mmdoc.toml found above the source)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.bundleCommand())
	root.AddCommand(c.classtreeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration and Runner Factory
// =============================================================================

// loadConfig loads --config when given, otherwise the mmdoc.toml discovered
// above startDir.
func (c *CLI) loadConfig(startDir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.Discover(startDir)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		c.Logger.Debug("loaded configuration", "path", cfg.Path)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noMirror bool) (*pipeline.Runner, error) {
	mirror, err := c.newMirror(ctx, cfg, noMirror)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cfg, mirror, nil, c.Logger), nil
}

func (c *CLI) newMirror(ctx context.Context, cfg *config.Config, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	defaultDir := ""
	if dir, err := cacheDir(); err == nil {
		defaultDir = filepath.Join(dir, mirrorSubdir)
	}
	return pipeline.OpenMirror(ctx, cfg, defaultDir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mmdoc/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
