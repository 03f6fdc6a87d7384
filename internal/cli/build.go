package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/pipeline"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	output       string
	target       string
	outputFormat string // overrides render.output_format
	concurrency  int
	noMirror     bool
	plain        bool // force log output instead of the progress view
}

// buildCommand creates the build command for a documentation tree.
func (c *CLI) buildCommand() *cobra.Command {
	opts := buildOpts{target: pipeline.TargetHTML}

	cmd := &cobra.Command{
		Use:   "build [src]",
		Short: "Build a Markdown documentation tree",
		Long: `Build every Markdown page under src, rendering its Mermaid diagrams.

HTML builds (the default) embed diagrams according to render.output_format:
raw keeps the source for client-side rendering, png and svg reference
rendered images. Other targets write one file per page holding the rendered
diagram fragments.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "."
			if len(args) == 1 {
				src = args[0]
			}
			return c.runBuild(cmd.Context(), src, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default: <src>/_build)")
	cmd.Flags().StringVarP(&opts.target, "target", "t", opts.target, "build target: html, latex, texinfo, text, man")
	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "", "HTML diagram format: raw, png, svg (overrides the config file)")
	cmd.Flags().IntVarP(&opts.concurrency, "jobs", "j", 0, "pages built in parallel (default: render.concurrency)")
	cmd.Flags().BoolVar(&opts.noMirror, "no-mirror", false, "skip the artifact mirror")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress instead of showing the progress view")
	completeValues(cmd, "target", buildTargets)
	completeValues(cmd, "format", htmlFormats)

	return cmd
}

func (c *CLI) runBuild(ctx context.Context, src string, opts buildOpts) error {
	cfg, err := c.loadConfig(src)
	if err != nil {
		return err
	}
	if err := applyBuildFlags(cfg, opts); err != nil {
		return err
	}

	popts := pipeline.Options{
		SrcDir:      src,
		OutDir:      opts.output,
		Target:      opts.target,
		Concurrency: opts.concurrency,
	}

	interactive := !opts.plain && isatty.IsTerminal(os.Stderr.Fd())

	// Log lines would tear the progress view; they are replayed afterwards.
	var deferred bytes.Buffer
	logger := c.Logger
	if interactive {
		logger = newLogger(&deferred, c.Logger.GetLevel())
	}

	mirror, err := c.newMirror(ctx, cfg, opts.noMirror)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cfg, mirror, nil, logger)
	defer runner.Close()

	prog := newStopwatch(c.Logger)
	var res *pipeline.Result
	if interactive {
		res, err = runBuildWithUI(ctx, runner, popts)
		os.Stderr.Write(deferred.Bytes())
	} else {
		popts.OnPage = func(p pipeline.PageResult) {
			logger.Debug("built", "page", p.Name, "diagrams", p.Diagrams, "warnings", p.Warnings)
		}
		res, err = runner.BuildSite(ctx, popts)
	}
	if err != nil {
		return err
	}

	prog.done("Build finished", "out", outDirOf(popts))
	printStats(res.Stats)
	return nil
}

// applyBuildFlags overrides configuration values with command-line flags.
func applyBuildFlags(cfg *config.Config, opts buildOpts) error {
	if opts.outputFormat != "" {
		cfg.Render.OutputFormat = opts.outputFormat
	}
	if opts.concurrency > 0 {
		cfg.Render.Concurrency = opts.concurrency
	}
	return cfg.Validate()
}

func outDirOf(opts pipeline.Options) string {
	if opts.OutDir != "" {
		return opts.OutDir
	}
	return filepath.Join(opts.SrcDir, pipeline.DefaultOutDir)
}
