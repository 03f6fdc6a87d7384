package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/config"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	format   string // png, svg or pdf
	output   string // artifact directory
	noMirror bool
}

// validRenderFormats are the artifact formats a standalone diagram renders to.
var validRenderFormats = map[string]bool{
	render.FormatPNG: true,
	render.FormatSVG: true,
	render.FormatPDF: true,
}

// renderCommand creates the render command for one diagram file.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{format: render.FormatSVG}

	cmd := &cobra.Command{
		Use:   "render [file.mmd]",
		Short: "Render a Mermaid diagram file to PNG, SVG or PDF",
		Long: `Render a single Mermaid diagram file with the configured renderer.

The artifact is named after the hash of the diagram text and renderer options,
so rendering an unchanged diagram again reuses the existing file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validRenderFormats[opts.format] {
				return pkgerrors.New(pkgerrors.ErrCodeInvalidFormat,
					"invalid format: %s (must be 'png', 'svg' or 'pdf')", opts.format)
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), png, pdf")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default: next to the input file)")
	cmd.Flags().BoolVar(&opts.noMirror, "no-mirror", false, "skip the artifact mirror")
	completeValues(cmd, "format", renderFormats)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, file string, opts renderOpts) error {
	cfg, err := c.loadConfig(filepath.Dir(file))
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noMirror)
	if err != nil {
		return err
	}
	defer runner.Close()

	outDir := opts.output
	if outDir == "" {
		outDir = filepath.Dir(file)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s", filepath.Base(file)))
	spinner.Start()
	path, err := runner.RenderDiagram(ctx, file, outDir, opts.format)
	if err != nil {
		spinner.StopWithError(pkgerrors.UserMessage(err))
		return err
	}
	if path == "" {
		spinner.Stop()
		printWarning("Renderer %s is not available", cfg.Render.Command)
		printDetail("Set render.command in %s", config.FileName)
		return pkgerrors.New(pkgerrors.ErrCodeToolMissing, "cannot run %s", cfg.Render.Command)
	}
	spinner.StopWithSuccess("Rendered " + filepath.Base(file))
	printFile(path)
	return nil
}
