package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/bundle"
)

// bundleCommand prints the client-script bundle a page would receive.
func (c *CLI) bundleCommand() *cobra.Command {
	var (
		behavior     bool
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "bundle [page.md]",
		Short: "Print the script bundle injected into a page",
		Long: `Print the script and module tags a page receives in its head.

Nothing is rendered. Diagram directive errors are reported as warnings, the
same way a build reports them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(filepath.Dir(args[0]))
			if err != nil {
				return err
			}
			if outputFormat != "" {
				cfg.Render.OutputFormat = outputFormat
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			runner, err := c.newRunner(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer runner.Close()

			b, pg, err := runner.PageBundle(args[0])
			if err != nil {
				return err
			}
			for _, w := range pg.Warnings {
				c.Logger.Warn("skipping diagram", "location", w.Location, "err", w.Err)
			}
			return writeBundle(cmd.OutOrStdout(), b, behavior)
		},
	}

	cmd.Flags().BoolVar(&behavior, "behavior", false, "print only the module script body")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "HTML diagram format: raw, png, svg (overrides the config file)")

	return cmd
}

func writeBundle(w io.Writer, b bundle.Bundle, behavior bool) error {
	if b.Empty() {
		printInfo("Page needs no scripts")
		return nil
	}
	out := b.HTML()
	if behavior {
		out = b.Behavior()
	}
	_, err := fmt.Fprint(w, out)
	return err
}
