package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/classdiag"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// classtreeOpts holds the command-line flags for the classtree command.
type classtreeOpts struct {
	source    string // Go module to load types from
	full      bool
	strict    bool
	namespace string
	rootBase  string
	preview   string // SVG file drawn with Graphviz
	dot       bool
}

// classtreeCommand prints the inheritance diagram for types of a Go module.
func (c *CLI) classtreeCommand() *cobra.Command {
	var opts classtreeOpts

	cmd := &cobra.Command{
		Use:   "classtree [ref...]",
		Short: "Print an inheritance diagram for Go types",
		Long: `Print a Mermaid flowchart of the embedding hierarchy of Go types.

Each ref names a type (pkg.Type) or a package. Packages expand to the types
they declare or alias; --strict drops aliases of types declared elsewhere.
Types are loaded from --source, or from classes.source_dir in the
configuration file.`,
		Example: `  mmdoc classtree pipeline.Runner
  mmdoc classtree --full --namespace pkg render
  mmdoc classtree cache --preview cache.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClasstree(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Go module directory (default: classes.source_dir or .)")
	cmd.Flags().BoolVar(&opts.full, "full", false, "follow bases transitively")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "only types declared in the referenced packages")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "drop bases outside this package prefix")
	cmd.Flags().StringVar(&opts.rootBase, "root-base", "", "universal base to omit (default: classes.root_base)")
	cmd.Flags().StringVar(&opts.preview, "preview", "", "also draw the hierarchy to this SVG file with Graphviz")
	cmd.Flags().BoolVar(&opts.dot, "dot", false, "print Graphviz DOT instead of Mermaid")

	return cmd
}

func (c *CLI) runClasstree(ctx context.Context, w io.Writer, refs []string, opts classtreeOpts) error {
	cfg, err := c.loadConfig(".")
	if err != nil {
		return err
	}
	dir := opts.source
	if dir == "" {
		dir = cfg.ResolvePath(cfg.Classes.SourceDir)
	}
	if dir == "" {
		dir = "."
	}
	rootBase := opts.rootBase
	if rootBase == "" {
		rootBase = cfg.Classes.RootBase
	}

	logger := loggerFromContext(ctx)
	reg, err := classdiag.LoadGoPackages(dir)
	if err != nil {
		return err
	}
	logger.Debug("loaded types", "dir", dir, "count", reg.Len())

	edges, err := classdiag.Edges(reg, refs, classdiag.Options{
		Full:      opts.full,
		Strict:    opts.strict,
		Namespace: opts.namespace,
		RootBase:  rootBase,
	})
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		logger.Warn("no inheritance edges", "refs", refs)
	}

	out := classdiag.Source(edges)
	if opts.dot {
		out = classdiag.ToDOT(edges)
	}
	if _, err := io.WriteString(w, out); err != nil {
		return err
	}

	if opts.preview != "" {
		svg, err := classdiag.RenderSVG(ctx, classdiag.ToDOT(edges))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "draw preview")
		}
		if err := os.WriteFile(opts.preview, svg, 0o644); err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
		printFile(opts.preview)
	}
	return nil
}
