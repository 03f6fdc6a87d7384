package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mmdoc/pkg/bundle"
	"github.com/matzehuels/mmdoc/pkg/cache"
	"github.com/matzehuels/mmdoc/pkg/classdiag"
	"github.com/matzehuels/mmdoc/pkg/config"
	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/dispatch"
	"github.com/matzehuels/mmdoc/pkg/emit"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/observability"
	"github.com/matzehuels/mmdoc/pkg/page"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// Runner builds pages and sites from one configuration.
//
// The Runner holds no per-build state; each BuildSite or BuildPage call gets
// its own renderer and build context. Multiple goroutines can safely use the
// same Runner.
type Runner struct {
	Config *config.Config
	Cache  cache.Cache // artifact mirror
	Keyer  cache.Keyer
	Logger *log.Logger

	classes func() (classdiag.Registry, error)
}

// NewRunner creates a runner.
// If cfg is nil, the default configuration is used.
// If mirror is nil, a NullCache is used (mirroring disabled).
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(cfg *config.Config, mirror cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if mirror == nil {
		mirror = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{Config: cfg, Cache: mirror, Keyer: keyer, Logger: logger}
	if dir := cfg.Classes.SourceDir; dir != "" {
		r.classes = sync.OnceValues(func() (classdiag.Registry, error) {
			reg, err := classdiag.LoadGoPackages(cfg.ResolvePath(dir))
			if err != nil {
				return nil, err
			}
			logger.Debug("loaded class registry", "dir", dir, "classes", reg.Len())
			return reg, nil
		})
	}
	return r
}

// Close releases resources held by the runner (primarily the mirror).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// build is the state of one BuildSite or BuildPage call.
type build struct {
	r         *Runner
	opts      Options
	target    emit.Target
	html      bool
	parser    *page.Parser
	bc        *render.BuildContext
	disp      *dispatch.Dispatcher
	assembler *bundle.Assembler
}

func (r *Runner) newBuild(opts Options) (*build, error) {
	if err := opts.ValidateAndSetDefaults(r.Config.Render.Concurrency); err != nil {
		return nil, err
	}
	target, err := parseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	cfg := r.Config
	html := opts.Target == TargetHTML

	imageDir := filepath.Join(opts.OutDir, cfg.Render.ImageDir)
	webDir := "/" + path.Clean(filepath.ToSlash(cfg.Render.ImageDir))
	if !html {
		// Print toolchains resolve images on disk.
		if webDir, err = filepath.Abs(imageDir); err != nil {
			return nil, fmt.Errorf("resolve image dir: %w", err)
		}
	}

	renderer, err := r.newRenderer(imageDir, webDir)
	if err != nil {
		return nil, err
	}

	bc := render.NewBuildContext()
	disp, err := dispatch.New(renderer, bc, cfg.Render.OutputFormat, r.Logger)
	if err != nil {
		return nil, err
	}

	return &build{
		r:      r,
		opts:   opts,
		target: target,
		html:   html,
		bc:     bc,
		disp:   disp,
		parser: page.NewParser(page.Options{
			Root:     opts.SrcDir,
			Classes:  r.classes,
			RootBase: cfg.Classes.RootBase,
		}),
		assembler: bundle.New(cfg.HTML, cfg.Render.OutputFormat),
	}, nil
}

// BuildPage builds the single page at srcPath into opts.OutDir.
func (r *Runner) BuildPage(ctx context.Context, opts Options, srcPath string) (PageResult, error) {
	b, err := r.newBuild(opts)
	if err != nil {
		return PageResult{}, err
	}
	return b.page(ctx, srcPath)
}

// BuildSite builds every Markdown page under opts.SrcDir and copies the other
// files alongside. Pages are built concurrently; the first page error cancels
// the rest.
func (r *Runner) BuildSite(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	b, err := r.newBuild(opts)
	if err != nil {
		return nil, err
	}

	pages, assets, err := b.scan()
	if err != nil {
		return nil, err
	}
	r.Logger.Info("building site", "src", b.opts.SrcDir, "out", b.opts.OutDir, "pages", len(pages), "target", b.opts.Target)
	if b.opts.OnScan != nil {
		names := make([]string, len(pages))
		for i, p := range pages {
			names[i] = b.parser.Name(p)
		}
		b.opts.OnScan(names)
	}

	results := make([]PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			res, err := b.page(gctx, p)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range assets {
		if err := b.copyAsset(a); err != nil {
			return nil, err
		}
	}

	res := &Result{Pages: results}
	for _, p := range results {
		res.Stats.Diagrams += p.Diagrams
		res.Stats.Warnings += p.Warnings
	}
	rs := b.bc.Stats()
	res.Stats.Pages = len(results)
	res.Stats.Assets = len(assets)
	res.Stats.Rendered = rs.Rendered
	res.Stats.DiskHits = rs.DiskHits
	res.Stats.MirrorHits = rs.MirrorHits
	res.Stats.Duration = time.Since(start)
	return res, nil
}

// PageBundle parses the page at srcPath and returns the bundle it would
// receive, without rendering anything.
func (r *Runner) PageBundle(srcPath string) (bundle.Bundle, *page.Page, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return bundle.Bundle{}, nil, pkgerrors.Wrap(pkgerrors.ErrCodeFileNotFound, err, "read %s", srcPath)
	}
	root := r.Config.Root()
	if root == "" {
		root = filepath.Dir(srcPath)
	}
	p := page.NewParser(page.Options{Root: root, Classes: r.classes, RootBase: r.Config.Classes.RootBase})
	pg, err := p.Parse(srcPath, src)
	if err != nil {
		return bundle.Bundle{}, nil, err
	}
	bnd, err := bundle.New(r.Config.HTML, r.Config.Render.OutputFormat).Assemble(pg.Diagrams)
	if err != nil {
		return bundle.Bundle{}, nil, err
	}
	return bnd, pg, nil
}

// RenderDiagram renders a standalone diagram file to outDir in format
// (png, svg or pdf) and returns the artifact path. An empty path with a nil
// error means the renderer is unavailable and a warning was logged.
func (r *Runner) RenderDiagram(ctx context.Context, file, outDir, format string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeFileNotFound, err, "read %s", file)
	}
	inst, err := diagram.NewInstance(string(data), diagram.Options{}, nil)
	if err != nil {
		return "", err
	}
	renderer, err := r.newRenderer(outDir, outDir)
	if err != nil {
		return "", err
	}
	bc := render.NewBuildContext()
	art, err := renderer.Render(ctx, bc, inst.Source, format)
	if err != nil {
		return "", err
	}
	if format == render.FormatPDF && !art.IsZero() && renderer.CanCrop() {
		cropped, err := renderer.Crop(ctx, bc, art)
		if err != nil {
			r.Logger.Warn("crop failed, keeping uncropped PDF", "file", art.DiskPath, "err", err)
		} else if !cropped.IsZero() {
			art = cropped
		}
	}
	return art.DiskPath, nil
}

// newRenderer creates a renderer writing to imageDir and linking through webDir.
func (r *Runner) newRenderer(imageDir, webDir string) (*render.Renderer, error) {
	cfg := r.Config
	return render.NewRenderer(render.Config{
		Command:        cfg.Render.Command,
		Shell:          cfg.Render.Shell,
		CropCommand:    cfg.Render.PDFCrop,
		Params:         cfg.Render.Params,
		Verbose:        cfg.Render.Verbose,
		SequenceConfig: cfg.ResolvePath(cfg.Render.SequenceConfig),
		ImageDir:       imageDir,
		WebDir:         webDir,
		Prefix:         cfg.Render.Prefix,
		MirrorScope:    cfg.Cache.Scope,
	}, r.Cache, r.Keyer, r.Logger)
}

// scan lists pages and assets under the source directory in lexical order.
// Hidden entries and the output directory are skipped.
func (b *build) scan() (pages, assets []string, err error) {
	outAbs, _ := filepath.Abs(b.opts.OutDir)
	err = filepath.WalkDir(b.opts.SrcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != b.opts.SrcDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(p); abs == outAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == config.FileName {
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".md") {
			pages = append(pages, p)
		} else {
			assets = append(assets, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", b.opts.SrcDir, err)
	}
	return pages, assets, nil
}

// page builds one page and writes its output file.
func (b *build) page(ctx context.Context, srcPath string) (PageResult, error) {
	start := time.Now()
	logger := b.r.Logger

	src, err := os.ReadFile(srcPath)
	if err != nil {
		return PageResult{}, pkgerrors.Wrap(pkgerrors.ErrCodeFileNotFound, err, "read %s", srcPath)
	}
	pg, err := b.parser.Parse(srcPath, src)
	if err != nil {
		return PageResult{}, err
	}
	for _, w := range pg.Warnings {
		logger.Warn("skipping diagram", "location", w.Location, "code", pkgerrors.GetCode(w.Err), "err", w.Err)
	}

	failed := 0
	disp := b.disp.WithReporter(func(inst *diagram.Instance, err error) {
		failed++
		logger.Warn("skipping diagram", "location", inst.Location, "code", pkgerrors.GetCode(err), "err", err)
	})

	var out bytes.Buffer
	if b.html {
		bnd, err := b.assembler.Assemble(pg.Diagrams)
		if err != nil {
			return PageResult{}, fmt.Errorf("%s: %w", pg.Name, err)
		}
		var body bytes.Buffer
		if err := pg.RenderHTML(ctx, &body, disp); err != nil {
			return PageResult{}, fmt.Errorf("%s: %w", pg.Name, err)
		}
		if err := writeHTMLPage(&out, pg.Title, bnd, body.Bytes()); err != nil {
			return PageResult{}, err
		}
	} else {
		frags, err := pg.Fragments(ctx, disp, b.target)
		if err != nil {
			return PageResult{}, err
		}
		for i, f := range frags {
			if i > 0 {
				out.WriteString("\n")
			}
			out.WriteString(f.Text)
		}
	}

	dest, err := b.outputPath(srcPath)
	if err != nil {
		return PageResult{}, err
	}
	if err := writeFile(dest, out.Bytes()); err != nil {
		return PageResult{}, err
	}

	res := PageResult{
		Source:   srcPath,
		Name:     pg.Name,
		Output:   dest,
		Title:    pg.Title,
		Diagrams: len(pg.Diagrams),
		Warnings: len(pg.Warnings) + failed,
		Duration: time.Since(start),
	}
	observability.Render().OnPageComplete(ctx, res.Name, res.Diagrams, res.Warnings, res.Duration)
	logger.Debug("built page", "page", res.Name, "diagrams", res.Diagrams, "warnings", res.Warnings, "duration", res.Duration)
	if b.opts.OnPage != nil {
		b.opts.OnPage(res)
	}
	return res, nil
}

func (b *build) outputPath(srcPath string) (string, error) {
	rel, err := filepath.Rel(b.opts.SrcDir, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(srcPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + outputExt(b.target)
	return filepath.Join(b.opts.OutDir, rel), nil
}

func (b *build) copyAsset(src string) error {
	rel, err := filepath.Rel(b.opts.SrcDir, src)
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", src, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open asset: %w", err)
	}
	defer in.Close()

	dest := filepath.Join(b.opts.OutDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy asset %s: %w", rel, err)
	}
	return out.Close()
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
