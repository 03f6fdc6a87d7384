package render

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/mmdoc/pkg/cache"
	"github.com/matzehuels/mmdoc/pkg/diagram"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/observability"
)

// Artifact formats.
const (
	FormatRaw = "raw"
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatPDF = "pdf"
)

// DefaultPrefix is the artifact filename prefix.
const DefaultPrefix = "mermaid"

// configFileFlag passes the sequence configuration file to mmdc.
const configFileFlag = "--configFile"

// OptionFlags maps per-diagram render options to mmdc flags.
var OptionFlags = map[string]string{
	"theme":      "-t",
	"background": "-b",
	"width":      "-w",
	"height":     "-H",
	"scale":      "-s",
}

// Origin tells where an artifact came from.
type Origin int

const (
	OriginNone Origin = iota
	OriginDisk
	OriginMirror
	OriginRender
)

// Artifact is a rendered file. The zero value means "no artifact": the tool
// was unavailable and callers should degrade to the diagram source.
type Artifact struct {
	WebPath  string // path relative to the site root, slash separated
	DiskPath string
	Origin   Origin
}

// IsZero reports whether a is "no artifact".
func (a Artifact) IsZero() bool {
	return a.DiskPath == ""
}

// MapPath returns the path of the companion image map.
func (a Artifact) MapPath() string {
	return strings.TrimSuffix(a.DiskPath, filepath.Ext(a.DiskPath)) + ".map"
}

// Config configures a Renderer.
type Config struct {
	Command        []string // tool binary and leading arguments
	Shell          bool     // run through sh -c
	CropCommand    []string // crop utility; empty disables Crop
	Params         []string // extra tool arguments
	Verbose        bool     // log tool stdout at info level
	SequenceConfig string   // path of the --configFile argument
	ImageDir       string   // directory artifacts are written to
	WebDir         string   // site-relative directory matching ImageDir
	Prefix         string   // filename prefix, DefaultPrefix when empty
	MirrorScope    string   // mirror key prefix
}

// Renderer produces artifacts with the external tool.
// It is safe for concurrent use.
type Renderer struct {
	cfg         Config
	globals     cache.ArtifactGlobals
	keyer       cache.Keyer
	mirrorKeyer cache.Keyer
	mirror      cache.Cache
	logger      *log.Logger
	group       singleflight.Group
}

// NewRenderer creates a renderer.
// If keyer is nil, a DefaultKeyer is used.
// If mirror is nil, a NullCache is used (mirroring disabled).
//
// The sequence configuration file, when set, is read once so its content
// participates in artifact keys.
func NewRenderer(cfg Config, mirror cache.Cache, keyer cache.Keyer, logger *log.Logger) (*Renderer, error) {
	if len(cfg.Command) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "render command is empty")
	}
	if cfg.ImageDir == "" {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "image directory is empty")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if mirror == nil {
		mirror = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}

	globals := cache.ArtifactGlobals{Params: cfg.Params}
	if cfg.SequenceConfig != "" {
		data, err := os.ReadFile(cfg.SequenceConfig)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "read sequence config")
		}
		globals.SequenceConfig = string(data)
	}

	return &Renderer{
		cfg:         cfg,
		globals:     globals,
		keyer:       keyer,
		mirrorKeyer: cache.NewScopedKeyer(keyer, cfg.MirrorScope),
		mirror:      mirror,
		logger:      logger,
	}, nil
}

// Ext returns the file extension for format. Raw output needs a PNG when an
// artifact is requested.
func Ext(format string) (string, error) {
	switch format {
	case FormatRaw, FormatPNG:
		return FormatPNG, nil
	case FormatSVG, FormatPDF:
		return format, nil
	}
	return "", pkgerrors.New(pkgerrors.ErrCodeInvalidFormat, "unsupported artifact format %q", format)
}

// Filename returns the artifact filename for src in format without rendering.
func (r *Renderer) Filename(src diagram.Source, format string) (string, error) {
	ext, err := Ext(format)
	if err != nil {
		return "", err
	}
	return r.cfg.Prefix + "-" + r.keyer.ArtifactKey(src.Text, src.Options, r.globals) + "." + ext, nil
}

// Render returns the artifact for src in format, running the tool only when
// no artifact with the same key exists. A nil bc gets a fresh BuildContext.
func (r *Renderer) Render(ctx context.Context, bc *BuildContext, src diagram.Source, format string) (Artifact, error) {
	if bc == nil {
		bc = NewBuildContext()
	}
	fname, err := r.Filename(src, format)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		WebPath:  path.Join(filepath.ToSlash(r.cfg.WebDir), fname),
		DiskPath: filepath.Join(r.cfg.ImageDir, fname),
	}

	if fileExists(art.DiskPath) {
		observability.Cache().OnCacheHit(ctx, "disk")
		art.Origin = OriginDisk
		bc.record(art.Origin)
		return art, nil
	}
	observability.Cache().OnCacheMiss(ctx, "disk")

	if bc.Warned(r.toolKey()) {
		return Artifact{}, nil
	}

	v, err, _ := r.group.Do(art.DiskPath, func() (any, error) {
		return r.produce(ctx, bc, src, art)
	})
	if err != nil {
		return Artifact{}, err
	}
	out := v.(Artifact)
	bc.record(out.Origin)
	return out, nil
}

// produce fills art.DiskPath from the mirror or the tool.
func (r *Renderer) produce(ctx context.Context, bc *BuildContext, src diagram.Source, art Artifact) (Artifact, error) {
	if fileExists(art.DiskPath) {
		art.Origin = OriginDisk
		return art, nil
	}
	if err := os.MkdirAll(r.cfg.ImageDir, 0755); err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "create image directory")
	}

	ext := strings.TrimPrefix(filepath.Ext(art.DiskPath), ".")
	mkey := r.mirrorKeyer.ArtifactKey(src.Text, src.Options, r.globals) + "." + ext
	if ok := r.fromMirror(ctx, mkey, art); ok {
		art.Origin = OriginMirror
		return art, nil
	}

	tmpDir, err := os.MkdirTemp(r.cfg.ImageDir, ".mmdoc-")
	if err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	base := strings.TrimSuffix(filepath.Base(art.DiskPath), "."+ext)
	in := filepath.Join(tmpDir, base+".mmd")
	out := filepath.Join(tmpDir, base+"."+ext)
	if err := os.WriteFile(in, []byte(src.Text), 0644); err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "write diagram source")
	}

	argv := r.args(src.Options, in, out)
	observability.Render().OnRenderStart(ctx, ext)
	start := time.Now()
	res, err := runTool(ctx, argv, r.cfg.Shell, src.Text)
	if errors.Is(err, errToolMissing) {
		observability.Render().OnRenderComplete(ctx, ext, time.Since(start), err)
		r.warnMissing(ctx, bc, "needed for mermaid output")
		return Artifact{}, nil
	}
	if r.cfg.Verbose && res.stdout != "" {
		r.logger.Info("mermaid output", "stdout", strings.TrimSpace(res.stdout))
	}
	if err == nil && !fileExists(out) {
		err = pkgerrors.New(pkgerrors.ErrCodeRenderFailed, "mermaid did not produce an output file:\n%s", describeOutput(res))
	} else if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "mermaid exited with error:\n%s", describeOutput(res))
	}
	observability.Render().OnRenderComplete(ctx, ext, time.Since(start), err)
	if err != nil {
		return Artifact{}, err
	}

	if err := place(out, art.DiskPath); err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "place artifact")
	}
	tmpMap := strings.TrimSuffix(out, "."+ext) + ".map"
	if fileExists(tmpMap) {
		if err := place(tmpMap, art.MapPath()); err != nil {
			r.logger.Warn("could not place image map", "path", art.MapPath(), "err", err)
		}
	}

	r.toMirror(ctx, mkey, art)
	art.Origin = OriginRender
	return art, nil
}

// args builds the tool command line.
func (r *Renderer) args(opts map[string]string, in, out string) []string {
	argv := append([]string{}, r.cfg.Command...)
	argv = append(argv, r.cfg.Params...)

	keys := make([]string, 0, len(opts))
	for k := range opts {
		if _, ok := OptionFlags[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		argv = append(argv, OptionFlags[k], opts[k])
	}

	argv = append(argv, "-i", in, "-o", out)
	if r.cfg.SequenceConfig != "" {
		argv = append(argv, configFileFlag, r.cfg.SequenceConfig)
	}
	return argv
}

func (r *Renderer) toolKey() string {
	return "tool:" + strings.Join(r.cfg.Command, " ")
}

func (r *Renderer) warnMissing(ctx context.Context, bc *BuildContext, purpose string) {
	cmd := strings.Join(r.cfg.Command, " ")
	if bc.WarnOnce(r.toolKey()) {
		observability.Render().OnToolMissing(ctx, cmd)
		r.logger.Warn("command cannot be run ("+purpose+"), check the render command setting", "command", cmd)
	}
}

func (r *Renderer) fromMirror(ctx context.Context, key string, art Artifact) bool {
	data, hit, err := r.mirror.Get(ctx, key)
	if err != nil {
		r.logger.Debug("artifact mirror lookup failed", "err", err)
		return false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "mirror")
		return false
	}
	if err := writePlaced(r.cfg.ImageDir, art.DiskPath, data); err != nil {
		r.logger.Warn("could not restore mirrored artifact", "path", art.DiskPath, "err", err)
		return false
	}
	if mapData, ok, _ := r.mirror.Get(ctx, key+".map"); ok {
		_ = writePlaced(r.cfg.ImageDir, art.MapPath(), mapData)
	}
	observability.Cache().OnCacheHit(ctx, "mirror")
	return true
}

func (r *Renderer) toMirror(ctx context.Context, key string, art Artifact) {
	if _, ok := r.mirror.(*cache.NullCache); ok {
		return
	}
	data, err := os.ReadFile(art.DiskPath)
	if err != nil {
		return
	}
	if err := r.mirror.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		r.logger.Debug("artifact mirror write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "mirror", len(data))
	if mapData, err := os.ReadFile(art.MapPath()); err == nil {
		_ = r.mirror.Set(ctx, key+".map", mapData, cache.TTLArtifact)
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// place moves tmp to final without ever exposing a partial file. A hard link
// fails with EEXIST when another writer already placed the artifact; that
// artifact is identical, so the link error is ignored.
func place(tmp, final string) error {
	err := os.Link(tmp, final)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return os.Rename(tmp, final)
}

// writePlaced writes data to a temporary file in dir and places it at final.
func writePlaced(dir, final string, data []byte) error {
	f, err := os.CreateTemp(dir, ".mmdoc-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return place(f.Name(), final)
}
