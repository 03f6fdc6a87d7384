package render

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// CropSuffix is appended to the base name of cropped PDFs, matching pdfcrop.
const CropSuffix = "-crop"

// CanCrop reports whether a crop utility is configured.
func (r *Renderer) CanCrop() bool {
	return len(r.cfg.CropCommand) > 0
}

// Crop runs the crop utility on a rendered PDF and returns the cropped
// artifact `<base>-crop.pdf`. An existing cropped file is reused; the cropper
// works on a private copy, so a cropped file is only ever complete.
//
// A missing crop binary is warned about once and yields a zero Artifact; the
// input artifact stays valid in every case.
func (r *Renderer) Crop(ctx context.Context, bc *BuildContext, in Artifact) (Artifact, error) {
	if !r.CanCrop() || in.IsZero() {
		return in, nil
	}
	if bc == nil {
		bc = NewBuildContext()
	}

	out := Artifact{
		WebPath:  cropName(in.WebPath, path.Ext(in.WebPath)),
		DiskPath: cropName(in.DiskPath, filepath.Ext(in.DiskPath)),
		Origin:   OriginDisk,
	}
	if fileExists(out.DiskPath) {
		return out, nil
	}

	key := "crop:" + strings.Join(r.cfg.CropCommand, " ")
	if bc.Warned(key) {
		return Artifact{}, nil
	}

	v, err, _ := r.group.Do(out.DiskPath, func() (any, error) {
		if fileExists(out.DiskPath) {
			return out, nil
		}
		return r.crop(ctx, bc, key, in, out)
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}

// crop runs the cropper on a private copy of the input inside the image
// directory and places the result, so out.DiskPath is either absent or complete.
func (r *Renderer) crop(ctx context.Context, bc *BuildContext, key string, in, out Artifact) (Artifact, error) {
	dir := filepath.Dir(out.DiskPath)
	tmpDir, err := os.MkdirTemp(dir, ".mmdoc-crop-")
	if err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	tmpIn := filepath.Join(tmpDir, filepath.Base(in.DiskPath))
	if err := copyFile(in.DiskPath, tmpIn); err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "copy pdf for cropping")
	}
	tmpOut := cropName(tmpIn, filepath.Ext(tmpIn))

	argv := append(append([]string{}, r.cfg.CropCommand...), tmpIn)
	res, err := runTool(ctx, argv, false, "")
	if errors.Is(err, errToolMissing) {
		if bc.WarnOnce(key) {
			r.logger.Warn("command cannot be run (needed to crop pdf), check the pdfcrop setting",
				"command", strings.Join(r.cfg.CropCommand, " "))
		}
		return Artifact{}, nil
	}
	if r.cfg.Verbose && res.stdout != "" {
		r.logger.Info("pdfcrop output", "stdout", strings.TrimSpace(res.stdout))
	}
	if err != nil {
		if ctx.Err() != nil {
			return Artifact{}, err
		}
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "pdfcrop exited with error:\n%s", describeOutput(res))
	}
	if !fileExists(tmpIn) || !fileExists(tmpOut) {
		return Artifact{}, pkgerrors.New(pkgerrors.ErrCodeRenderFailed, "pdfcrop did not produce an output file:\n%s", describeOutput(res))
	}
	if err := place(tmpOut, out.DiskPath); err != nil {
		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "place cropped pdf")
	}
	out.Origin = OriginRender
	return out, nil
}

// copyFile copies src to a new file dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func cropName(p, ext string) string {
	return strings.TrimSuffix(p, ext) + CropSuffix + ext
}
