package diagram

import (
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// Resolver loads diagram text for a directive, either inline or from a file
// argument. A Resolver belongs to a single page and is not safe for concurrent use.
type Resolver struct {
	// Dir is the directory of the page; relative file arguments resolve against it.
	Dir string

	// Root is the source tree root. Arguments starting with "/" resolve against
	// it, and no resolved path may leave it. Empty disables both.
	Root string

	deps []string
}

// NewResolver creates a resolver for a page in dir inside root.
func NewResolver(dir, root string) *Resolver {
	return &Resolver{Dir: dir, Root: root}
}

// Resolve returns the diagram text. Inline content and a file argument are
// mutually exclusive.
func (r *Resolver) Resolve(inline, fileArg string) (string, error) {
	if fileArg == "" {
		return inline, nil
	}
	if strings.TrimSpace(inline) != "" {
		return "", pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "diagram cannot have both content and a filename argument")
	}
	if err := pkgerrors.ValidateReference(fileArg); err != nil {
		return "", err
	}

	path, err := r.path(fileArg)
	if err != nil {
		return "", err
	}
	r.deps = append(r.deps, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeFileNotFound, err, "external diagram file %q not found or reading it failed", path)
	}
	return string(data), nil
}

// Dependencies returns the files read so far, in resolution order.
func (r *Resolver) Dependencies() []string {
	return append([]string(nil), r.deps...)
}

func (r *Resolver) path(arg string) (string, error) {
	var p string
	switch {
	case strings.HasPrefix(arg, "/") && r.Root != "":
		p = filepath.Join(r.Root, filepath.FromSlash(arg))
	default:
		p = filepath.Join(r.Dir, filepath.FromSlash(arg))
	}
	if r.Root == "" {
		return p, nil
	}

	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidPath, err, "resolve source root")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidPath, err, "resolve %q", arg)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", pkgerrors.New(pkgerrors.ErrCodeInvalidPath, "file %q is outside the source tree", arg)
	}
	return abs, nil
}
