package classdiag

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/matzehuels/mmdoc/pkg/errors"
)

// predeclared types have no namespace.
var predeclared = map[string]bool{
	"any": true, "error": true, "comparable": true,
}

// LoadGoPackages parses the Go packages under dir into a registry.
//
// Each directory is a namespace named after its path relative to dir with
// slashes replaced by dots; dir itself uses its package name. Named types are
// classes and embedded fields, of structs and interfaces alike, are their
// bases. Imports of packages inside the module rooted at dir (per its go.mod)
// resolve to the matching namespace. Type aliases are listed in their
// namespace as re-exports. Test files and testdata are skipped.
func LoadGoPackages(dir string) (*StaticRegistry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "source directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", dir)
	}

	l := &goLoader{root: dir, fset: token.NewFileSet(), reg: NewStaticRegistry()}
	if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
		l.module = modfile.ModulePath(data)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.parseFile(path)
	})
	if err != nil {
		return nil, err
	}
	return l.reg, nil
}

type goLoader struct {
	root   string
	module string
	fset   *token.FileSet
	reg    *StaticRegistry
}

func (l *goLoader) parseFile(path string) error {
	f, err := parser.ParseFile(l.fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	ns := l.namespace(filepath.Dir(path), f.Name.Name)
	l.reg.Namespace(ns)
	imports := l.imports(f)

	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if ts.Assign.IsValid() {
				if target := l.typeName(ts.Type, ns, imports); target != "" {
					l.reg.Alias(ns, target)
				}
				continue
			}
			l.reg.Add(Descriptor{
				Name:      ts.Name.Name,
				Namespace: ns,
				Bases:     l.bases(ts.Type, ns, imports),
			})
		}
	}
	return nil
}

// namespace derives the dotted namespace of a package directory.
func (l *goLoader) namespace(dir, pkgName string) string {
	rel, err := filepath.Rel(l.root, dir)
	if err != nil || rel == "." {
		return pkgName
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

// imports maps the local names of a file's imports to namespaces.
func (l *goLoader) imports(f *ast.File) map[string]string {
	out := make(map[string]string, len(f.Imports))
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		local := path[strings.LastIndexByte(path, '/')+1:]
		if imp.Name != nil {
			local = imp.Name.Name
		}
		if local == "_" || local == "." {
			continue
		}
		out[local] = l.importNamespace(path)
	}
	return out
}

func (l *goLoader) importNamespace(path string) string {
	if l.module != "" {
		if path == l.module {
			return l.namespace(l.root, path[strings.LastIndexByte(path, '/')+1:])
		}
		if rel, ok := strings.CutPrefix(path, l.module+"/"); ok {
			return strings.ReplaceAll(rel, "/", ".")
		}
	}
	return strings.ReplaceAll(path, "/", ".")
}

// bases lists the embedded types of a struct or interface.
func (l *goLoader) bases(expr ast.Expr, ns string, imports map[string]string) []string {
	var fields *ast.FieldList
	switch t := expr.(type) {
	case *ast.StructType:
		fields = t.Fields
	case *ast.InterfaceType:
		fields = t.Methods
	default:
		return nil
	}
	if fields == nil {
		return nil
	}

	var out []string
	for _, field := range fields.List {
		if len(field.Names) > 0 {
			continue
		}
		if name := l.typeName(field.Type, ns, imports); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// typeName returns the qualified name of a type expression, or "" for
// expressions that do not name a type (unions, literals).
func (l *goLoader) typeName(expr ast.Expr, ns string, imports map[string]string) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if predeclared[t.Name] {
			return t.Name
		}
		return qualify(ns, t.Name)
	case *ast.StarExpr:
		return l.typeName(t.X, ns, imports)
	case *ast.IndexExpr:
		return l.typeName(t.X, ns, imports)
	case *ast.IndexListExpr:
		return l.typeName(t.X, ns, imports)
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return ""
		}
		target, ok := imports[pkg.Name]
		if !ok {
			target = pkg.Name
		}
		return qualify(target, t.Sel.Name)
	}
	return ""
}
