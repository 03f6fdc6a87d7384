package classdiag

import (
	"slices"
	"strings"

	"github.com/matzehuels/mmdoc/pkg/errors"
)

// Kind tells classes and namespaces apart.
type Kind int

const (
	KindClass Kind = iota
	KindNamespace
)

// Descriptor describes one class.
type Descriptor struct {
	Name      string   // short name, used as the diagram node
	Namespace string   // defining namespace, "" for builtins
	Bases     []string // qualified names of the direct bases, in declaration order
}

// QualifiedName returns "namespace.Name", or Name when the class has no namespace.
func (d Descriptor) QualifiedName() string {
	return qualify(d.Namespace, d.Name)
}

// Entity is the result of resolving a name.
type Entity struct {
	Kind Kind

	// Class is set for KindClass.
	Class Descriptor

	// Namespace and Members are set for KindNamespace. Members are the
	// qualified names reachable from the namespace, including aliases of
	// classes defined elsewhere.
	Namespace string
	Members   []string
}

// Registry resolves class and namespace names.
type Registry interface {
	// Resolve returns the entity for name. Unknown names yield an error
	// with code NAMING.
	Resolve(name string) (Entity, error)
}

// StaticRegistry is an in-memory Registry.
type StaticRegistry struct {
	classes    map[string]Descriptor
	namespaces map[string][]string
}

// NewStaticRegistry returns an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		classes:    make(map[string]Descriptor),
		namespaces: make(map[string][]string),
	}
}

// Add registers d and lists it as a member of its namespace.
func (r *StaticRegistry) Add(d Descriptor) {
	qn := d.QualifiedName()
	if _, ok := r.classes[qn]; !ok && d.Namespace != "" {
		r.namespaces[d.Namespace] = append(r.namespaces[d.Namespace], qn)
	}
	r.classes[qn] = d
}

// Alias lists target as a member of namespace without changing where it is
// defined. It models re-exports such as Go type aliases.
func (r *StaticRegistry) Alias(namespace, target string) {
	if slices.Contains(r.namespaces[namespace], target) {
		return
	}
	r.namespaces[namespace] = append(r.namespaces[namespace], target)
}

// Namespace registers an empty namespace so it resolves even without members.
func (r *StaticRegistry) Namespace(name string) {
	if _, ok := r.namespaces[name]; !ok {
		r.namespaces[name] = nil
	}
}

// Len returns the number of registered classes.
func (r *StaticRegistry) Len() int {
	return len(r.classes)
}

// Resolve implements Registry. Class names take precedence over namespaces.
func (r *StaticRegistry) Resolve(name string) (Entity, error) {
	if d, ok := r.classes[name]; ok {
		return Entity{Kind: KindClass, Class: d}, nil
	}
	if members, ok := r.namespaces[name]; ok {
		return Entity{Kind: KindNamespace, Namespace: name, Members: slices.Clone(members)}, nil
	}
	return Entity{}, errors.New(errors.ErrCodeNaming, "%q is neither a class nor a namespace", name)
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// shortName returns the last dotted segment of a qualified name.
func shortName(qn string) string {
	if i := strings.LastIndexByte(qn, '.'); i >= 0 {
		return qn[i+1:]
	}
	return qn
}
