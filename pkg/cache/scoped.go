package cache

// ScopedKeyer wraps a Keyer with a prefix so several projects can share one
// mirror without seeing each other's artifacts.
//
// Example usage:
//
//	// Per-project keys in a shared redis mirror
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "docs-site:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(source string, options map[string]string, globals ArtifactGlobals) string {
	return k.prefix + k.inner.ArtifactKey(source, options, globals)
}
