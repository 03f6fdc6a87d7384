package cache

// Keyer derives cache keys for rendered artifacts.
type Keyer interface {
	// ArtifactKey returns the digest identifying a render request.
	ArtifactKey(source string, options map[string]string, globals ArtifactGlobals) string
}

// ArtifactGlobals is the slice of build-wide configuration that changes
// rendered output and therefore participates in the key.
type ArtifactGlobals struct {
	// SequenceConfig is the content of the renderer configuration file, if any.
	SequenceConfig string `json:"sequence_config,omitempty"`

	// Params are the extra renderer arguments from configuration.
	Params []string `json:"params,omitempty"`
}

// DefaultKeyer hashes the diagram text, the options and the globals.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey returns a 64-character hex digest.
// A nil and an empty options map produce the same key.
func (DefaultKeyer) ArtifactKey(source string, options map[string]string, globals ArtifactGlobals) string {
	if options == nil {
		options = map[string]string{}
	}
	return hashParts(source, options, globals)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}
