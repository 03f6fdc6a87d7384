package bundle

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/matzehuels/mmdoc/pkg/errors"
)

// Latest selects the unpinned build of a script.
const Latest = "latest"

// minMermaid is the first mermaid release shipping the ESM loader.
const minMermaid = "v10.3.0"

const cdn = "https://cdn.jsdelivr.net/npm/"

// script describes how to locate one client-side script on the CDN.
type script struct {
	name    string // configuration name, used in errors
	pkg     string // npm package
	dist    string // path inside the package
	minimum string // lowest accepted pinned version, semver with "v"
}

var (
	mermaidScript = script{name: "mermaid", pkg: "mermaid", dist: "dist/mermaid.esm.min.mjs", minimum: minMermaid}
	elkScript     = script{name: "elk", pkg: "@mermaid-js/layout-elk", dist: "dist/mermaid-layout-elk.esm.min.mjs"}
	zenumlScript  = script{name: "zenuml", pkg: "@mermaid-js/mermaid-zenuml", dist: "dist/mermaid-zenuml.esm.min.mjs"}
	d3Script      = script{name: "d3", pkg: "d3", dist: "dist/d3.min.js"}
)

// resolve picks the script location. A local override wins, then a pinned
// version, then "latest". An empty version with no override yields "", meaning
// the page provides the script itself.
func (s script) resolve(local, version string) (string, error) {
	if local != "" {
		if err := errors.ValidateScriptURL(local); err != nil {
			return "", err
		}
		return local, nil
	}

	version = strings.TrimSpace(version)
	switch version {
	case "":
		return "", nil
	case Latest:
		return cdn + s.pkg + "/" + s.dist, nil
	}

	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", errors.New(errors.ErrCodeInvalidConfig, "invalid %s version: %q", s.name, version)
	}
	if s.minimum != "" && semver.Compare(v, s.minimum) < 0 {
		return "", errors.New(errors.ErrCodeUnsupported,
			"Requires %s js version %s or later, got %s", s.name, strings.TrimPrefix(s.minimum, "v"), version)
	}
	return cdn + s.pkg + "@" + strings.TrimPrefix(v, "v") + "/" + s.dist, nil
}
