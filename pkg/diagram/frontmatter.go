package diagram

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

type frontMatter struct {
	Config map[string]any `yaml:"config,omitempty"`
	Title  string         `yaml:"title,omitempty"`
}

// FrontMatter builds the YAML block prepended to diagram text.
// config must be a JSON object or empty. It returns "" when both arguments
// are empty.
func FrontMatter(config, title string) (string, error) {
	if config == "" && title == "" {
		return "", nil
	}

	var fm frontMatter
	if config != "" {
		if err := json.Unmarshal([]byte(config), &fm.Config); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "config must be a JSON object")
		}
	}
	fm.Title = title
	if len(fm.Config) == 0 && fm.Title == "" {
		return "", nil
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInternal, err, "encode front-matter")
	}
	if err := enc.Close(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInternal, err, "encode front-matter")
	}
	buf.WriteString("---\n")
	return buf.String(), nil
}
