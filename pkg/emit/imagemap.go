package emit

import (
	"os"
	"strings"

	"github.com/antchfx/xmlquery"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// imageMap is a client-side image map stitched next to a raster image.
type imageMap struct {
	Name    string
	Content string
}

// readImageMap loads the companion map at path. It returns nil when the file
// is absent or trivial, i.e. holds nothing between <map> and </map>.
func readImageMap(path string) (*imageMap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "read image map")
	}
	return parseImageMap(string(data))
}

func parseImageMap(content string) (*imageMap, error) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) <= 2 {
		return nil, nil
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeRenderFailed, err, "parse image map")
	}
	node := xmlquery.FindOne(doc, "//map")
	if node == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeRenderFailed, "image map has no <map> element")
	}
	name := node.SelectAttr("id")
	if name == "" {
		name = node.SelectAttr("name")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.ErrCodeRenderFailed, "image map has no name")
	}

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return &imageMap{Name: name, Content: content}, nil
}
