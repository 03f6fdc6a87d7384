package pipeline

import (
	"cmp"
	"fmt"
	"html/template"
	"io"
	"slices"

	"github.com/matzehuels/mmdoc/pkg/bundle"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{.Head}}</head>
<body>
<main>
{{.Body}}</main>
</body>
</html>
`))

type pageData struct {
	Title string
	Head  template.HTML
	Body  template.HTML
}

// writeHTMLPage wraps a rendered body in the page shell, placing the bundle's
// injections in the head ordered by priority.
func writeHTMLPage(w io.Writer, title string, b bundle.Bundle, body []byte) error {
	injections := slices.Clone(b.Injections)
	slices.SortStableFunc(injections, func(x, y bundle.Injection) int {
		return cmp.Compare(x.Priority, y.Priority)
	})
	head := bundle.Bundle{Injections: injections}.HTML()

	if title == "" {
		title = "Untitled"
	}
	data := pageData{
		Title: title,
		// Bundle text comes from escaped templates and the body from the
		// Markdown renderer.
		Head: template.HTML(head),
		Body: template.HTML(body),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render page shell: %w", err)
	}
	return nil
}
