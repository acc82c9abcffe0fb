// Package web embeds the review UI: HTML templates and the static script
// and stylesheet they load.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates parses every page template. funcs must provide the helpers the
// templates call (categoryColor).
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
}

// Static serves the files under static/.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static is a compile-time embed, Sub cannot fail for it.
		panic(err)
	}
	return http.FS(sub)
}
