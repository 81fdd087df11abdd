// Package web embeds the page templates and the translation dictionaries.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed locales/*.json
var localeFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// Locales returns the dictionaries as <lang>.json at the root of the FS.
func Locales() fs.FS {
	sub, err := fs.Sub(localeFS, "locales")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates parses every page template.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
