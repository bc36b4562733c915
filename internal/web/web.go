// Package web embeds the portal's templates and static assets
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

//go:embed static
var static embed.FS

// Templates is rooted at the templates directory (layouts, pages, partials)
var Templates = mustSub(templates, "templates")

// Static is rooted at the static directory served under /static/
var Static = mustSub(static, "static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
