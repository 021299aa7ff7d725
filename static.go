package main

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed web
var webFiles embed.FS

// webAsset returns an embedded file from web/. A missing file is a build
// mistake, so it panics at init.
func webAsset(name string) string {
	b, err := webFiles.ReadFile("web/" + name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var (
	loginTmpl   = template.Must(template.New("login").Parse(webAsset("login.html")))
	indexTmpl   = template.Must(template.New("index").Parse(webAsset("index.html")))
	faviconTmpl = template.Must(template.New("favicon").Parse(webAsset("favicon.svg")))
)

// staticAssets serves the files under web/ that need no rendering.
var staticAssets = func() http.Handler {
	sub, err := fs.Sub(webFiles, "web")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}()
