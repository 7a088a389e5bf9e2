// Package web embeds the static HTML pages served next to the API.
package web

import "embed"

// FS holds home.html and link.html.
//
//go:embed home.html link.html
var FS embed.FS
