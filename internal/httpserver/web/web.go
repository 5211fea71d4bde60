// Package web holds the embedded single-page UI. The page is rendered
// server-side with the current board state so the first paint carries
// real data; its script then keeps itself current over the stream.
package web

import (
	"embed"
	"html/template"
	"io"
)

//go:embed index.html.tmpl
var assets embed.FS

var page = template.Must(template.ParseFS(assets, "index.html.tmpl"))

// PageIdentity is the session principal as the page shows it.
type PageIdentity struct {
	UID         string
	Provider    string
	DisplayName string
}

// PageListing is one rendered board row. CreatedAt is pre-formatted and
// empty while the server timestamp has not resolved.
type PageListing struct {
	ID          string
	Name        string
	Description string
	AuthorID    string
	CreatedAt   string
}

// PageData is everything the template needs. A non-empty SetupError
// replaces the entire app body with a blocking notice.
type PageData struct {
	Tenant     string
	Version    string
	Loading    bool
	SetupError string
	AuthError  string
	Identity   *PageIdentity
	Listings   []PageListing
	Stale      bool
}

// Render writes the page for the given state.
func Render(w io.Writer, data PageData) error {
	return page.Execute(w, data)
}
