// Package views holds the server-rendered pages. Components are plain
// templ.Component values so handlers render them the same way whether
// they come from .templ files or are written by hand.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Breadcrumb represents a navigation trail
type Breadcrumb struct {
	Title string
	URL   string
}

// page collects writes and keeps the first error
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) rawf(format string, args ...interface{}) {
	p.raw(fmt.Sprintf(format, args...))
}

func (p *page) render(ctx context.Context, c templ.Component) {
	if p.err != nil || c == nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

// Layout wraps body in the shared document shell
func Layout(title string, crumbs []Breadcrumb, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(` | Service Portal</title><link rel="stylesheet" href="/static/app.css"></head><body>`)
		p.raw(`<header class="topbar"><a href="/" class="brand">Service Portal</a>`)
		p.raw(`<nav><a href="/track">Track a request</a></nav></header><main>`)
		if len(crumbs) > 0 {
			p.raw(`<ol class="breadcrumbs">`)
			for _, b := range crumbs {
				p.raw(`<li>`)
				if b.URL != "" {
					p.rawf(`<a href="%s">`, templ.EscapeString(b.URL))
					p.text(b.Title)
					p.raw(`</a>`)
				} else {
					p.text(b.Title)
				}
				p.raw(`</li>`)
			}
			p.raw(`</ol>`)
		}
		p.render(ctx, body)
		p.raw(`</main></body></html>`)
		return p.err
	})
}
