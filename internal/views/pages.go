package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

type ErrorPageProps struct {
	Title        string
	ErrorTitle   string
	ErrorMessage string
	BackLink     string
	BackText     string
}

func ErrorPage(props ErrorPageProps) templ.Component {
	crumbs := []Breadcrumb{{Title: "Home", URL: "/"}, {Title: "Error"}}
	return Layout(props.Title, crumbs, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section class="error-page"><h1>`)
		p.text(props.ErrorTitle)
		p.raw(`</h1><p>`)
		p.text(props.ErrorMessage)
		p.raw(`</p>`)
		back, text := props.BackLink, props.BackText
		if back == "" {
			back, text = "/", "Back to home"
		}
		p.rawf(`<a class="button" href="%s">`, templ.EscapeString(back))
		p.text(text)
		p.raw(`</a></section>`)
		return p.err
	}))
}

type LoginPageProps struct {
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	Error              string
}

// LoginPage signs in with the Firebase web SDK and posts the ID token to /auth/login
func LoginPage(props LoginPageProps) templ.Component {
	return Layout("Sign in", nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section class="login"><h1>Sign in</h1>`)
		if props.Error != "" {
			p.raw(`<p class="alert">`)
			p.text(props.Error)
			p.raw(`</p>`)
		}
		p.raw(`<button id="google-login" type="button">Continue with Google</button></section>`)
		p.raw(`<div id="firebase-config" hidden`)
		p.rawf(` data-api-key="%s"`, templ.EscapeString(props.FirebaseAPIKey))
		p.rawf(` data-auth-domain="%s"`, templ.EscapeString(props.FirebaseAuthDomain))
		p.rawf(` data-project-id="%s"`, templ.EscapeString(props.FirebaseProjectID))
		p.raw(`></div><script type="module" src="/static/login.js"></script>`)
		return p.err
	}))
}
