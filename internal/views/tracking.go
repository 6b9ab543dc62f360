package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"serviceportal/internal/services"
)

type TrackingPageProps struct {
	Number   string
	Progress *services.Progress // nil renders the search form only
	Currency string
}

const dateLayout = "02 Jan 2006 15:04"

// TrackingPage is the public progress page of one request
func TrackingPage(props TrackingPageProps) templ.Component {
	title := "Track your request"
	if props.Progress != nil {
		title = props.Progress.Request.RequestNumber
	}
	crumbs := []Breadcrumb{{Title: "Home", URL: "/"}, {Title: "Track", URL: "/track"}}
	if props.Progress != nil {
		crumbs = append(crumbs, Breadcrumb{Title: title})
	}
	return Layout(title, crumbs, trackingBody(props))
}

func trackingBody(props TrackingPageProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<form class="track-search" method="get" action="/track">`)
		p.raw(`<label for="number">Request number</label>`)
		p.raw(`<input id="number" name="number" placeholder="TRV-20260118-0001" value="`)
		p.text(props.Number)
		p.raw(`"><button type="submit">Track</button></form>`)

		pr := props.Progress
		if pr == nil {
			return p.err
		}
		req := pr.Request

		p.raw(`<section class="request-summary"><h1>`)
		p.text(req.RequestNumber)
		p.raw(`</h1>`)
		p.rawf(`<span class="badge badge-%s">`, templ.EscapeString(pr.Status.Color))
		p.text(pr.Status.Label)
		p.raw(`</span>`)
		if pr.Status.Description != "" {
			p.raw(`<p class="status-description">`)
			p.text(pr.Status.Description)
			p.raw(`</p>`)
		}
		p.raw(`<dl><dt>Applicant</dt><dd>`)
		p.text(req.FullName)
		p.raw(`</dd><dt>Program</dt><dd>`)
		p.text(req.ProgramType)
		p.raw(`</dd><dt>Total</dt><dd>`)
		p.text(props.Currency + " " + req.TotalAmount.StringFixed(2))
		p.raw(`</dd><dt>Paid</dt><dd>`)
		p.text(props.Currency + " " + req.AmountPaid.StringFixed(2))
		p.raw(`</dd><dt>Balance due</dt><dd>`)
		p.text(props.Currency + " " + req.BalanceDue.StringFixed(2))
		p.raw(`</dd></dl></section>`)

		p.rawf(`<div class="progress" role="progressbar" aria-valuenow="%d" aria-valuemin="0" aria-valuemax="100">`, pr.Percent)
		p.rawf(`<div class="progress-bar" style="width: %d%%"></div></div>`, pr.Percent)

		p.raw(`<ol class="steps">`)
		for _, step := range pr.Steps {
			p.rawf(`<li class="step step-%s">`, templ.EscapeString(string(step.State)))
			p.text(step.Stage.Label)
			p.raw(`</li>`)
		}
		p.raw(`</ol>`)

		if len(pr.MissingDocuments) > 0 {
			p.raw(`<section class="missing-documents"><h2>Documents still needed</h2><ul>`)
			for _, d := range pr.MissingDocuments {
				p.raw(`<li>`)
				p.text(d)
				p.raw(`</li>`)
			}
			p.raw(`</ul></section>`)
		}

		p.raw(`<section class="timeline"><h2>History</h2>`)
		if len(pr.Timeline) == 0 {
			p.raw(`<p class="empty">No changes recorded yet.</p>`)
		} else {
			p.raw(`<ul>`)
			for _, e := range pr.Timeline {
				p.raw(`<li><time>`)
				p.text(e.At.Format(dateLayout))
				p.raw(`</time> `)
				p.rawf(`<span class="badge badge-%s">`, templ.EscapeString(e.Status.Color))
				p.text(e.Status.Label)
				p.raw(`</span>`)
				if e.Notes != "" {
					p.raw(` <span class="notes">`)
					p.text(e.Notes)
					p.raw(`</span>`)
				}
				p.raw(`</li>`)
			}
			p.raw(`</ul>`)
		}
		p.raw(`</section>`)

		if len(pr.Payments) > 0 {
			p.raw(`<section class="payments"><h2>Payments</h2><table><thead><tr>`)
			p.raw(`<th>Stage</th><th>Amount</th><th>Date</th><th>Method</th></tr></thead><tbody>`)
			for _, pay := range pr.Payments {
				p.raw(`<tr><td>`)
				p.text(pay.Stage.Label)
				p.raw(`</td><td>`)
				p.text(props.Currency + " " + pay.Amount.StringFixed(2))
				p.raw(`</td><td>`)
				p.text(pay.Date.Format(dateLayout))
				p.raw(`</td><td>`)
				p.text(pay.Method)
				p.raw(`</td></tr>`)
			}
			p.raw(`</tbody></table></section>`)
		}
		return p.err
	})
}
