package services

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

// Template names
const (
	tmplContactAdmin       = "contact_admin"
	tmplContactReply       = "contact_reply"
	tmplQuoteAdmin         = "quote_admin"
	tmplQuoteReply         = "quote_reply"
	tmplNewsletterWelcome  = "newsletter_welcome"
	tmplNewsletterCampaign = "newsletter_campaign"
	tmplPasswordReset      = "password_reset"
)

const htmlLayout = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>{{.Title}}</title></head>
<body style="margin:0;padding:0;background:#F4F6FA;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;color:#1F2937;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" border="0">
    <tr><td style="padding:32px 16px;">
      <table role="presentation" width="600" cellspacing="0" cellpadding="0" border="0" style="margin:0 auto;background:#FFFFFF;border-radius:12px;overflow:hidden;">
        <tr><td style="padding:28px 32px;background:#4338CA;color:#FFFFFF;font-size:20px;font-weight:700;">{{.Site}}</td></tr>
        <tr><td style="padding:32px;line-height:1.6;">{{template "content" .}}</td></tr>
        <tr><td style="padding:20px 32px;background:#F9FAFB;font-size:12px;color:#6B7280;">&copy; {{.Year}} {{.Site}} &middot; <a href="{{.SiteURL}}" style="color:#4338CA;">{{.SiteURL}}</a></td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>{{end}}`

var htmlContent = map[string]string{
	tmplContactAdmin: `{{define "content"}}<h2 style="margin-top:0;">New contact message</h2>
<p><strong>Name:</strong> {{.Data.FromName}}<br><strong>Email:</strong> <a href="mailto:{{.Data.UserEmail}}">{{.Data.UserEmail}}</a><br><strong>Contact:</strong> {{or .Data.FromContact "Not provided"}}<br><strong>Submitted:</strong> {{.Data.Submitted}}</p>
{{if .Data.Subject}}<p><strong>Subject:</strong> {{.Data.Subject}}</p>{{end}}
<div style="border-left:4px solid #4338CA;padding:12px 16px;background:#F9FAFB;white-space:pre-wrap;">{{.Data.Message}}</div>
<p style="color:#6B7280;font-size:13px;">Contact #{{.Data.ID}}</p>{{end}}`,

	tmplContactReply: `{{define "content"}}<h2 style="margin-top:0;">Hi {{.Data.FromName}},</h2>
<p>Thanks for reaching out. Here is our response to your message:</p>
<div style="border-left:4px solid #4338CA;padding:12px 16px;background:#F9FAFB;white-space:pre-wrap;">{{.Data.Response}}</div>
<p style="color:#6B7280;font-size:13px;">Your original message:</p>
<blockquote style="color:#6B7280;white-space:pre-wrap;margin:0 0 0 8px;">{{.Data.Message}}</blockquote>{{end}}`,

	tmplQuoteAdmin: `{{define "content"}}<h2 style="margin-top:0;">New quote request</h2>
<p><strong>Name:</strong> {{.Data.Name}}<br><strong>Email:</strong> <a href="mailto:{{.Data.Email}}">{{.Data.Email}}</a><br><strong>Phone:</strong> {{or .Data.Phone "Not provided"}}<br><strong>Company:</strong> {{or .Data.Company "Not provided"}}</p>
<p><strong>Service:</strong> {{.Data.Service}}<br><strong>Budget:</strong> {{or .Data.Budget "Not specified"}}<br><strong>Timeline:</strong> {{or .Data.Timeline "Not specified"}}</p>
<div style="border-left:4px solid #4338CA;padding:12px 16px;background:#F9FAFB;white-space:pre-wrap;">{{.Data.Details}}</div>
<p style="color:#6B7280;font-size:13px;">Quote #{{.Data.ID}}</p>{{end}}`,

	tmplQuoteReply: `{{define "content"}}<h2 style="margin-top:0;">Hi {{.Data.Name}},</h2>
<p>There is an update on your <strong>{{.Data.Service}}</strong> quote request.</p>
<div style="border-left:4px solid #4338CA;padding:12px 16px;background:#F9FAFB;white-space:pre-wrap;">{{.Data.Message}}</div>
<p>Current status: <strong>{{.Data.Status}}</strong></p>{{end}}`,

	tmplNewsletterWelcome: `{{define "content"}}<h2 style="margin-top:0;">You're subscribed!</h2>
<p>{{.Data.Email}} will now receive our newsletter with project stories, launches and tips.</p>
<p style="color:#6B7280;font-size:13px;">Changed your mind? You can unsubscribe at any time from {{.SiteURL}}.</p>{{end}}`,

	tmplNewsletterCampaign: `{{define "content"}}{{.Data.Body}}
<hr style="border:none;border-top:1px solid #E5E7EB;margin:32px 0 16px;">
<p style="color:#6B7280;font-size:12px;">You are receiving this because {{.Data.Email}} subscribed at {{.SiteURL}}. To stop receiving these emails, unsubscribe from the site.</p>{{end}}`,

	tmplPasswordReset: `{{define "content"}}<h2 style="margin-top:0;">Reset your password</h2>
<p>Hi {{.Data.Name}}, use this code to reset your password:</p>
<p style="font-size:32px;font-weight:700;letter-spacing:8px;color:#4338CA;text-align:center;">{{.Data.Code}}</p>
<p>The code expires in <strong>{{.Data.TTLMinutes}} minutes</strong>. If you did not ask for a reset, ignore this email.</p>{{end}}`,
}

var textContent = map[string]string{
	tmplContactAdmin: `New contact message

Name: {{.Data.FromName}}
Email: {{.Data.UserEmail}}
Contact: {{or .Data.FromContact "Not provided"}}
Submitted: {{.Data.Submitted}}
{{if .Data.Subject}}Subject: {{.Data.Subject}}
{{end}}
{{.Data.Message}}

Contact #{{.Data.ID}}`,

	tmplContactReply: `Hi {{.Data.FromName}},

Thanks for reaching out. Here is our response to your message:

{{.Data.Response}}

-- Your original message --
{{.Data.Message}}

{{.Site}}`,

	tmplQuoteAdmin: `New quote request

Name: {{.Data.Name}}
Email: {{.Data.Email}}
Phone: {{or .Data.Phone "Not provided"}}
Company: {{or .Data.Company "Not provided"}}
Service: {{.Data.Service}}
Budget: {{or .Data.Budget "Not specified"}}
Timeline: {{or .Data.Timeline "Not specified"}}

{{.Data.Details}}

Quote #{{.Data.ID}}`,

	tmplQuoteReply: `Hi {{.Data.Name}},

There is an update on your {{.Data.Service}} quote request:

{{.Data.Message}}

Current status: {{.Data.Status}}

{{.Site}}`,

	tmplNewsletterWelcome: `You're subscribed!

{{.Data.Email}} will now receive the {{.Site}} newsletter.
You can unsubscribe at any time from {{.SiteURL}}.`,

	tmplNewsletterCampaign: `{{.Data.Text}}

--
You are receiving this because {{.Data.Email}} subscribed at {{.SiteURL}}.`,

	tmplPasswordReset: `Hi {{.Data.Name}},

Your password reset code is: {{.Data.Code}}

It expires in {{.Data.TTLMinutes}} minutes. If you did not ask for a reset, ignore this email.

{{.Site}}`,
}

// emailView is the data every template receives.
type emailView struct {
	Title   string
	Site    string
	SiteURL string
	Year    int
	Data    any
}

// Renderer renders the transactional email templates.
type Renderer struct {
	site    string
	siteURL string
	html    map[string]*htmltemplate.Template
	text    map[string]*texttemplate.Template
}

// NewRenderer parses every email template.
func NewRenderer(site, siteURL string) (*Renderer, error) {
	r := &Renderer{
		site:    site,
		siteURL: siteURL,
		html:    make(map[string]*htmltemplate.Template, len(htmlContent)),
		text:    make(map[string]*texttemplate.Template, len(textContent)),
	}
	for name, content := range htmlContent {
		t, err := htmltemplate.New(name).Parse(htmlLayout)
		if err == nil {
			t, err = t.Parse(content)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", name, err)
		}
		r.html[name] = t
	}
	for name, content := range textContent {
		t, err := texttemplate.New(name).Parse(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", name, err)
		}
		r.text[name] = t
	}
	return r, nil
}

// Render returns the HTML and plain text bodies for template name.
func (r *Renderer) Render(name, title string, data any) (string, string, error) {
	ht, ok := r.html[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	view := emailView{Title: title, Site: r.site, SiteURL: r.siteURL, Year: time.Now().Year(), Data: data}

	var html, text bytes.Buffer
	if err := ht.ExecuteTemplate(&html, "layout", view); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text[name].Execute(&text, view); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	return html.String(), text.String(), nil
}
