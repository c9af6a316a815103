package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/mcnijman/go-emailaddress"

	"github.com/housinglord/housing-lord/mailer"
)

const notProvided = "Not provided"

var interestText = texttemplate.Must(texttemplate.New("interest").Parse(`Hello {{.OwnerName}},

{{.UserName}} is interested in your property "{{.PropertyTitle}}".

Contact details:
  Name:  {{.UserName}}
  Email: {{.UserEmail}}
  Phone: {{.UserPhone}}

Reach out to them directly to arrange a visit.

- The Housing Lord Team
`))

var interestHTML = htmltemplate.Must(htmltemplate.New("interest").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #ffc107;">Housing Lord</h1>
  <p>Hello {{.OwnerName}},</p>
  <p><strong>{{.UserName}}</strong> is interested in your property <strong>"{{.PropertyTitle}}"</strong>.</p>
  <table>
    <tr><td>Name</td><td>{{.UserName}}</td></tr>
    <tr><td>Email</td><td>{{.UserEmail}}</td></tr>
    <tr><td>Phone</td><td>{{.UserPhone}}</td></tr>
  </table>
  <p>Reach out to them directly to arrange a visit.</p>
  <p>Best regards,<br>The Housing Lord Team</p>
</div>`))

var approvalText = texttemplate.Must(texttemplate.New("approval").Parse(`Hello {{.OwnerName}},

Great news! Your property "{{.PropertyTitle}}" has been reviewed and approved by our team on {{.ApprovalDate}}.

Your property is now visible to potential tenants and will be included in our search results.
{{if .DashboardURL}}
View it in your dashboard: {{.DashboardURL}}
{{end}}
Thank you for choosing Housing Lord for your property listing needs!

- The Housing Lord Team
`))

var approvalHTML = htmltemplate.Must(htmltemplate.New("approval").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #ffc107;">Housing Lord</h1>
  <p>Hello {{.OwnerName}},</p>
  <p>Great news! Your property <strong>"{{.PropertyTitle}}"</strong> has been reviewed and approved by our team on {{.ApprovalDate}}.</p>
  <p>Your property is now visible to potential tenants and will be included in our search results.</p>
  {{if .DashboardURL}}<p><a href="{{.DashboardURL}}">View in Dashboard</a></p>{{end}}
  <p>Best regards,<br>The Housing Lord Team</p>
</div>`))

// Composer turns notifications into email messages
type Composer struct {
	From         string
	AdminEmail   string
	DashboardURL string
}

// Compose builds the message for n. It returns ErrNoRecipients when neither
// an owner nor an admin address is available.
func (c Composer) Compose(n Notification) (mailer.Message, error) {
	if err := n.Validate(); err != nil {
		return mailer.Message{}, err
	}

	switch n.Type {
	case TypeInterest:
		return c.composeInterest(*n.Interest)
	default:
		return c.composeApproval(*n.Approval)
	}
}

func (c Composer) composeInterest(n InterestNotice) (mailer.Message, error) {
	to := Recipients(n.OwnerEmail, c.AdminEmail)
	if len(to) == 0 {
		return mailer.Message{}, ErrNoRecipients
	}

	data := struct {
		OwnerName     string
		PropertyTitle string
		UserName      string
		UserEmail     string
		UserPhone     string
	}{
		OwnerName:     orDefault(n.OwnerName, "Property Owner"),
		PropertyTitle: orDefault(n.PropertyTitle, "your listing"),
		UserName:      orDefault(n.UserName, "A user"),
		UserEmail:     orDefault(n.UserEmail, notProvided),
		UserPhone:     orDefault(n.UserPhone, notProvided),
	}

	text, html, err := render(interestText, interestHTML, data)
	if err != nil {
		return mailer.Message{}, err
	}

	return mailer.Message{
		From:    c.From,
		To:      to,
		Subject: `New interest in "` + data.PropertyTitle + `"`,
		Text:    text,
		HTML:    html,
	}, nil
}

func (c Composer) composeApproval(n ApprovalNotice) (mailer.Message, error) {
	to := Recipients(n.OwnerEmail, "")
	if len(to) == 0 {
		return mailer.Message{}, ErrNoRecipients
	}

	approvedAt := n.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = time.Now().UTC()
	}

	data := struct {
		OwnerName     string
		PropertyTitle string
		ApprovalDate  string
		DashboardURL  string
	}{
		OwnerName:     orDefault(n.OwnerName, "Property Owner"),
		PropertyTitle: n.PropertyTitle,
		ApprovalDate:  approvedAt.Format("2 Jan 2006 15:04 MST"),
		DashboardURL:  c.DashboardURL,
	}

	text, html, err := render(approvalText, approvalHTML, data)
	if err != nil {
		return mailer.Message{}, err
	}

	return mailer.Message{
		From:    c.From,
		To:      to,
		Subject: `Your Property "` + n.PropertyTitle + `" Has Been Approved!`,
		Text:    text,
		HTML:    html,
	}, nil
}

// Recipients returns the valid, de-duplicated addresses among owner and
// admin, owner first.
func Recipients(ownerEmail, adminEmail string) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)

	for _, raw := range []string{ownerEmail, adminEmail} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		addr, err := emailaddress.Parse(raw)
		if err != nil {
			continue
		}

		key := strings.ToLower(addr.String())
		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, addr.String())
	}

	return out
}

func render(text *texttemplate.Template, html *htmltemplate.Template, data any) (string, string, error) {
	var tb, hb bytes.Buffer

	if err := text.Execute(&tb, data); err != nil {
		return "", "", err
	}

	if err := html.Execute(&hb, data); err != nil {
		return "", "", err
	}

	return tb.String(), hb.String(), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return v
}
