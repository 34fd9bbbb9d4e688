package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// Audience selects which side of a notification a template is for.
type Audience string

const (
	Customer Audience = "customer"
	Admin    Audience = "admin"
)

type templateSet struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

type templateData struct {
	model.Notification
	Amount string
}

var templates = map[model.NotificationKind]map[Audience]templateSet{
	model.NotifyBookingConfirmation: {
		Customer: mustTemplates("booking-customer",
			`Booking Confirmation - {{.ServiceName}}`,
			`Hi {{.FirstName}},

Thank you for booking {{.ServiceName}}.

Booking ID: {{.BookingID}}
Preferred date: {{.PreferredDate}}{{if .PreferredTime}} at {{.PreferredTime}}{{end}}
{{if .ServicePrice}}Price: ${{.ServicePrice}}
{{end}}
We will contact you within 24 hours to confirm the details.
`,
			`<h1>Booking Confirmed!</h1>
<p>Hi {{.FirstName}},</p>
<p>Thank you for booking <strong>{{.ServiceName}}</strong>.</p>
<h3>Booking Details</h3>
<ul>
<li>Booking ID: {{.BookingID}}</li>
<li>Preferred date: {{.PreferredDate}}{{if .PreferredTime}} at {{.PreferredTime}}{{end}}</li>
{{if .ServicePrice}}<li>Price: ${{.ServicePrice}}</li>{{end}}
</ul>
<h3>What's Next?</h3>
<p>We will contact you within 24 hours to confirm the details.</p>`),
		Admin: mustTemplates("booking-admin",
			`New Booking: {{.ServiceName}}`,
			`New booking received.

Booking ID: {{.BookingID}}
Service: {{.ServiceName}} ({{.ServiceID}})
Preferred date: {{.PreferredDate}} {{.PreferredTime}}

Customer: {{.FirstName}} {{.LastName}}
Email: {{.Email}}
Phone: {{.Phone}}
{{if .BusinessName}}Business: {{.BusinessName}}
{{end}}{{if .Message}}
Message:
{{.Message}}
{{end}}`,
			`<h2>New Booking Received</h2>
<h3>Booking Information</h3>
<p>Booking ID: {{.BookingID}}<br>Service: {{.ServiceName}} ({{.ServiceID}})<br>Preferred date: {{.PreferredDate}} {{.PreferredTime}}</p>
<h3>Customer Information</h3>
<p>{{.FirstName}} {{.LastName}}<br>{{.Email}}<br>{{.Phone}}{{if .BusinessName}}<br>{{.BusinessName}}{{end}}</p>
{{if .Message}}<h3>Customer Message</h3>
<p>{{.Message}}</p>{{end}}`),
	},
	model.NotifyPaymentConfirmation: {
		Customer: mustTemplates("payment-customer",
			`Payment Received - {{.ServiceName}}`,
			`Your payment of {{.Amount}} for {{.ServiceName}} was received.
{{if .BookingID}}
Booking ID: {{.BookingID}}
{{end}}`,
			`<h1>Payment Received</h1>
<p>Your payment of <strong>{{.Amount}}</strong> for {{.ServiceName}} was received.</p>
{{if .BookingID}}<p>Booking ID: {{.BookingID}}</p>{{end}}`),
		Admin: mustTemplates("payment-admin",
			`Payment Received: {{.BookingID}}`,
			`Payment {{.PaymentIntentID}} of {{.Amount}} succeeded.
Booking ID: {{.BookingID}}
Service: {{.ServiceName}}
Customer: {{.Email}}
`,
			`<h2>Payment Received</h2>
<p>Payment {{.PaymentIntentID}} of {{.Amount}} succeeded.<br>Booking ID: {{.BookingID}}<br>Service: {{.ServiceName}}<br>Customer: {{.Email}}</p>`),
	},
	model.NotifyPaymentFailed: {
		Customer: mustTemplates("failed-customer",
			`Payment Failed - {{.ServiceName}}`,
			`Your payment for {{.ServiceName}} could not be completed.
{{if .Reason}}Reason: {{.Reason}}
{{end}}
Please try again or contact us for help.
`,
			`<h1>Payment Failed</h1>
<p>Your payment for {{.ServiceName}} could not be completed.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>Please try again or contact us for help.</p>`),
		Admin: mustTemplates("failed-admin",
			`Payment Failed: {{.BookingID}}`,
			`Payment {{.PaymentIntentID}} failed.
Booking ID: {{.BookingID}}
Customer: {{.Email}}
Reason: {{.Reason}}
`,
			`<h2>Payment Failed</h2>
<p>Payment {{.PaymentIntentID}} failed.<br>Booking ID: {{.BookingID}}<br>Customer: {{.Email}}<br>Reason: {{.Reason}}</p>`),
	},
}

func mustTemplates(name, subject, text, html string) templateSet {
	return templateSet{
		subject: texttemplate.Must(texttemplate.New(name + "-subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + "-text").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + "-html").Parse(html)),
	}
}

// Render builds the email for one audience. An empty kind renders as a
// booking confirmation.
func Render(n model.Notification, audience Audience, to string) (EmailMessage, error) {
	kind := n.Kind
	if kind == "" {
		kind = model.NotifyBookingConfirmation
	}
	set, ok := templates[kind][audience]
	if !ok {
		return EmailMessage{}, fmt.Errorf("no %s template for %q", audience, kind)
	}

	data := templateData{Notification: n, Amount: formatAmount(n.AmountMinor, n.Currency)}
	msg := EmailMessage{To: to}

	var buf bytes.Buffer
	if err := set.subject.Execute(&buf, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render subject: %w", err)
	}
	msg.Subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := set.text.Execute(&buf, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render text: %w", err)
	}
	msg.Text = buf.String()

	buf.Reset()
	if err := set.html.Execute(&buf, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render html: %w", err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}
