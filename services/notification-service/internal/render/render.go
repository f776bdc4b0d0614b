// Package render turns appointment events into plain-text emails.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/event"
)

type Audience string

const (
	AudiencePatient Audience = "patient"
	AudienceAdmin   Audience = "admin"
)

type Email struct {
	Subject string
	Body    string
}

type tmpl struct {
	subject *template.Template
	body    *template.Template
}

type key struct {
	kind     event.Kind
	audience Audience
}

// Renderer holds the parsed templates. ClinicName is available to every template.
type Renderer struct {
	clinic    string
	templates map[key]tmpl
}

var sources = map[key][2]string{
	{event.KindRequest, AudiencePatient}: {
		`{{.Clinic}}: we received your appointment request`,
		`Hello {{name .PatientName}},

We received your request for {{service .ServiceName}} on {{.Date}} at {{.Time}} ({{.Shift}} shift).
Your token number is {{.TokenNumber}}. We will email you once the clinic confirms it.
{{if .ConfirmURL}}
Confirm your visit: {{.ConfirmURL}}{{end}}{{if .CancelURL}}
Need to cancel? {{.CancelURL}}{{end}}
`,
	},
	{event.KindRequest, AudienceAdmin}: {
		`New appointment request: {{.Date}} {{.Time}} (token {{.TokenNumber}})`,
		`{{name .PatientName}} requested {{service .ServiceName}} on {{.Date}} at {{.Time}}, {{.Shift}} shift, token {{.TokenNumber}}.
Appointment id: {{.AppointmentID}}
`,
	},
	{event.KindConfirmation, AudiencePatient}: {
		`{{.Clinic}}: your appointment is confirmed`,
		`Hello {{name .PatientName}},

Your appointment for {{service .ServiceName}} on {{.Date}} at {{.Time}} is confirmed.
Token number: {{.TokenNumber}}.
{{if .CancelURL}}
If you can no longer make it, cancel here: {{.CancelURL}}{{end}}
`,
	},
	{event.KindConfirmation, AudienceAdmin}: {
		`Appointment confirmed: {{.Date}} {{.Time}} (token {{.TokenNumber}})`,
		`{{name .PatientName}} is confirmed for {{service .ServiceName}} on {{.Date}} at {{.Time}}.
Appointment id: {{.AppointmentID}}
`,
	},
	{event.KindCancellation, AudiencePatient}: {
		`{{.Clinic}}: your appointment was cancelled`,
		`Hello {{name .PatientName}},

Your appointment for {{service .ServiceName}} on {{.Date}} at {{.Time}} has been cancelled.
You are welcome to book a new time on our website.
`,
	},
	{event.KindCancellation, AudienceAdmin}: {
		`Appointment cancelled: {{.Date}} {{.Time}} (token {{.TokenNumber}})`,
		`The {{.Date}} {{.Time}} appointment of {{name .PatientName}} was cancelled. The slot is free again.
Appointment id: {{.AppointmentID}}
`,
	},
	{event.KindCompletion, AudiencePatient}: {
		`{{.Clinic}}: thank you for your visit`,
		`Hello {{name .PatientName}},

Thank you for visiting us on {{.Date}}. We hope to see you again.
`,
	},
	{event.KindCompletion, AudienceAdmin}: {
		`Appointment completed: {{.Date}} {{.Time}} (token {{.TokenNumber}})`,
		`{{name .PatientName}} completed {{service .ServiceName}} on {{.Date}}.
Appointment id: {{.AppointmentID}}
`,
	},
}

var funcs = template.FuncMap{
	"name": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "there"
		}
		return s
	},
	"service": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "your visit"
		}
		return s
	},
}

func New(clinicName string) (*Renderer, error) {
	if strings.TrimSpace(clinicName) == "" {
		clinicName = "The clinic"
	}
	r := &Renderer{clinic: clinicName, templates: make(map[key]tmpl, len(sources))}
	for k, src := range sources {
		name := fmt.Sprintf("%s.%s", k.kind, k.audience)
		subj, err := template.New(name + ".subject").Funcs(funcs).Parse(src[0])
		if err != nil {
			return nil, err
		}
		body, err := template.New(name + ".body").Funcs(funcs).Parse(src[1])
		if err != nil {
			return nil, err
		}
		r.templates[k] = tmpl{subject: subj, body: body}
	}
	return r, nil
}

type data struct {
	event.Appointment
	Clinic string
}

func (r *Renderer) Render(evt event.Appointment, audience Audience) (Email, error) {
	t, ok := r.templates[key{evt.Kind, audience}]
	if !ok {
		return Email{}, fmt.Errorf("no template for %s/%s", evt.Kind, audience)
	}
	d := data{Appointment: evt, Clinic: r.clinic}
	var subj, body bytes.Buffer
	if err := t.subject.Execute(&subj, d); err != nil {
		return Email{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&body, d); err != nil {
		return Email{}, fmt.Errorf("render body: %w", err)
	}
	return Email{Subject: strings.TrimSpace(subj.String()), Body: body.String()}, nil
}
