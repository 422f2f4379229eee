package email

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

type templateSpec struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiledTemplate struct {
	subject string
	body    *template.Template
}

// Templates renderiza los mensajes de OTP por propósito.
type Templates struct {
	byPurpose map[string]compiledTemplate
}

// OTPData son los campos disponibles dentro de las plantillas.
type OTPData struct {
	Code      string
	ExpiresAt string
}

func LoadTemplates() (*Templates, error) {
	return ParseTemplates(defaultTemplates)
}

func ParseTemplates(raw []byte) (*Templates, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("parse templates: no templates defined")
	}
	out := &Templates{byPurpose: make(map[string]compiledTemplate, len(specs))}
	for purpose, spec := range specs {
		if strings.TrimSpace(spec.Subject) == "" {
			return nil, fmt.Errorf("template %q: subject is required", purpose)
		}
		body, err := template.New(purpose).Option("missingkey=error").Parse(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", purpose, err)
		}
		out.byPurpose[purpose] = compiledTemplate{subject: spec.Subject, body: body}
	}
	return out, nil
}

func (t *Templates) RenderOTP(purpose, to, code string, expiresAt time.Time) (Message, error) {
	tpl, ok := t.byPurpose[purpose]
	if !ok {
		return Message{}, fmt.Errorf("no template for purpose %q", purpose)
	}
	var body strings.Builder
	data := OTPData{Code: code, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)}
	if err := tpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %q: %w", purpose, err)
	}
	return Message{To: to, Subject: tpl.subject, Body: body.String()}, nil
}
