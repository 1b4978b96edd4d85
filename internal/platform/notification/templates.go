package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template is a reusable message skeleton with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates an engine with the built-in CareLink templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "verification-code",
			Name:    "Account Verification Code",
			Subject: "Your CareLink verification code",
			Body:    "Hello {{name}}, your CareLink verification code is {{code}}. It expires in {{ttl_minutes}} minutes. If you did not request this, ignore this message.",
			Channel: ChannelEmail,
		},
		{
			ID:      "welcome",
			Name:    "Account Activated",
			Subject: "Welcome to CareLink",
			Body:    "Hello {{name}}, your CareLink account is now active. You can sign in and manage your care from your dashboard.",
			Channel: ChannelEmail,
		},
		{
			ID:      "two-factor-enabled",
			Name:    "Two-Factor Enabled",
			Subject: "Two-factor authentication enabled",
			Body:    "Hello {{name}}, two-factor authentication is now enabled on your CareLink account. If this was not you, contact support immediately.",
			Channel: ChannelEmail,
		},
		{
			ID:      "appointment-booked",
			Name:    "Appointment Booked",
			Subject: "Appointment confirmed for {{date}}",
			Body:    "Hello {{name}}, your appointment with {{doctor}} on {{date}} at {{time}} is confirmed.",
			Channel: ChannelEmail,
		},
		{
			ID:      "appointment-cancelled",
			Name:    "Appointment Cancelled",
			Subject: "Appointment on {{date}} cancelled",
			Body:    "Hello {{name}}, your appointment with {{doctor}} on {{date}} has been cancelled.",
			Channel: ChannelEmail,
		},
		{
			ID:      "prescription-issued",
			Name:    "Prescription Issued",
			Subject: "New prescription from {{doctor}}",
			Body:    "Hello {{name}}, {{doctor}} has issued you a prescription for {{medication}}. View the details in your CareLink account.",
			Channel: ChannelEmail,
		},
		{
			ID:      "payment-receipt",
			Name:    "Payment Receipt",
			Subject: "Payment received: {{amount}}",
			Body:    "Hello {{name}}, we received your payment of {{amount}} for {{description}}. Reference: {{reference}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      "subscription-started",
			Name:    "Subscription Started",
			Subject: "Your {{plan}} plan is active",
			Body:    "Hello {{name}}, your CareLink {{plan}} subscription is active until {{expires}}.",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Lookup returns the template with the given ID.
func (e *TemplateEngine) Lookup(id string) (*Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[id]
	return t, ok
}

// Render substitutes {{key}} placeholders in the template with values from
// data. Placeholders without a matching key are left untouched.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	t, ok := e.Lookup(templateID)
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
