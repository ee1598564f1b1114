// Package notification renders and delivers client messages over email and SMS.
package notification

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/shared/logger"
)

// Rendered is a message ready for a channel.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type messageTemplate struct {
	subject string
	body    string
}

var defaultTemplates = map[string]messageTemplate{
	outbox.TemplateRetryNotice: {
		subject: "Your payment could not be collected",
		body: `Hello,

We were unable to collect your payment of **{{.amount}}**.
We will try again on {{.next_retry_date}}. Please make sure your account is funded.`,
	},
	outbox.TemplatePaymentLinkSMS: {
		body: `Your payment of {{.amount}} failed. Pay securely within 24h: {{.payment_link}}`,
	},
	outbox.TemplateContactSMS: {
		body: `{{.contact_text}}`,
	},
	outbox.TemplateSuspensionNotice: {
		subject: "Your subscription has been suspended",
		body: `Hello,

Your subscription has been suspended after repeated payment failures.
{{if .payment_link}}Settle your balance to restore it: {{.payment_link}}{{else}}{{.contact_text}}{{end}}`,
	},
}

// Renderer expands message templates. Email bodies are markdown converted to
// sanitized HTML; SMS bodies stay plain text.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]messageTemplate
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	logger    logger.Interface
}

func NewRenderer(log logger.Interface) *Renderer {
	templates := make(map[string]messageTemplate, len(defaultTemplates))
	for k, v := range defaultTemplates {
		templates[k] = v
	}
	return &Renderer{
		templates: templates,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		logger: log,
	}
}

// LoadDir overrides built-in templates with <key>.md files from dir. The
// first line of a file starting with "Subject:" sets the subject. A missing
// directory keeps the defaults.
func (r *Renderer) LoadDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warnw("notification template directory not found, using defaults", "path", dir)
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", f, err)
		}
		key := strings.TrimSuffix(filepath.Base(f), ".md")
		r.templates[key] = parseTemplateFile(string(content))
		r.logger.Infow("loaded notification template", "key", key, "file", f)
	}
	return nil
}

func parseTemplateFile(content string) messageTemplate {
	first, rest, found := strings.Cut(content, "\n")
	if subject, ok := strings.CutPrefix(first, "Subject:"); ok && found {
		return messageTemplate{subject: strings.TrimSpace(subject), body: strings.TrimLeft(rest, "\n")}
	}
	return messageTemplate{body: content}
}

// Render expands msg's template with its data. An explicit msg.Subject wins
// over the template subject.
func (r *Renderer) Render(msg outbox.Message) (Rendered, error) {
	r.mu.RLock()
	tpl, ok := r.templates[msg.TemplateKey]
	r.mu.RUnlock()
	if !ok {
		return Rendered{}, fmt.Errorf("unknown notification template: %q", msg.TemplateKey)
	}

	text, err := expand(msg.TemplateKey, tpl.body, msg.Data)
	if err != nil {
		return Rendered{}, err
	}
	subject := msg.Subject
	if subject == "" {
		if subject, err = expand(msg.TemplateKey+".subject", tpl.subject, msg.Data); err != nil {
			return Rendered{}, err
		}
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return Rendered{}, fmt.Errorf("failed to convert template %s: %w", msg.TemplateKey, err)
	}
	return Rendered{
		Subject: subject,
		Text:    text,
		HTML:    r.policy.Sanitize(buf.String()),
	}, nil
}

func expand(name, body string, data map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
