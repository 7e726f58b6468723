package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tkazmier/projectwatch/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notification messages from templates. Output contains no
// timestamps or randomness, so tests can assert on golden strings.
type Renderer struct {
	projectBaseURL string
	message        *template.Template
}

// NewRenderer creates a renderer. projectBaseURL is the public site base
// used to build canonical project links, e.g. https://scratch.mit.edu.
func NewRenderer(projectBaseURL string) (*Renderer, error) {
	content, err := templatesFS.ReadFile("templates/message.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read message template: %w", err)
	}

	tmpl, err := template.New("message").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse message template: %w", err)
	}

	return &Renderer{
		projectBaseURL: strings.TrimRight(projectBaseURL, "/"),
		message:        tmpl,
	}, nil
}

// Render produces the message body for a new item by subject.
func (r *Renderer) Render(subject string, item domain.Project) (string, error) {
	data := struct {
		Subject string
		Title   string
		Link    string
	}{
		Subject: subject,
		Title:   item.Title,
		Link:    r.ProjectURL(item.ID),
	}

	var buf bytes.Buffer
	if err := r.message.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute message template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ProjectURL builds the canonical link for a project id.
func (r *Renderer) ProjectURL(itemID string) string {
	return fmt.Sprintf("%s/projects/%s/", r.projectBaseURL, itemID)
}
