// internal/service/renderer.go
package service

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

// TemplateRenderer renders a message's HTML body and its plain-text
// fallback. Editors may point a message at any template file under Dir;
// messages without one use the system default.
type TemplateRenderer struct {
	Dir     string
	Default string
}

func NewTemplateRenderer(dir, defaultTemplate string) *TemplateRenderer {
	return &TemplateRenderer{Dir: dir, Default: defaultTemplate}
}

func (r *TemplateRenderer) RenderHTML(m *model.Message, data *ContentBundle) (string, error) {
	name := m.Template
	if name == "" {
		name = r.Default
	}

	tmpl, err := template.ParseFiles(filepath.Join(r.Dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderPlain builds a minimal text body for clients that refuse HTML:
// intro, item titles with links, footer.
func (r *TemplateRenderer) RenderPlain(m *model.Message, data *ContentBundle) string {
	var b strings.Builder

	b.WriteString(m.Name)
	b.WriteString("\n\n")
	if data.IntroText != "" {
		b.WriteString(data.IntroText)
		b.WriteString("\n\n")
	}
	if data.Content != "" {
		b.WriteString(data.Content)
		b.WriteString("\n\n")
	}

	writeItems := func(title string, items []model.PublicationContext) {
		if len(items) == 0 {
			return
		}
		b.WriteString(title)
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item.Publication.Title)
			if item.URL != "" {
				b.WriteString(" <")
				b.WriteString(item.URL)
				b.WriteString(">")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	writeItems("In evidence", data.Evidence)
	writeItems("News", data.SingleNews)
	for category, items := range data.NewsByCategory {
		writeItems(category, items)
	}
	writeItems("News", data.FreeNews)

	for calendar, events := range data.CalendarEvents {
		b.WriteString(calendar)
		b.WriteString("\n")
		for _, e := range events {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Publication.Title,
				e.DateStart.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}

	if data.FooterText != "" {
		b.WriteString(data.FooterText)
		b.WriteString("\n")
	}
	return b.String()
}
