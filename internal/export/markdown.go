package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/chat-recorder/internal/record"
	"github.com/iksnae/chat-recorder/internal/session"
)

// MarkdownExporter exports records as a Markdown transcript, with a heading
// each time the conversation changes
type MarkdownExporter struct{}

// Export exports records to Markdown format
func (e *MarkdownExporter) Export(records []record.MessageRecord, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Chat records\n\n")
	_, _ = fmt.Fprintf(w, "**Records:** %d\n\n", len(records))
	if len(records) > 0 {
		_, _ = fmt.Fprintf(w, "**From:** %s  \n", records[0].Time.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "**To:** %s\n\n", records[len(records)-1].Time.Format("2006-01-02 15:04:05"))
	}

	var current string
	for _, rec := range records {
		if heading := conversation(rec.Session); heading != current {
			_, _ = fmt.Fprintf(w, "---\n\n## %s\n\n", heading)
			current = heading
		}

		who := rec.Session.User
		if rec.Kind == record.KindMessageSent {
			who = "bot " + rec.Session.SelfID
		}
		marker := ""
		if rec.Kind == record.KindFake {
			marker = " _(synthetic)_"
		}
		_, _ = fmt.Fprintf(w, "**%s:** (%s)%s\n\n%s\n\n", who, rec.Time.Format("2006-01-02 15:04:05"), marker, escapeMarkdown(rec.PlainText))

		if types := nonText(rec); len(types) > 0 {
			_, _ = fmt.Fprintf(w, "_attachments: %s_\n\n", strings.Join(types, ", "))
		}
	}

	return nil
}

func conversation(s session.Session) string {
	scene := fmt.Sprintf("%s %s", s.Scene.Type, s.Scene.ID)
	if p := s.Scene.Parent; p != nil {
		scene = fmt.Sprintf("%s %s / %s", p.Type, p.ID, scene)
	}
	return fmt.Sprintf("%s (%s) %s", s.Adapter, s.Scope, scene)
}

func nonText(rec record.MessageRecord) []string {
	var types []string
	for _, t := range rec.Message.Types() {
		if t != "text" {
			types = append(types, t)
		}
	}
	return types
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			// Escape markdown syntax outside code blocks
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
