package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mmynk/pollchat/internal/models"
)

// FormatOptions controls text rendering of a timeline.
type FormatOptions struct {
	// Viewer is the local user's email; their messages are marked as outgoing.
	Viewer string

	// Name resolves an email to a display name. Nil falls back to the email's local part.
	Name func(email string) string

	// Location for message times. Nil means time.Local.
	Location *time.Location
}

// Format renders items as plain text, one entry per line.
func Format(items []Item, opts FormatOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	name := opts.Name
	if name == nil {
		name = models.LocalPart
	}

	var b strings.Builder
	for _, it := range items {
		switch v := it.(type) {
		case DateSeparator:
			fmt.Fprintf(&b, "\n── %s ──\n", v.Label)
		case RenderableMessage:
			formatMessage(&b, v, opts.Viewer, name, loc)
		}
	}
	return b.String()
}

func formatMessage(b *strings.Builder, m RenderableMessage, viewer string, name func(string) string, loc *time.Location) {
	if m.Kind == models.KindSystem {
		fmt.Fprintf(b, "   * %s *\n", m.Message.Text)
		return
	}

	at := time.UnixMilli(m.Message.Timestamp).In(loc).Format("3:04 PM")
	arrow := "<"
	if models.SameEmail(m.Message.From, viewer) {
		arrow = ">"
	}

	sender := ""
	if m.ShowSender {
		sender = name(m.Message.From) + ": "
	}

	body := m.Message.Text
	if m.Kind == models.KindFile {
		body = formatFile(m.Message)
	}

	lines := strings.Split(body, "\n")
	fmt.Fprintf(b, "%8s %s %s%s\n", at, arrow, sender, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(b, "%8s   %s\n", "", l)
	}
}

func formatFile(m models.Message) string {
	s := "[file] " + m.FileName
	if m.FileSize > 0 {
		s += " (" + humanize.Bytes(uint64(m.FileSize)) + ")"
	}
	if m.FileURL != "" {
		s += " " + m.FileURL
	}
	if m.Text != "" {
		s += "\n" + m.Text
	}
	return s
}
