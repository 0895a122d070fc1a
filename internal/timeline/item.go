package timeline

import (
	"time"

	"github.com/mmynk/pollchat/internal/models"
)

// DateLayout is the granularity of date separators ("January 2, 2006").
const DateLayout = "January 2, 2006"

// Item is one render-ready entry of a timeline: a DateSeparator or a RenderableMessage.
type Item interface {
	isItem()
}

// DateSeparator marks the first message of a new local calendar day.
type DateSeparator struct {
	// Day is local midnight of the day that starts here.
	Day time.Time

	// Label is Day formatted with DateLayout.
	Label string
}

// RenderableMessage wraps a decoded message with its rendering classification.
type RenderableMessage struct {
	// RecordKey is the store key the message was read from.
	RecordKey string

	Message models.Message
	Kind    models.MessageKind

	// ShowSender is set by Annotate for group messages from other users.
	ShowSender bool
}

func (DateSeparator) isItem()     {}
func (RenderableMessage) isItem() {}

// Messages returns only the messages of items, in order.
func Messages(items []Item) []RenderableMessage {
	out := make([]RenderableMessage, 0, len(items))
	for _, it := range items {
		if m, ok := it.(RenderableMessage); ok {
			out = append(out, m)
		}
	}
	return out
}

// Annotate returns a copy of items with ShowSender computed for viewer.
// Only group conversations show sender names, never for the viewer's own messages,
// and never for system messages.
func Annotate(items []Item, viewer string, isGroup bool) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if m, ok := it.(RenderableMessage); ok {
			m.ShowSender = isGroup && m.Kind != models.KindSystem && !models.SameEmail(m.Message.From, viewer)
			it = m
		}
		out[i] = it
	}
	return out
}
