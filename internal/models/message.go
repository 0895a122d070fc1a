package models

// SystemSender is the From value of messages generated by membership changes.
const SystemSender = "SYSTEM"

// MessageKind classifies a message for rendering.
type MessageKind int

const (
	KindText MessageKind = iota
	KindFile
	KindSystem
)

func (k MessageKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSystem:
		return "system"
	default:
		return "text"
	}
}

// Message is one entry of a conversation timeline as stored under
// /messages/{conversationKey}/{recordKey}. Messages are immutable once written.
type Message struct {
	// From is the sender email, or SystemSender.
	From string `json:"from"`

	// To is the peer email for direct chats or the conversation key for groups.
	To string `json:"to"`

	// Text is the message body (empty for pure file messages).
	Text string `json:"text,omitempty"`

	// Timestamp is the client-assigned epoch-millisecond send time and the ordering key.
	Timestamp int64 `json:"timestamp"`

	// IsSystem marks membership notifications.
	IsSystem bool `json:"isSystem,omitempty"`

	// Type is "file" for file messages; empty or "text" otherwise.
	Type string `json:"type,omitempty"`

	// FileName, FileURL and FileSize describe an attached file. The bytes themselves live
	// in the store's blob subsystem; only the reference travels with the message.
	FileName string `json:"fileName,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// Kind classifies the message. System wins over file, file wins over text.
func (m Message) Kind() MessageKind {
	switch {
	case m.IsSystem || m.From == SystemSender:
		return KindSystem
	case m.Type == "file" || m.FileURL != "":
		return KindFile
	default:
		return KindText
	}
}
