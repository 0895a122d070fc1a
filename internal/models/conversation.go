package models

// ConversationKey is the canonical store key of a timeline.
type ConversationKey string

func (k ConversationKey) String() string { return string(k) }

// Conversation is either a Direct chat or a GroupChat.
// The interface is sealed; switch over the concrete types.
type Conversation interface {
	// Title is the name shown in the conversation header.
	Title() string
	isConversation()
}

// Direct is a one-to-one conversation with Peer.
type Direct struct {
	Peer User
}

// GroupChat is a conversation whose timeline is shared by all group members.
type GroupChat struct {
	Group Group
}

func (d Direct) Title() string    { return d.Peer.Name() }
func (g GroupChat) Title() string { return g.Group.Name }

func (Direct) isConversation()    {}
func (GroupChat) isConversation() {}
