// Package identity derives canonical conversation keys.
//
// Direct keys are symmetric: DirectKey(a, b) == DirectKey(b, a). Direct keys are built
// from two emails and always contain an "@"; group keys carry the "group_" prefix and
// never do, so the two key spaces cannot collide.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/pollchat/internal/models"
)

// GroupPrefix prefixes every group conversation key.
const GroupPrefix = "group_"

// ErrInvalidIdentity is returned for empty emails or group IDs.
var ErrInvalidIdentity = errors.New("invalid identity")

// DirectKey returns the key of the one-to-one conversation between two users.
func DirectKey(localEmail, peerEmail string) (models.ConversationKey, error) {
	a, err := NormalizeEmail(localEmail)
	if err != nil {
		return "", err
	}
	b, err := NormalizeEmail(peerEmail)
	if err != nil {
		return "", err
	}
	if b < a {
		a, b = b, a
	}
	return models.ConversationKey(pathSafe(a) + "_" + pathSafe(b)), nil
}

// GroupKey returns the key of a group's conversation.
func GroupKey(groupID string) (models.ConversationKey, error) {
	id := strings.TrimSpace(groupID)
	if id == "" {
		return "", fmt.Errorf("%w: empty group id", ErrInvalidIdentity)
	}
	if strings.ContainsAny(id, "@/") {
		return "", fmt.Errorf("%w: malformed group id %q", ErrInvalidIdentity, id)
	}
	return models.ConversationKey(GroupPrefix + id), nil
}

// KeyFor resolves any conversation seen by localEmail to its key.
func KeyFor(localEmail string, c models.Conversation) (models.ConversationKey, error) {
	switch conv := c.(type) {
	case models.Direct:
		return DirectKey(localEmail, conv.Peer.Email)
	case *models.Direct:
		return DirectKey(localEmail, conv.Peer.Email)
	case models.GroupChat:
		return GroupKey(conv.Group.ID)
	case *models.GroupChat:
		return GroupKey(conv.Group.ID)
	case nil:
		return "", fmt.Errorf("%w: no conversation", ErrInvalidIdentity)
	default:
		return "", fmt.Errorf("%w: unknown conversation type %T", ErrInvalidIdentity, c)
	}
}

// IsGroupKey reports whether key identifies a group conversation.
func IsGroupKey(key models.ConversationKey) bool {
	return strings.HasPrefix(string(key), GroupPrefix) && !strings.Contains(string(key), "@")
}

// GroupIDFromKey extracts the group ID from a group key.
func GroupIDFromKey(key models.ConversationKey) (string, bool) {
	if !IsGroupKey(key) {
		return "", false
	}
	id := strings.TrimPrefix(string(key), GroupPrefix)
	return id, id != ""
}

// NormalizeEmail trims and lower-cases email, rejecting values that cannot be an address.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", fmt.Errorf("%w: empty email", ErrInvalidIdentity)
	}
	if at := strings.Index(e, "@"); at <= 0 || strings.Contains(e, "/") {
		return "", fmt.Errorf("%w: malformed email %q", ErrInvalidIdentity, email)
	}
	return e, nil
}

func pathSafe(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}
