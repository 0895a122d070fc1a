package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage"
)

// FileRef describes an already uploaded file attached to a message.
type FileRef struct {
	Name string
	URL  string
	Size int64
}

// MessageService appends messages to conversations.
type MessageService struct {
	store storage.Store
	opts  options
}

// NewMessageService creates a new MessageService with the given storage backend.
func NewMessageService(store storage.Store, opts ...Option) *MessageService {
	return &MessageService{store: store, opts: buildOptions(opts)}
}

// SendText writes a text message from sender to the conversation key.
// to is the peer email for direct chats and the conversation key for groups.
func (s *MessageService) SendText(ctx context.Context, key models.ConversationKey, from, to, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, key, models.Message{From: from, To: to, Text: text})
}

// SendFile writes a file message referencing an uploaded file.
func (s *MessageService) SendFile(ctx context.Context, key models.ConversationKey, from, to string, file FileRef) (*models.Message, error) {
	if strings.TrimSpace(file.URL) == "" {
		return nil, ErrEmptyMessage
	}
	name := file.Name
	if name == "" {
		name = file.URL[strings.LastIndex(file.URL, "/")+1:]
	}
	return s.send(ctx, key, models.Message{
		From:     from,
		To:       to,
		Type:     "file",
		FileName: name,
		FileURL:  file.URL,
		FileSize: file.Size,
	})
}

// SendSystem writes a membership notification to the conversation key.
func (s *MessageService) SendSystem(ctx context.Context, key models.ConversationKey, text string) (*models.Message, error) {
	return s.send(ctx, key, models.Message{
		From:     models.SystemSender,
		To:       key.String(),
		Text:     text,
		IsSystem: true,
	})
}

func (s *MessageService) send(ctx context.Context, key models.ConversationKey, msg models.Message) (*models.Message, error) {
	if key == "" {
		return nil, fmt.Errorf("failed to send message: empty conversation key")
	}
	msg.Timestamp = s.opts.now().UnixMilli()
	recordKey := s.recordKey(msg.Timestamp)

	slog.Debug("SendMessage request received",
		"conversation_key", key,
		"record_key", recordKey,
		"kind", msg.Kind().String(),
	)

	if err := s.store.Put(ctx, storage.MessagePath(key.String(), recordKey), msg); err != nil {
		slog.Error("SendMessage failed", "conversation_key", key, "error", err)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &msg, nil
}

func (s *MessageService) recordKey(ts int64) string {
	k := strconv.FormatInt(ts, 10)
	if s.opts.uniqueKeys {
		k += "-" + uuid.NewString()[:8]
	}
	return k
}
