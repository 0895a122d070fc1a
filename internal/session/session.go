// Package session ties one signed-in user to the conversation they are looking at.
// Selecting a conversation restarts the sync loop for it; sends and membership
// changes go to the store and show up on the next poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/roster"
	"github.com/mmynk/pollchat/internal/service"
	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/syncloop"
	"github.com/mmynk/pollchat/internal/timeline"
)

var (
	// ErrNoConversation is returned by sends when nothing is selected.
	ErrNoConversation = errors.New("no conversation selected")

	// ErrCancelled is returned when the user declines a destructive action.
	ErrCancelled = errors.New("cancelled by user")
)

// View displays the timeline of the selected conversation. It is called on the
// dispatcher's goroutine.
type View interface {
	Show(conv models.Conversation, items []timeline.Item)
}

// ViewFunc adapts a function to View.
type ViewFunc func(conv models.Conversation, items []timeline.Item)

// Show calls f.
func (f ViewFunc) Show(conv models.Conversation, items []timeline.Item) { f(conv, items) }

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Option configures a Session.
type Option func(*config)

type config struct {
	loopOpts    []syncloop.Option
	serviceOpts []service.Option
}

// WithLoopOptions passes options to the sync loop.
func WithLoopOptions(opts ...syncloop.Option) Option {
	return func(c *config) { c.loopOpts = append(c.loopOpts, opts...) }
}

// WithServiceOptions passes options to the message, group and profile services.
func WithServiceOptions(opts ...service.Option) Option {
	return func(c *config) { c.serviceOpts = append(c.serviceOpts, opts...) }
}

type selection struct {
	conv models.Conversation
	key  models.ConversationKey
}

// Session is the state of one signed-in user.
type Session struct {
	self     string
	view     View
	loop     *syncloop.Loop
	roster   *roster.Cache
	messages *service.MessageService
	groups   *service.GroupService
	profiles *service.ProfileService

	mu       sync.Mutex // serializes selection changes
	selected atomic.Pointer[selection]
}

// New creates a session for self over store. Rendering goes through dispatcher.
func New(store storage.Store, self string, view View, dispatcher syncloop.Dispatcher, opts ...Option) (*Session, error) {
	email, err := identity.NormalizeEmail(self)
	if err != nil {
		return nil, err
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		self:     email,
		view:     view,
		messages: service.NewMessageService(store, cfg.serviceOpts...),
		groups:   service.NewGroupService(store, cfg.serviceOpts...),
		profiles: service.NewProfileService(store, cfg.serviceOpts...),
	}
	s.roster = roster.NewCache(email, rosterSource{profiles: s.profiles, groups: s.groups})
	s.loop = syncloop.New(syncloop.StoreFetcher(store), syncloop.RenderFunc(s.render), dispatcher, cfg.loopOpts...)
	return s, nil
}

// Self returns the local user's email.
func (s *Session) Self() string { return s.self }

// Roster returns the session's roster cache.
func (s *Session) Roster() *roster.Cache { return s.roster }

// Groups returns the group service.
func (s *Session) Groups() *service.GroupService { return s.groups }

// Profiles returns the profile service.
func (s *Session) Profiles() *service.ProfileService { return s.profiles }

// Open marks the user online and loads the roster.
func (s *Session) Open(ctx context.Context) error {
	if err := s.profiles.SetStatus(ctx, s.self, true); err != nil {
		return fmt.Errorf("failed to go online: %w", err)
	}
	if err := s.roster.Refresh(ctx); err != nil {
		return err
	}
	return nil
}

// Close stops polling and marks the user offline.
func (s *Session) Close(ctx context.Context) error {
	s.Deselect()
	if err := s.profiles.SetStatus(ctx, s.self, false); err != nil {
		return fmt.Errorf("failed to go offline: %w", err)
	}
	return nil
}

// Select makes conv the active conversation and starts polling it.
func (s *Session) Select(conv models.Conversation) error {
	conv = byValue(conv)
	key, err := identity.KeyFor(s.self, conv)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected.Store(&selection{conv: conv, key: key})
	s.loop.Start(key)

	slog.Info("Conversation selected", "conversation_key", key, "title", conv.Title())
	return nil
}

// Deselect stops polling and clears the selection.
func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselectLocked()
}

func (s *Session) deselectLocked() {
	s.loop.Stop()
	if prev := s.selected.Swap(nil); prev != nil {
		slog.Info("Conversation deselected", "conversation_key", prev.key)
	}
}

// Selected returns the active conversation and its key.
func (s *Session) Selected() (models.Conversation, models.ConversationKey, bool) {
	sel := s.selected.Load()
	if sel == nil {
		return nil, "", false
	}
	return sel.conv, sel.key, true
}

// Send posts a text message to the selected conversation.
func (s *Session) Send(ctx context.Context, text string) (*models.Message, error) {
	sel := s.selected.Load()
	if sel == nil {
		return nil, ErrNoConversation
	}
	return s.messages.SendText(ctx, sel.key, s.self, recipient(sel.conv, sel.key), text)
}

// SendFile posts a file message to the selected conversation.
func (s *Session) SendFile(ctx context.Context, file service.FileRef) (*models.Message, error) {
	sel := s.selected.Load()
	if sel == nil {
		return nil, ErrNoConversation
	}
	return s.messages.SendFile(ctx, sel.key, s.self, recipient(sel.conv, sel.key), file)
}

// SendTo posts a text message to conv without selecting it.
func (s *Session) SendTo(ctx context.Context, conv models.Conversation, text string) (*models.Message, error) {
	conv = byValue(conv)
	key, err := identity.KeyFor(s.self, conv)
	if err != nil {
		return nil, err
	}
	return s.messages.SendText(ctx, key, s.self, recipient(conv, key), text)
}

// SendFileTo posts a file message to conv without selecting it.
func (s *Session) SendFileTo(ctx context.Context, conv models.Conversation, file service.FileRef) (*models.Message, error) {
	conv = byValue(conv)
	key, err := identity.KeyFor(s.self, conv)
	if err != nil {
		return nil, err
	}
	return s.messages.SendFile(ctx, key, s.self, recipient(conv, key), file)
}

// CreateGroup creates a group with the local user as creator.
func (s *Session) CreateGroup(ctx context.Context, name, description string, members []string) (*models.Group, error) {
	group, err := s.groups.CreateGroup(ctx, name, description, s.self, members)
	if err != nil {
		return nil, err
	}
	s.roster.ApplyGroup(*group)
	return group, nil
}

// AddMembers adds members to a group the local user belongs to. The group is read
// from the store first so the union is taken over the latest membership.
func (s *Session) AddMembers(ctx context.Context, groupID string, members []string) (*models.Group, error) {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	updated, err := s.groups.AddMembers(ctx, group, s.self, members)
	if updated != nil {
		s.roster.ApplyGroup(*updated)
		s.refreshSelectedGroup(*updated)
	}
	return updated, err
}

// LeaveGroup removes the local user from a group after confirm approves it. If the
// group is the active conversation, polling stops and the selection is cleared.
func (s *Session) LeaveGroup(ctx context.Context, groupID string, confirm Confirmer) error {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Leave group %q?", group.Name)) {
		return ErrCancelled
	}

	_, err = s.groups.Leave(ctx, group, s.self)
	if err != nil && !errors.Is(err, service.ErrPartialWrite) {
		return err
	}
	s.roster.RemoveGroup(groupID)

	s.mu.Lock()
	if sel := s.selected.Load(); sel != nil && isGroup(sel.conv, groupID) {
		s.deselectLocked()
	}
	s.mu.Unlock()
	return err
}

// DeleteAccount removes the local user's profile after confirm approves it.
func (s *Session) DeleteAccount(ctx context.Context, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Delete account %s?", s.self)) {
		return ErrCancelled
	}
	s.Deselect()
	return s.profiles.Delete(ctx, s.self)
}

func (s *Session) render(key models.ConversationKey, items []timeline.Item) {
	sel := s.selected.Load()
	if sel == nil || sel.key != key {
		return
	}
	_, group := sel.conv.(models.GroupChat)
	s.view.Show(sel.conv, timeline.Annotate(items, s.self, group))
}

func (s *Session) refreshSelectedGroup(g models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.selected.Load()
	if sel == nil || !isGroup(sel.conv, g.ID) {
		return
	}
	s.selected.Store(&selection{conv: models.GroupChat{Group: g.Clone()}, key: sel.key})
}

// byValue dereferences pointer conversations so type switches only see values.
func byValue(conv models.Conversation) models.Conversation {
	switch c := conv.(type) {
	case *models.Direct:
		if c == nil {
			return nil
		}
		return *c
	case *models.GroupChat:
		if c == nil {
			return nil
		}
		return *c
	}
	return conv
}

func recipient(conv models.Conversation, key models.ConversationKey) string {
	if d, ok := conv.(models.Direct); ok {
		return strings.ToLower(d.Peer.Email)
	}
	return key.String()
}

func isGroup(conv models.Conversation, id string) bool {
	g, ok := conv.(models.GroupChat)
	return ok && g.Group.ID == id
}

// rosterSource adapts the profile and group services to roster.Source.
type rosterSource struct {
	profiles *service.ProfileService
	groups   *service.GroupService
}

func (r rosterSource) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.profiles.ListUsers(ctx)
}

func (r rosterSource) ListGroups(ctx context.Context) ([]models.Group, error) {
	return r.groups.ListGroups(ctx)
}
