package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage"
)

// GroupService manages group records and posts the system messages that
// accompany membership changes.
type GroupService struct {
	store    storage.Store
	messages *MessageService
	opts     options
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, opts ...Option) *GroupService {
	return &GroupService{
		store:    store,
		messages: NewMessageService(store, opts...),
		opts:     buildOptions(opts),
	}
}

// CreateGroup creates a group whose members are the creator followed by initialMembers.
func (s *GroupService) CreateGroup(ctx context.Context, name, description, creator string, initialMembers []string) (*models.Group, error) {
	slog.Info("CreateGroup request received",
		"name", name,
		"members_count", len(initialMembers)+1,
	)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty group name", identity.ErrInvalidIdentity)
	}
	creator, err := identity.NormalizeEmail(creator)
	if err != nil {
		return nil, err
	}
	members, _, err := union([]string{creator}, initialMembers)
	if err != nil {
		return nil, err
	}

	now := s.opts.now().UnixMilli()
	group := &models.Group{
		ID:          newGroupID(now),
		Name:        name,
		Description: strings.TrimSpace(description),
		Members:     members,
		CreatedBy:   creator,
		CreatedAt:   now,
	}

	if err := s.store.Put(ctx, storage.GroupPath(group.ID), group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return group, nil
}

// AddMembers adds newMembers to the group on behalf of actor and announces the change
// in the group conversation. Members already present are ignored; if nobody is new
// nothing is written.
//
// If the membership write succeeds but the announcement fails, the updated group is
// returned together with an error wrapping ErrPartialWrite.
func (s *GroupService) AddMembers(ctx context.Context, group *models.Group, actor string, newMembers []string) (*models.Group, error) {
	slog.Info("AddMembers request received",
		"group_id", group.ID,
		"members_count", len(newMembers),
	)

	key, err := identity.GroupKey(group.ID)
	if err != nil {
		return nil, err
	}
	actor, err = identity.NormalizeEmail(actor)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actor) {
		return nil, fmt.Errorf("%s in %s: %w", actor, group.ID, ErrNotMember)
	}

	members, added, err := union(group.Members, newMembers)
	if err != nil {
		return nil, err
	}
	updated := group.Clone()
	if len(added) == 0 {
		slog.Info("AddMembers skipped, nobody new", "group_id", group.ID)
		return &updated, nil
	}
	updated.Members = members

	if err := s.store.Put(ctx, storage.GroupMembersPath(group.ID), members); err != nil {
		slog.Error("AddMembers failed", "group_id", group.ID, "error", err)
		return nil, fmt.Errorf("failed to update members: %w", err)
	}

	text := fmt.Sprintf("%s added %s to the group", models.LocalPart(actor), strings.Join(added, ", "))
	if _, err := s.messages.SendSystem(ctx, key, text); err != nil {
		slog.Error("AddMembers announcement failed", "group_id", group.ID, "error", err)
		return &updated, fmt.Errorf("%w: %v", ErrPartialWrite, err)
	}

	slog.Info("Members added", "group_id", group.ID, "added", added)
	return &updated, nil
}

// Leave removes self from the group. When self was the last member the group is
// deleted and deleted is true; otherwise the remaining members are written and a
// notification is posted.
func (s *GroupService) Leave(ctx context.Context, group *models.Group, self string) (deleted bool, err error) {
	slog.Info("LeaveGroup request received", "group_id", group.ID)

	key, err := identity.GroupKey(group.ID)
	if err != nil {
		return false, err
	}
	self, err = identity.NormalizeEmail(self)
	if err != nil {
		return false, err
	}
	if !group.HasMember(self) {
		return false, fmt.Errorf("%s in %s: %w", self, group.ID, ErrNotMember)
	}

	remaining := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		if !models.SameEmail(m, self) {
			remaining = append(remaining, m)
		}
	}

	if len(remaining) == 0 {
		if err := s.store.Delete(ctx, storage.GroupPath(group.ID)); err != nil {
			slog.Error("LeaveGroup failed", "group_id", group.ID, "error", err)
			return false, fmt.Errorf("failed to delete group: %w", err)
		}
		slog.Info("Group deleted", "group_id", group.ID)
		return true, nil
	}

	if err := s.store.Put(ctx, storage.GroupMembersPath(group.ID), remaining); err != nil {
		slog.Error("LeaveGroup failed", "group_id", group.ID, "error", err)
		return false, fmt.Errorf("failed to update members: %w", err)
	}

	if _, err := s.messages.SendSystem(ctx, key, models.LocalPart(self)+" left the group"); err != nil {
		slog.Error("LeaveGroup announcement failed", "group_id", group.ID, "error", err)
		return false, fmt.Errorf("%w: %v", ErrPartialWrite, err)
	}

	slog.Info("Group left", "group_id", group.ID, "members_count", len(remaining))
	return false, nil
}

// Get retrieves a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	slog.Debug("GetGroup request received", "group_id", id)

	raw, err := s.store.Get(ctx, storage.GroupPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	var group *models.Group
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, fmt.Errorf("failed to decode group: %w", err)
	}
	if group == nil {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	group.ID = id
	return group, nil
}

// ListGroups retrieves all groups ordered by creation time. A null body means no groups.
func (s *GroupService) ListGroups(ctx context.Context) ([]models.Group, error) {
	slog.Debug("ListGroups request received")

	raw, err := s.store.Get(ctx, storage.GroupsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	groups := make([]models.Group, 0, len(records))
	for id, body := range records {
		var g models.Group
		if err := json.Unmarshal(body, &g); err != nil {
			slog.Warn("Skipping malformed group record", "group_id", id, "error", err)
			continue
		}
		g.ID = id
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CreatedAt != groups[j].CreatedAt {
			return groups[i].CreatedAt < groups[j].CreatedAt
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// newGroupID returns "group_<millis>-<suffix>". The suffix keeps two groups created in
// the same millisecond apart.
func newGroupID(millis int64) string {
	return "group_" + strconv.FormatInt(millis, 10) + "-" + uuid.NewString()[:8]
}

// union appends the normalized extra emails missing from base. It returns the merged
// list and the emails that were actually added.
func union(base, extra []string) (merged, added []string, err error) {
	merged = append([]string(nil), base...)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, m := range base {
		seen[strings.ToLower(strings.TrimSpace(m))] = true
	}
	for _, raw := range extra {
		m, err := identity.NormalizeEmail(raw)
		if err != nil {
			return nil, nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		merged = append(merged, m)
		added = append(added, m)
	}
	return merged, added, nil
}
