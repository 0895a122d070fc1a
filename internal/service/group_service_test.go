package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/storage/memory"
	"github.com/mmynk/pollchat/internal/storage/sqlite"
	"github.com/mmynk/pollchat/internal/timeline"
)

// stepClock advances one millisecond per call so every write gets its own record key.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

// setupGroupTest creates a GroupService over a temp SQLite database.
func setupGroupTest(t *testing.T) (*GroupService, storage.Store) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewGroupService(store, WithClock(stepClock())), store
}

func systemTexts(t *testing.T, store storage.Store, groupID string) []string {
	t.Helper()
	key, err := identity.GroupKey(groupID)
	if err != nil {
		t.Fatalf("GroupKey failed: %v", err)
	}
	raw, err := store.Get(context.Background(), storage.ConversationPath(key.String()))
	if err != nil {
		t.Fatalf("failed to read messages: %v", err)
	}
	var texts []string
	for _, m := range timeline.Messages(timeline.Merge(raw, time.UTC)) {
		if m.Kind == models.KindSystem {
			texts = append(texts, m.Message.Text)
		}
	}
	return texts
}

func TestCreateGroup(t *testing.T) {
	svc, _ := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "weekly sync", "A@x.com", []string{"b@x.com", "a@x.com", "b@x.com"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if !strings.HasPrefix(group.ID, "group_") {
		t.Errorf("expected ID with group_ prefix, got '%s'", group.ID)
	}
	if group.CreatedBy != "a@x.com" {
		t.Errorf("createdBy: expected 'a@x.com', got '%s'", group.CreatedBy)
	}
	if want := []string{"a@x.com", "b@x.com"}; !slices.Equal(group.Members, want) {
		t.Errorf("members: expected %v, got %v", want, group.Members)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}

	got, err := svc.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Team" || got.Description != "weekly sync" {
		t.Errorf("stored group mismatch: %+v", got)
	}
	if !slices.Equal(got.Members, group.Members) {
		t.Errorf("stored members: expected %v, got %v", group.Members, got.Members)
	}
}

func TestCreateGroup_UniqueIDs(t *testing.T) {
	store := memory.New()
	fixed := time.UnixMilli(1700000000000)
	svc := NewGroupService(store, WithClock(func() time.Time { return fixed }))

	g1, err := svc.CreateGroup(context.Background(), "One", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	g2, err := svc.CreateGroup(context.Background(), "Two", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g1.ID == g2.ID {
		t.Errorf("groups created in the same millisecond share ID %s", g1.ID)
	}
}

func TestCreateGroup_Invalid(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		group   string
		creator string
		members []string
	}{
		{"empty name", "  ", "a@x.com", nil},
		{"empty creator", "Team", "", nil},
		{"bad member", "Team", "a@x.com", []string{"not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGroup(ctx, tt.group, "", tt.creator, tt.members)
			if !errors.Is(err, identity.ErrInvalidIdentity) {
				t.Errorf("expected ErrInvalidIdentity, got %v", err)
			}
		})
	}

	raw, err := store.Get(ctx, storage.GroupsPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(raw) != "null" {
		t.Errorf("expected no writes, got %s", raw)
	}
}

func TestGroupLifecycle(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "", "a@x.com", []string{"b@x.com"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	group, err = svc.AddMembers(ctx, group, "a@x.com", []string{"c@x.com"})
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if want := []string{"a@x.com", "b@x.com", "c@x.com"}; !slices.Equal(group.Members, want) {
		t.Errorf("members after add: expected %v, got %v", want, group.Members)
	}

	deleted, err := svc.Leave(ctx, group, "b@x.com")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if deleted {
		t.Error("group should not be deleted while members remain")
	}

	stored, err := svc.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if want := []string{"a@x.com", "c@x.com"}; !slices.Equal(stored.Members, want) {
		t.Errorf("members after leave: expected %v, got %v", want, stored.Members)
	}
	if stored.CreatedBy != "a@x.com" {
		t.Errorf("createdBy: expected 'a@x.com', got '%s'", stored.CreatedBy)
	}

	want := []string{"a added c@x.com to the group", "b left the group"}
	if got := systemTexts(t, store, group.ID); !slices.Equal(got, want) {
		t.Errorf("system messages: expected %v, got %v", want, got)
	}
}

func TestAddMembers_NothingNew(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "", "a@x.com", []string{"b@x.com"})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	got, err := svc.AddMembers(ctx, group, "a@x.com", []string{"B@x.com"})
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if !slices.Equal(got.Members, group.Members) {
		t.Errorf("members changed: %v", got.Members)
	}
	if texts := systemTexts(t, store, group.ID); len(texts) != 0 {
		t.Errorf("expected no system message, got %v", texts)
	}
}

func TestAddMembers_NotMember(t *testing.T) {
	svc, _ := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	_, err = svc.AddMembers(ctx, group, "z@x.com", []string{"c@x.com"})
	if !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestAddMembers_DoesNotMutateInput(t *testing.T) {
	svc, _ := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	before := slices.Clone(group.Members)

	if _, err := svc.AddMembers(ctx, group, "a@x.com", []string{"c@x.com"}); err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if !slices.Equal(group.Members, before) {
		t.Errorf("input group mutated: %v", group.Members)
	}
}

func TestLeave_LastMemberDeletesGroup(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Solo", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	deleted, err := svc.Leave(ctx, group, "a@x.com")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if !deleted {
		t.Error("expected group to be deleted")
	}

	raw, err := store.Get(ctx, storage.GroupPath(group.ID))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(raw) != "null" {
		t.Errorf("expected group record to be gone, got %s", raw)
	}
	if _, err := svc.Get(ctx, group.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLeave_NotMember(t *testing.T) {
	svc, _ := setupGroupTest(t)

	group := &models.Group{ID: "group_1", Name: "Team", Members: []string{"a@x.com"}}
	if _, err := svc.Leave(context.Background(), group, "b@x.com"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestMixedCaseStoredMembers(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	stored := models.Group{Name: "Team", Members: []string{"Alice@x.com", "b@x.com"}, CreatedBy: "Alice@x.com", CreatedAt: 1}
	if err := store.Put(ctx, storage.GroupPath("group_1"), stored); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	group, err := svc.Get(ctx, "group_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	t.Run("add existing member in another case", func(t *testing.T) {
		got, err := svc.AddMembers(ctx, group, "b@x.com", []string{"alice@x.com"})
		if err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
		if want := []string{"Alice@x.com", "b@x.com"}; !slices.Equal(got.Members, want) {
			t.Errorf("members = %v, want %v", got.Members, want)
		}
	})

	t.Run("leave as stored member", func(t *testing.T) {
		deleted, err := svc.Leave(ctx, group, "alice@x.com")
		if err != nil {
			t.Fatalf("Leave failed: %v", err)
		}
		if deleted {
			t.Fatal("group should survive with one member left")
		}
		after, err := svc.Get(ctx, "group_1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if want := []string{"b@x.com"}; !slices.Equal(after.Members, want) {
			t.Errorf("members = %v, want %v", after.Members, want)
		}
		if texts := systemTexts(t, store, "group_1"); !slices.Equal(texts, []string{"alice left the group"}) {
			t.Errorf("system texts = %v", texts)
		}
	})
}

// failingStore fails every message write and passes everything else through.
type failingStore struct {
	storage.Store
}

func (s failingStore) Put(ctx context.Context, path string, value any) error {
	if strings.HasPrefix(path, storage.MessagesPath+"/") {
		return errors.New("write refused")
	}
	return s.Store.Put(ctx, path, value)
}

func TestAddMembers_PartialWrite(t *testing.T) {
	base := memory.New()
	svc := NewGroupService(failingStore{base}, WithClock(stepClock()))
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Team", "", "a@x.com", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	updated, err := svc.AddMembers(ctx, group, "a@x.com", []string{"c@x.com"})
	if !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("expected ErrPartialWrite, got %v", err)
	}
	if updated == nil || !updated.HasMember("c@x.com") {
		t.Errorf("expected updated group with c@x.com, got %+v", updated)
	}

	// Membership change is kept.
	stored, err := svc.Get(ctx, group.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.HasMember("c@x.com") {
		t.Errorf("membership change was rolled back: %v", stored.Members)
	}
}

func TestListGroups(t *testing.T) {
	svc, store := setupGroupTest(t)
	ctx := context.Background()

	groups, err := svc.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups on empty store failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}

	first, _ := svc.CreateGroup(ctx, "First", "", "a@x.com", nil)
	second, _ := svc.CreateGroup(ctx, "Second", "", "b@x.com", nil)

	// A malformed record is skipped rather than failing the whole list.
	if err := store.Put(ctx, storage.GroupPath("group_bad"), json.RawMessage(`{"members":"oops"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	groups, err = svc.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].ID != first.ID || groups[1].ID != second.ID {
		t.Errorf("expected creation order [%s %s], got [%s %s]", first.ID, second.ID, groups[0].ID, groups[1].ID)
	}
}
