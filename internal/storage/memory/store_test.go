package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mmynk/pollchat/internal/models"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := New()
	defer store.Close()

	t.Run("Get on empty path returns null", func(t *testing.T) {
		got, err := store.Get(ctx, "groups")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "null" {
			t.Errorf("expected null, got %s", got)
		}
	})

	t.Run("Put then Get round trips a group", func(t *testing.T) {
		group := models.Group{Name: "Team", Members: []string{"a@x.com", "b@x.com"}, CreatedBy: "a@x.com", CreatedAt: 1}
		if err := store.Put(ctx, "groups/g1", group); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		raw, err := store.Get(ctx, "groups")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		var groups map[string]models.Group
		if err := json.Unmarshal(raw, &groups); err != nil {
			t.Fatalf("invalid groups body %s: %v", raw, err)
		}
		if len(groups["g1"].Members) != 2 || groups["g1"].Name != "Team" {
			t.Errorf("unexpected group: %+v", groups["g1"])
		}
	})

	t.Run("Put on a child replaces only that subtree", func(t *testing.T) {
		if err := store.Put(ctx, "groups/g1/members", []string{"a@x.com"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		raw, _ := store.Get(ctx, "groups/g1")
		var group models.Group
		if err := json.Unmarshal(raw, &group); err != nil {
			t.Fatalf("invalid group body %s: %v", raw, err)
		}
		if len(group.Members) != 1 || group.Members[0] != "a@x.com" {
			t.Errorf("members not replaced: %v", group.Members)
		}
		if group.Name != "Team" {
			t.Errorf("sibling field lost: %+v", group)
		}
	})

	t.Run("Delete removes the subtree", func(t *testing.T) {
		if err := store.Delete(ctx, "groups/g1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		raw, _ := store.Get(ctx, "groups")
		if string(raw) != "null" {
			t.Errorf("expected null after delete, got %s", raw)
		}
	})

	t.Run("Invalid paths are rejected", func(t *testing.T) {
		if err := store.Put(ctx, "users/a.b", map[string]string{"x": "y"}); err == nil {
			t.Error("expected error for dotted path")
		}
	})
}
