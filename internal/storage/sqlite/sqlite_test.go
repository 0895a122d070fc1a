package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mmynk/pollchat/internal/models"
)

func TestSQLiteStore(t *testing.T) {
	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "pollchat-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { store.Close() }()

	ctx := context.Background()

	t.Run("Get on absent path returns null", func(t *testing.T) {
		raw, err := store.Get(ctx, "messages/a@x_com_b@x_com")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(raw) != "null" {
			t.Errorf("Expected null, got %s", raw)
		}
	})

	t.Run("Put message records under a conversation", func(t *testing.T) {
		msgs := []models.Message{
			{From: "a@x.com", To: "b@x.com", Text: "hi", Timestamp: 1000},
			{From: "b@x.com", To: "a@x.com", Text: "hello", Timestamp: 2000},
		}
		for _, m := range msgs {
			path := "messages/a@x_com_b@x_com/" + strconv.FormatInt(m.Timestamp, 10)
			if err := store.Put(ctx, path, m); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}

		raw, err := store.Get(ctx, "messages/a@x_com_b@x_com")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		var got map[string]models.Message
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Invalid body %s: %v", raw, err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(got))
		}
		if got["2000"].Text != "hello" {
			t.Errorf("Record mismatch: got %+v", got["2000"])
		}
	})

	t.Run("Sibling conversation is not part of the subtree", func(t *testing.T) {
		// "a@x_com_b@x_com0" sorts right after the "a@x_com_b@x_com/" range.
		if err := store.Put(ctx, "messages/a@x_com_b@x_com0/1", models.Message{Text: "other"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		raw, _ := store.Get(ctx, "messages/a@x_com_b@x_com")
		var got map[string]models.Message
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Invalid body %s: %v", raw, err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 records, got %d", len(got))
		}
	})

	t.Run("Put members replaces the array", func(t *testing.T) {
		group := models.Group{Name: "Team", Members: []string{"a@x.com", "b@x.com", "c@x.com"}, CreatedBy: "a@x.com"}
		if err := store.Put(ctx, "groups/g1", group); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Put(ctx, "groups/g1/members", []string{"a@x.com", "c@x.com"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		raw, _ := store.Get(ctx, "groups/g1")
		var got models.Group
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Invalid body %s: %v", raw, err)
		}
		if len(got.Members) != 2 || got.Members[1] != "c@x.com" {
			t.Errorf("Members mismatch: got %v", got.Members)
		}
	})

	t.Run("Delete removes the group", func(t *testing.T) {
		if err := store.Delete(ctx, "groups/g1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		raw, _ := store.Get(ctx, "groups")
		if string(raw) != "null" {
			t.Errorf("Expected null after delete, got %s", raw)
		}
	})

	t.Run("Data survives reopen", func(t *testing.T) {
		store.Close()
		reopened, err := New(dbPath)
		if err != nil {
			t.Fatalf("Failed to reopen store: %v", err)
		}
		store = reopened

		raw, _ := store.Get(ctx, "messages/a@x_com_b@x_com/1000/text")
		if string(raw) != `"hi"` {
			t.Errorf("Expected persisted text, got %s", raw)
		}
	})
}
