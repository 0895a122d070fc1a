package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage/memory"
)

func TestRegisterProfile(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()

	user, err := svc.Register(ctx, models.User{Email: "Jane.Doe@x.com"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "jane.doe@x.com" {
		t.Errorf("email: expected lower-cased, got '%s'", user.Email)
	}
	if user.DisplayName != "jane.doe" {
		t.Errorf("displayName: expected 'jane.doe', got '%s'", user.DisplayName)
	}
	if user.Status != models.StatusOffline {
		t.Errorf("status: expected offline, got '%s'", user.Status)
	}

	got, err := svc.Get(ctx, "jane.doe@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got != *user {
		t.Errorf("expected %+v, got %+v", user, got)
	}
}

func TestRegisterProfile_Invalid(t *testing.T) {
	svc := NewProfileService(memory.New())
	if _, err := svc.Register(context.Background(), models.User{Email: "nobody"}); !errors.Is(err, identity.ErrInvalidIdentity) {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	svc := NewProfileService(memory.New(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := svc.Register(ctx, models.User{Email: "a@x.com", DisplayName: "Alice"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := svc.SetStatus(ctx, "a@x.com", true); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	got, err := svc.Get(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Online() {
		t.Error("expected user online")
	}
	if got.LastSeen != now.UnixMilli() {
		t.Errorf("lastSeen: expected %d, got %d", now.UnixMilli(), got.LastSeen)
	}
	if got.DisplayName != "Alice" {
		t.Errorf("status update clobbered displayName: '%s'", got.DisplayName)
	}

	if err := svc.SetStatus(ctx, "a@x.com", false); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ = svc.Get(ctx, "a@x.com")
	if got.Online() {
		t.Error("expected user offline")
	}
}

func TestListUsersAndDelete(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers on empty store failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no users, got %d", len(users))
	}

	for _, email := range []string{"b@x.com", "a@x.com"} {
		if _, err := svc.Register(ctx, models.User{Email: email}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	users, err = svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@x.com" || users[1].Email != "b@x.com" {
		t.Fatalf("expected [a@x.com b@x.com], got %+v", users)
	}

	if err := svc.Delete(ctx, "a@x.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, "a@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
