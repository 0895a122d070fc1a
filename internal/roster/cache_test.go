package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/pollchat/internal/models"
)

// fakeSource serves fixed users and groups and can be switched to fail.
type fakeSource struct {
	mu     sync.Mutex
	users  []models.User
	groups []models.Group
	err    error
	calls  int
}

func (s *fakeSource) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.users, nil
}

func (s *fakeSource) ListGroups(ctx context.Context) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.groups, nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newFixture() *fakeSource {
	return &fakeSource{
		users: []models.User{
			{Email: "a@x.com", DisplayName: "Alice"},
			{Email: "b@x.com", DisplayName: "Bob"},
			{Email: "c@x.com", DisplayName: "carol"},
		},
		groups: []models.Group{
			{ID: "g1", Name: "Team", Members: []string{"a@x.com", "b@x.com"}},
			{ID: "g2", Name: "Other", Members: []string{"b@x.com", "c@x.com"}},
			{ID: "g3", Name: "Book club", Members: []string{"a@x.com"}},
		},
	}
}

func TestRefresh(t *testing.T) {
	c := NewCache("A@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, ok := c.User("a@x.com"); ok {
		t.Error("local user should be excluded from the roster")
	}
	if u, ok := c.User("B@x.com"); !ok || u.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %+v (%v)", u, ok)
	}
	if _, ok := c.Group("g2"); ok {
		t.Error("groups without the local user should be excluded")
	}
	if _, ok := c.Group("g1"); !ok {
		t.Error("expected group g1")
	}
	if c.Snapshot().FetchedAt.IsZero() {
		t.Error("expected FetchedAt to be set")
	}
}

func TestRefresh_MixedCaseMembers(t *testing.T) {
	src := &fakeSource{
		users:  []models.User{{Email: "Alice@x.com"}, {Email: "b@x.com"}},
		groups: []models.Group{{ID: "g1", Name: "Team", Members: []string{"Alice@x.com", "b@x.com"}}},
	}
	c := NewCache("alice@x.com", src)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, ok := c.Group("g1"); !ok {
		t.Error("group listing the local user in another case should be kept")
	}
	if _, ok := c.User("alice@x.com"); ok {
		t.Error("local user should be excluded regardless of case")
	}

	c.ApplyGroup(models.Group{ID: "g2", Name: "New", Members: []string{"ALICE@x.com"}})
	if _, ok := c.Group("g2"); !ok {
		t.Error("expected g2 after ApplyGroup")
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	src := newFixture()
	c := NewCache("a@x.com", src)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	before := c.Snapshot()

	src.fail(errors.New("store unavailable"))
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if c.Snapshot() != before {
		t.Error("failed refresh replaced the snapshot")
	}
}

func TestConversations(t *testing.T) {
	c := NewCache("a@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Bob", "carol", "Book club", "Team"}},
		{"bo", []string{"Bob", "Book club"}},
		{"C@X", []string{"carol"}},
		{"team", []string{"Team"}},
		{"nobody", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, conv := range c.Conversations(tt.query) {
				got = append(got, conv.Title())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestConversations_Kinds(t *testing.T) {
	c := NewCache("a@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var direct, groups int
	for _, conv := range c.Conversations("") {
		switch conv.(type) {
		case models.Direct:
			direct++
		case models.GroupChat:
			groups++
		default:
			t.Errorf("unexpected conversation type %T", conv)
		}
	}
	if direct != 2 || groups != 2 {
		t.Errorf("expected 2 direct and 2 group chats, got %d and %d", direct, groups)
	}
}

func TestApplyAndRemoveGroup(t *testing.T) {
	c := NewCache("a@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	before := c.Snapshot()

	c.ApplyGroup(models.Group{ID: "g4", Name: "New", Members: []string{"a@x.com", "c@x.com"}})
	if _, ok := c.Group("g4"); !ok {
		t.Error("expected g4 after ApplyGroup")
	}
	if _, ok := before.Groups["g4"]; ok {
		t.Error("ApplyGroup mutated the previous snapshot")
	}

	// Applying a group without the local user drops it.
	c.ApplyGroup(models.Group{ID: "g1", Name: "Team", Members: []string{"b@x.com"}})
	if _, ok := c.Group("g1"); ok {
		t.Error("expected g1 to be dropped once the local user left")
	}

	c.RemoveGroup("g3")
	if _, ok := c.Group("g3"); ok {
		t.Error("expected g3 to be removed")
	}
	if _, ok := before.Groups["g3"]; !ok {
		t.Error("RemoveGroup mutated the previous snapshot")
	}
}

func TestGroup_ReturnsCopy(t *testing.T) {
	c := NewCache("a@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	g, _ := c.Group("g1")
	g.Members[0] = "mallory@x.com"

	again, _ := c.Group("g1")
	if again.Members[0] != "a@x.com" {
		t.Errorf("cached members were mutated: %v", again.Members)
	}
}

func TestName(t *testing.T) {
	c := NewCache("a@x.com", newFixture())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := c.Name("b@x.com"); got != "Bob" {
		t.Errorf("expected 'Bob', got '%s'", got)
	}
	if got := c.Name("zed@x.com"); got != "zed" {
		t.Errorf("expected local part 'zed', got '%s'", got)
	}
}

func TestRefresher(t *testing.T) {
	if _, err := NewRefresher(NewCache("a@x.com", newFixture()), "not a cron"); err == nil {
		t.Error("expected error for invalid schedule")
	}

	src := newFixture()
	r, err := NewRefresher(NewCache("a@x.com", src), "* * * * * *")
	if err != nil {
		t.Fatalf("NewRefresher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for src.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if src.callCount() == 0 {
		t.Error("expected at least one scheduled refresh")
	}
}
