// Package roster keeps the client's view of users and groups. Readers see an
// immutable snapshot that is swapped atomically; nothing is ever mutated in place.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mmynk/pollchat/internal/metrics"
	"github.com/mmynk/pollchat/internal/models"
)

// Source lists the users and groups known to the store.
type Source interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// Snapshot is one immutable view of the roster.
type Snapshot struct {
	// Users holds every other user, keyed by email.
	Users map[string]models.User

	// Groups holds the groups that include the local user, keyed by ID.
	Groups map[string]models.Group

	// FetchedAt is when the snapshot was last refreshed from the store.
	FetchedAt time.Time
}

// Cache holds the current roster snapshot for one local user.
type Cache struct {
	self string
	src  Source
	snap atomic.Pointer[Snapshot]
}

// NewCache creates an empty cache for the local user self.
func NewCache(self string, src Source) *Cache {
	c := &Cache{self: strings.ToLower(strings.TrimSpace(self)), src: src}
	c.snap.Store(&Snapshot{
		Users:  map[string]models.User{},
		Groups: map[string]models.Group{},
	})
	return c
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Refresh reloads users and groups and swaps in a new snapshot. On error the
// previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	start := time.Now()

	users, err := c.src.ListUsers(ctx)
	if err != nil {
		metrics.RosterRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to refresh users: %w", err)
	}
	groups, err := c.src.ListGroups(ctx)
	if err != nil {
		metrics.RosterRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to refresh groups: %w", err)
	}

	next := &Snapshot{
		Users:     make(map[string]models.User, len(users)),
		Groups:    make(map[string]models.Group, len(groups)),
		FetchedAt: time.Now(),
	}
	for _, u := range users {
		email := strings.ToLower(u.Email)
		if models.SameEmail(email, c.self) {
			continue
		}
		next.Users[email] = u
	}
	for _, g := range groups {
		if g.HasMember(c.self) {
			next.Groups[g.ID] = g.Clone()
		}
	}
	c.snap.Store(next)
	metrics.RosterRefreshes.WithLabelValues("ok").Inc()

	slog.Debug("Roster refreshed",
		"users_count", len(next.Users),
		"groups_count", len(next.Groups),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// User looks up another user by email.
func (c *Cache) User(email string) (models.User, bool) {
	u, ok := c.snap.Load().Users[strings.ToLower(strings.TrimSpace(email))]
	return u, ok
}

// Group looks up one of the local user's groups.
func (c *Cache) Group(id string) (models.Group, bool) {
	g, ok := c.snap.Load().Groups[id]
	if !ok {
		return models.Group{}, false
	}
	return g.Clone(), true
}

// Name resolves an email to a display name, falling back to the email's local part.
func (c *Cache) Name(email string) string {
	if u, ok := c.User(email); ok {
		return u.Name()
	}
	return models.LocalPart(email)
}

// Conversations lists the chats matching query: direct chats first, then groups, each
// sorted by title. Matching is case-insensitive on display name, email or group name.
// An empty query matches everything.
func (c *Cache) Conversations(query string) []models.Conversation {
	snap := c.snap.Load()
	q := strings.ToLower(strings.TrimSpace(query))

	var direct []models.Direct
	for _, u := range snap.Users {
		if matches(q, u.Name(), u.Email) {
			direct = append(direct, models.Direct{Peer: u})
		}
	}
	sort.Slice(direct, func(i, j int) bool {
		return less(direct[i].Title(), direct[i].Peer.Email, direct[j].Title(), direct[j].Peer.Email)
	})

	var groups []models.GroupChat
	for _, g := range snap.Groups {
		if matches(q, g.Name) {
			groups = append(groups, models.GroupChat{Group: g.Clone()})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return less(groups[i].Title(), groups[i].Group.ID, groups[j].Title(), groups[j].Group.ID)
	})

	out := make([]models.Conversation, 0, len(direct)+len(groups))
	for _, d := range direct {
		out = append(out, d)
	}
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// ApplyGroup records a group written by this client. A group that no longer includes
// the local user is removed.
func (c *Cache) ApplyGroup(g models.Group) {
	if !g.HasMember(c.self) {
		c.RemoveGroup(g.ID)
		return
	}
	c.update(func(groups map[string]models.Group) {
		groups[g.ID] = g.Clone()
	})
}

// RemoveGroup drops a group from the local view.
func (c *Cache) RemoveGroup(id string) {
	c.update(func(groups map[string]models.Group) {
		delete(groups, id)
	})
}

func (c *Cache) update(fn func(map[string]models.Group)) {
	for {
		old := c.snap.Load()
		next := &Snapshot{
			Users:     old.Users,
			Groups:    maps.Clone(old.Groups),
			FetchedAt: old.FetchedAt,
		}
		if next.Groups == nil {
			next.Groups = map[string]models.Group{}
		}
		fn(next.Groups)
		if c.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func less(titleA, idA, titleB, idB string) bool {
	a, b := strings.ToLower(titleA), strings.ToLower(titleB)
	if a != b {
		return a < b
	}
	return idA < idB
}
