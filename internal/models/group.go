package models

import (
	"slices"
	"strings"
)

// Group represents a group chat record stored under /groups/{ID}.
//
// Members has set semantics: order is preserved for display but duplicates are never written.
// A group whose member set would become empty is deleted instead of persisted.
type Group struct {
	// ID is the store key of the group (assigned at creation time, not stored in the body).
	ID string `json:"-"`

	// Name is the display name of the group (e.g., "Team").
	Name string `json:"name"`

	// Description is free text shown in the group info view.
	Description string `json:"description"`

	// Members is the list of member emails.
	Members []string `json:"members"`

	// CreatedBy is the email of the creator. It stays set even after the creator leaves.
	CreatedBy string `json:"createdBy"`

	// CreatedAt is the epoch-millisecond creation time.
	CreatedAt int64 `json:"createdAt"`
}

// HasMember reports whether email is currently a member. Emails compare case-insensitively,
// since other clients may store them as typed.
func (g Group) HasMember(email string) bool {
	return slices.ContainsFunc(g.Members, func(m string) bool { return SameEmail(m, email) })
}

// SameEmail reports whether a and b name the same account.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Clone returns a copy of g that shares no slice storage with it.
func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	return g
}
