package models

import "strings"

// Presence values stored in User.Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User represents a registered user as stored under /users in the document store.
type User struct {
	// Email is the user's unique identity.
	Email string `json:"email"`

	// DisplayName is the name shown in chat lists and group sender labels.
	// Defaults to the local part of Email when absent.
	DisplayName string `json:"displayName"`

	// Status is either StatusOnline or StatusOffline.
	Status string `json:"status"`

	// Avatar is an opaque reference to the user's avatar image.
	Avatar string `json:"avatar,omitempty"`

	// LastSeen is the epoch-millisecond time the user was last marked online.
	LastSeen int64 `json:"lastSeen"`
}

// Online reports whether the user's status is online.
func (u User) Online() bool {
	return u.Status == StatusOnline
}

// Name returns DisplayName, falling back to the email's local part.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return LocalPart(u.Email)
}

// LocalPart returns the part of an email address before the "@".
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// UserKey returns the store record key for an email ("." is not path-safe).
func UserKey(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), ".", "_")
}
