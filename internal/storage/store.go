// Package storage provides abstractions over the path-addressed JSON document store.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrStatus is wrapped by backends that reject a request (non-2xx, bad path, bad body).
var ErrStatus = errors.New("document store rejected request")

// Store defines the operations the chat client needs from the document store.
// Paths are slash-separated without the ".json" suffix, e.g. "messages/a@x_com_b@x_com".
// This abstraction allows swapping backends (remote HTTP, SQLite, in-memory)
// without changing the service layer.
type Store interface {
	// Get returns the JSON subtree at path. An absent path returns the JSON literal null.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put replaces the subtree at path with the JSON encoding of value.
	Put(ctx context.Context, path string, value any) error

	// Delete removes the subtree at path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Close releases any resources held by the store.
	Close() error
}

// StatusError reports a backend rejection with its HTTP-style status code.
type StatusError struct {
	Code   int
	Method string
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Top-level collections of the chat document store.
const (
	UsersPath    = "users"
	GroupsPath   = "groups"
	MessagesPath = "messages"
)

// UserPath returns the path of one user record.
func UserPath(userKey string) string { return UsersPath + "/" + userKey }

// GroupPath returns the path of one group record.
func GroupPath(groupID string) string { return GroupsPath + "/" + groupID }

// GroupMembersPath returns the path of a group's member list.
func GroupMembersPath(groupID string) string { return GroupPath(groupID) + "/members" }

// ConversationPath returns the path of a conversation's message container.
func ConversationPath(key string) string { return MessagesPath + "/" + key }

// MessagePath returns the path of one message record.
func MessagePath(key, recordKey string) string { return ConversationPath(key) + "/" + recordKey }
