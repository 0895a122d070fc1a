// Package service implements the write side of the chat: profiles, messages and
// group membership. Every write goes straight to the document store and is
// unconditional; concurrent edits resolve last-writer-wins.
package service

import (
	"errors"
	"time"
)

var (
	// ErrPartialWrite reports that the first step of a multi-step write succeeded
	// and a later step failed. The first step is not rolled back.
	ErrPartialWrite = errors.New("partial write")

	// ErrNotMember is returned when the acting user is not a member of the group.
	ErrNotMember = errors.New("not a group member")

	// ErrNotFound is returned when a record does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrEmptyMessage is returned for messages with neither text nor a file.
	ErrEmptyMessage = errors.New("empty message")
)

// Option configures the services.
type Option func(*options)

type options struct {
	now        func() time.Time
	uniqueKeys bool
}

// WithClock overrides time.Now for timestamps, IDs and record keys.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithUniqueRecordKeys appends a random suffix to message record keys so two messages
// sent in the same millisecond never overwrite each other.
func WithUniqueRecordKeys(enabled bool) Option {
	return func(o *options) { o.uniqueKeys = enabled }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
