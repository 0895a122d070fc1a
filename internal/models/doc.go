// Package models defines the core domain models for pollchat.
//
// # Models
//
//   - User: a registered person, identified by email
//   - Group: a named set of member emails with its own timeline
//   - Message: one immutable entry in a conversation timeline
//   - Conversation: either a Direct chat with a User or a GroupChat
//
// # Design Principles
//
//  1. Emails are identities: users and group members are referenced by email, never by pointer
//  2. Messages are append-only: nothing in this module edits or deletes a written message
//  3. JSON tags match the document store shapes so records round-trip unchanged
//  4. Conversation is a closed sum type; callers switch over its concrete types
package models
