// Package memory provides an in-process implementation of storage.Store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/storage/docpath"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps the document tree as flattened leaves guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	leaves docpath.Leaves
}

// New creates an empty in-memory document store.
func New() *Store {
	return &Store{leaves: make(docpath.Leaves)}
}

// Get returns the subtree at path, or null when nothing is stored there.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	p, err := docpath.Clean(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return docpath.Assemble(p, s.leaves)
}

// Put replaces the subtree at path with value. A null value deletes the subtree.
func (s *Store) Put(ctx context.Context, path string, value any) error {
	p, err := docpath.Clean(path)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	leaves, err := docpath.Flatten(p, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(p)
	for _, a := range docpath.Ancestors(p) {
		delete(s.leaves, a)
	}
	for k, v := range leaves {
		s.leaves[k] = v
	}
	return nil
}

// Delete removes the subtree at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	p, err := docpath.Clean(path)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStatus, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(p)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) deleteLocked(p string) {
	for k := range s.leaves {
		if docpath.Within(k, p) {
			delete(s.leaves, k)
		}
	}
}
