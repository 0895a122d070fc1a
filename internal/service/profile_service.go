package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage"
)

// ProfileService manages user records under /users.
type ProfileService struct {
	store storage.Store
	opts  options
}

// NewProfileService creates a new ProfileService with the given storage backend.
func NewProfileService(store storage.Store, opts ...Option) *ProfileService {
	return &ProfileService{store: store, opts: buildOptions(opts)}
}

// Register writes the user's profile, filling in the default display name and status.
func (s *ProfileService) Register(ctx context.Context, user models.User) (*models.User, error) {
	email, err := identity.NormalizeEmail(user.Email)
	if err != nil {
		return nil, err
	}
	user.Email = email
	if user.DisplayName == "" {
		user.DisplayName = models.LocalPart(email)
	}
	if user.Status == "" {
		user.Status = models.StatusOffline
	}

	slog.Info("RegisterProfile request received", "email", email)

	if err := s.store.Put(ctx, storage.UserPath(models.UserKey(email)), user); err != nil {
		slog.Error("RegisterProfile failed", "email", email, "error", err)
		return nil, fmt.Errorf("failed to register profile: %w", err)
	}
	return &user, nil
}

// SetStatus marks the user online or offline. Going online also refreshes lastSeen.
func (s *ProfileService) SetStatus(ctx context.Context, email string, online bool) error {
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return err
	}
	status := models.StatusOffline
	if online {
		status = models.StatusOnline
	}
	path := storage.UserPath(models.UserKey(email))

	slog.Debug("SetStatus request received", "email", email, "status", status)

	if err := s.store.Put(ctx, path+"/status", status); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if online {
		if err := s.store.Put(ctx, path+"/lastSeen", s.opts.now().UnixMilli()); err != nil {
			return fmt.Errorf("%w: failed to set last seen: %v", ErrPartialWrite, err)
		}
	}
	return nil
}

// Get returns one user.
func (s *ProfileService) Get(ctx context.Context, email string) (*models.User, error) {
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.Get(ctx, storage.UserPath(models.UserKey(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user *models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	u := withUserDefaults(*user, email)
	return &u, nil
}

// ListUsers returns every registered user sorted by email.
func (s *ProfileService) ListUsers(ctx context.Context) ([]models.User, error) {
	raw, err := s.store.Get(ctx, storage.UsersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]models.User, 0, len(records))
	for key, body := range records {
		var u models.User
		if err := json.Unmarshal(body, &u); err != nil {
			slog.Warn("Skipping malformed user record", "user_key", key, "error", err)
			continue
		}
		if u.Email == "" {
			continue
		}
		users = append(users, withUserDefaults(u, u.Email))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// Delete removes the user's profile. Group memberships are left to each group's members.
func (s *ProfileService) Delete(ctx context.Context, email string) error {
	email, err := identity.NormalizeEmail(email)
	if err != nil {
		return err
	}

	slog.Info("DeleteProfile request received", "email", email)

	if err := s.store.Delete(ctx, storage.UserPath(models.UserKey(email))); err != nil {
		slog.Error("DeleteProfile failed", "email", email, "error", err)
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func withUserDefaults(u models.User, email string) models.User {
	if u.Email == "" {
		u.Email = email
	}
	if u.DisplayName == "" {
		u.DisplayName = models.LocalPart(u.Email)
	}
	if u.Status == "" {
		u.Status = models.StatusOffline
	}
	return u
}
