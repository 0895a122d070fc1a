package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmynk/pollchat/internal/auth"
	"github.com/mmynk/pollchat/internal/config"
	"github.com/mmynk/pollchat/internal/identity"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/service"
	"github.com/mmynk/pollchat/internal/session"
	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/storage/httpstore"
	"github.com/mmynk/pollchat/internal/storage/memory"
	"github.com/mmynk/pollchat/internal/syncloop"
	"github.com/mmynk/pollchat/internal/timeline"
)

// groupTargetPrefix marks a command target as a group ID rather than an email.
const groupTargetPrefix = "group:"

// noView discards renders for commands that never select a conversation.
var noView = session.ViewFunc(func(models.Conversation, []timeline.Item) {})

// openStore connects to the configured document store.
func openStore(c *config.Config) (storage.Store, error) {
	if c.Client.StoreURL == "memory" {
		return memory.New(), nil
	}

	token := c.Client.StoreToken
	if token == "" && c.Server.TokenSecret != "" {
		t, err := auth.NewJWTManager(c.Server.TokenSecret, c.Server.TokenTTL).Generate(c.Client.User)
		if err != nil {
			return nil, err
		}
		token = t
	}

	return httpstore.New(c.Client.StoreURL,
		httpstore.WithHTTPClient(&http.Client{Timeout: c.Client.HTTPTimeout}),
		httpstore.WithRateLimit(c.Client.RateLimitRPS, c.Client.RateLimitBurst),
		httpstore.WithToken(token),
	)
}

// openSession connects to the store and creates a session for the configured user.
func openSession(view session.View, d syncloop.Dispatcher) (*session.Session, storage.Store, error) {
	if cfg.Client.User == "" {
		return nil, nil, fmt.Errorf("no user configured: pass --user or set CHAT_USER")
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	sess, err := session.New(store, cfg.Client.User, view, d,
		session.WithLoopOptions(
			syncloop.WithPeriod(cfg.Client.PollInterval),
			syncloop.WithFetchTimeout(cfg.Client.FetchTimeout),
		),
		session.WithServiceOptions(service.WithUniqueRecordKeys(cfg.Client.UniqueRecordKeys)),
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return sess, store, nil
}

// resolveTarget turns "group:ID" or an email into a conversation.
func resolveTarget(ctx context.Context, sess *session.Session, target string) (models.Conversation, error) {
	if id, ok := strings.CutPrefix(target, groupTargetPrefix); ok {
		group, err := sess.Groups().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !group.HasMember(sess.Self()) {
			return nil, fmt.Errorf("%s: %w", id, service.ErrNotMember)
		}
		return models.GroupChat{Group: *group}, nil
	}

	email, err := identity.NormalizeEmail(target)
	if err != nil {
		return nil, err
	}
	if u, err := sess.Profiles().Get(ctx, email); err == nil {
		return models.Direct{Peer: *u}, nil
	}
	return models.Direct{Peer: models.User{Email: email}}, nil
}
