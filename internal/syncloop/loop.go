// Package syncloop polls the active conversation and hands merged timelines to a
// renderer. Only results for the currently active conversation are rendered: each
// cycle carries the generation it was started under and is dropped on the
// rendering goroutine if the loop has since been restarted or stopped.
package syncloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmynk/pollchat/internal/metrics"
	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/storage"
	"github.com/mmynk/pollchat/internal/timeline"
)

// DefaultPeriod is the polling interval used when none is configured.
const DefaultPeriod = time.Second

// Fetcher retrieves the raw message container of a conversation.
type Fetcher interface {
	Fetch(ctx context.Context, key models.ConversationKey) ([]byte, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, key models.ConversationKey) ([]byte, error)

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, key models.ConversationKey) ([]byte, error) {
	return f(ctx, key)
}

// StoreFetcher reads messages/{key} from store.
func StoreFetcher(store storage.Store) Fetcher {
	return FetchFunc(func(ctx context.Context, key models.ConversationKey) ([]byte, error) {
		return store.Get(ctx, storage.ConversationPath(key.String()))
	})
}

// Renderer displays a timeline. It is only ever called through the Dispatcher.
type Renderer interface {
	Render(key models.ConversationKey, items []timeline.Item)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(key models.ConversationKey, items []timeline.Item)

// Render calls f.
func (f RenderFunc) Render(key models.ConversationKey, items []timeline.Item) {
	f(key, items)
}

// Option configures a Loop.
type Option func(*Loop)

// WithPeriod sets the polling interval. Non-positive values keep the default.
func WithPeriod(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.period = d
		}
	}
}

// WithLocation sets the time zone used for date separators.
func WithLocation(loc *time.Location) Option {
	return func(l *Loop) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithFetchTimeout bounds each fetch. Zero leaves fetches unbounded.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loop) { l.fetchTimeout = d }
}

type cycle struct {
	key models.ConversationKey
	gen uint64
}

// Loop polls one conversation at a time.
type Loop struct {
	fetcher      Fetcher
	renderer     Renderer
	dispatcher   Dispatcher
	period       time.Duration
	fetchTimeout time.Duration
	loc          *time.Location

	gen    atomic.Uint64
	active atomic.Pointer[cycle]

	mu     sync.Mutex // guards cancel
	cancel context.CancelFunc
}

// New creates a stopped loop.
func New(fetcher Fetcher, renderer Renderer, dispatcher Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		fetcher:    fetcher,
		renderer:   renderer,
		dispatcher: dispatcher,
		period:     DefaultPeriod,
		loc:        time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins polling key, replacing any conversation being polled. The first fetch
// happens immediately.
func (l *Loop) Start(key models.ConversationKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	c := &cycle{key: key, gen: l.gen.Add(1)}
	l.active.Store(c)

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	slog.Debug("Sync loop started", "conversation_key", key, "generation", c.gen)
	go l.run(ctx, c)
}

// Stop cancels polling. Once Stop returns no render for the stopped conversation begins,
// even if its fetch is still in flight.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.gen.Add(1)
	if prev := l.active.Swap(nil); prev != nil {
		slog.Debug("Sync loop stopped", "conversation_key", prev.key, "generation", prev.gen)
	}
}

// Active returns the key being polled, if any.
func (l *Loop) Active() (models.ConversationKey, bool) {
	c := l.active.Load()
	if c == nil {
		return "", false
	}
	return c.key, true
}

func (l *Loop) current(c *cycle) bool {
	cur := l.active.Load()
	return cur != nil && cur.gen == c.gen && cur.key == c.key && l.gen.Load() == c.gen
}

func (l *Loop) run(ctx context.Context, c *cycle) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.tick(ctx, c)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, c)
		}
	}
}

func (l *Loop) tick(ctx context.Context, c *cycle) {
	if ctx.Err() != nil {
		return
	}
	metrics.SyncTicks.Inc()

	fetchCtx := ctx
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := l.fetcher.Fetch(fetchCtx, c.key)
	metrics.SyncFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		metrics.SyncFetchErrors.Inc()
		slog.Warn("Fetch conversation failed",
			"conversation_key", c.key,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}

	items := timeline.Merge(raw, l.loc)
	l.dispatcher.Dispatch(func() {
		if !l.current(c) {
			metrics.SyncStaleResults.Inc()
			slog.Debug("Stale timeline dropped", "conversation_key", c.key, "generation", c.gen)
			return
		}
		metrics.SyncRenders.Inc()
		l.renderer.Render(c.key, items)
	})
}
