package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultEventBuffer = 64
	dropWarnInterval   = 5 * time.Second
	notifyTimeout      = 5 * time.Second
)

// Params are the collaborators of the engine
type Params struct {
	fx.In

	Logger     *zap.Logger
	Config     domain.Config
	Pages      domain.PageFetcher
	Images     domain.Fetcher
	Extractor  domain.Extractor
	Resolver   domain.QualityResolver
	Downloader domain.Downloader
	Processor  domain.ImageProcessor
	Notifier   domain.Notifier
}

// Engine orchestrates the grab pipeline.
// Every submitted page gets its own goroutine that owns the MediaItem;
// stages run in background goroutines and report back on channels.
type Engine struct {
	logger     *zap.Logger
	cfg        domain.Config
	pages      domain.PageFetcher
	images     domain.Fetcher
	extractor  domain.Extractor
	resolver   domain.QualityResolver
	downloader domain.Downloader
	processor  domain.ImageProcessor
	notifier   domain.Notifier

	events          chan domain.Event
	lastDropWarning atomic.Int64 // unix nanos, rate limits "event dropped" warnings
	now             func() time.Time

	mu      sync.RWMutex
	items   map[string]*actor
	order   []string
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup // actors and their stage goroutines
}

// NewEngine creates a new orchestration engine
func NewEngine(p Params) *Engine {
	return &Engine{
		logger:     p.Logger,
		cfg:        p.Config,
		pages:      p.Pages,
		images:     p.Images,
		extractor:  p.Extractor,
		resolver:   p.Resolver,
		downloader: p.Downloader,
		processor:  p.Processor,
		notifier:   p.Notifier,
		events:     make(chan domain.Event, defaultEventBuffer),
		now:        time.Now,
		items:      make(map[string]*actor),
	}
}

// Start makes the engine accept submissions. The context only bounds
// startup; item pipelines live until Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return domain.ErrStopped
	}
	if e.running {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true

	e.logger.Info("Engine started", zap.String("download_dir", e.cfg.GetDownloadDir()))
	return nil
}

// Stop cancels every running stage and waits for item goroutines to exit.
// The events channel is closed once they are gone.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return e.notifier.Close()
	}
	e.running = false
	e.stopped = true
	e.cancel()
	e.mu.Unlock()

	e.logger.Info("Engine stopping...")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		close(e.events)
	case <-ctx.Done():
		err = fmt.Errorf("waiting for item pipelines: %w", ctx.Err())
	}

	err = multierr.Append(err, e.notifier.Close())
	e.logger.Info("Engine stopped")
	return err
}

// Events streams item changes. Status changes are never dropped, so the
// channel must be drained while items are active.
func (e *Engine) Events() <-chan domain.Event {
	return e.events
}

// Submit registers a page URL and starts resolving it right away
func (e *Engine) Submit(pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", domain.ErrEmptyURL
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return "", domain.ErrStopped
	}

	now := e.now()
	a := newActor(e, domain.MediaItem{
		ID:        uuid.NewString(),
		PageURL:   pageURL,
		Status:    domain.StatusPending,
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
	})
	e.items[a.item.ID] = a
	e.order = append(e.order, a.item.ID)

	e.logger.Info("Item submitted", zap.String("id", a.item.ID), zap.String("url", pageURL))

	ctx := e.ctx
	e.spawn(func() { a.run(ctx) })
	return a.item.ID, nil
}

// Select picks a quality by its position in the item's quality list.
// An out of range index clears the current selection.
func (e *Engine) Select(id string, index int) error {
	return e.do(id, func(a *actor) error {
		return a.selectQuality(func(qs []domain.QualityOption) (string, bool) {
			if index < 0 || index >= len(qs) {
				return "", false
			}
			return qs[index].Label, true
		})
	})
}

// SelectLabel picks a quality by label, e.g. "720p"
func (e *Engine) SelectLabel(id, label string) error {
	return e.do(id, func(a *actor) error {
		return a.selectQuality(func(qs []domain.QualityOption) (string, bool) {
			for _, q := range qs {
				if q.Label == label {
					return label, true
				}
			}
			return "", false
		})
	})
}

// Download starts streaming the selected quality. It is also the entry
// point for retrying a failed download without resolving again.
func (e *Engine) Download(id string) error {
	return e.do(id, func(a *actor) error {
		return a.startDownload()
	})
}

// Retry re-runs the stage that failed
func (e *Engine) Retry(id string) error {
	return e.do(id, func(a *actor) error {
		return a.retry()
	})
}

// Item returns a snapshot of one item
func (e *Engine) Item(id string) (domain.MediaItem, error) {
	var item domain.MediaItem
	err := e.do(id, func(a *actor) error {
		item = a.snapshot()
		return nil
	})
	if errors.Is(err, domain.ErrStopped) {
		if a, lerr := e.lookup(id); lerr == nil {
			return a.final, nil
		}
	}
	return item, err
}

// Items returns snapshots of every item in submission order
func (e *Engine) Items() []domain.MediaItem {
	e.mu.RLock()
	ids := append([]string(nil), e.order...)
	e.mu.RUnlock()

	items := make([]domain.MediaItem, 0, len(ids))
	for _, id := range ids {
		if item, err := e.Item(id); err == nil {
			items = append(items, item)
		}
	}
	return items
}

func (e *Engine) lookup(id string) (*actor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return a, nil
}

// do runs fn on the goroutine that owns the item and waits for its result
func (e *Engine) do(id string, fn func(*actor) error) error {
	a, err := e.lookup(id)
	if err != nil {
		return err
	}

	cmd := command{apply: fn, reply: make(chan error, 1)}
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return domain.ErrStopped
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-a.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return domain.ErrStopped
		}
	}
}

func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// publish delivers an event. Status changes block until there is room;
// progress and cover events are dropped when the buffer is full.
func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if ev.Kind == domain.EventStatusChanged {
		select {
		case e.events <- ev:
		case <-ctx.Done():
		}
		return
	}

	select {
	case e.events <- ev:
	default:
		now := e.now().UnixNano()
		last := e.lastDropWarning.Load()
		if now-last > int64(dropWarnInterval) && e.lastDropWarning.CompareAndSwap(last, now) {
			e.logger.Warn("Event channel full, dropping events",
				zap.String("kind", string(ev.Kind)),
				zap.String("id", ev.Item.ID))
		}
	}
}

func (e *Engine) notify(summary, body string) {
	e.mu.RLock()
	ctx := e.ctx
	e.mu.RUnlock()

	e.spawn(func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, summary, body); err != nil {
			e.logger.Debug("Desktop notification failed", zap.Error(err))
		}
	})
}
