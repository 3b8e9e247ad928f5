package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/tableorder/internal/backendapi"
	"github.com/joao-fontenele/tableorder/internal/domain"
)

const (
	DefaultWatchInterval = 5 * time.Second
	defaultWatchIdle     = 2 * time.Minute
)

type OrderGetter interface {
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
}

// Watcher polls one order for the guest-facing status view. It keeps the last good value
// across failed polls and stops on its own once the order is completed or the backend reports
// it does not exist.
type Watcher struct {
	getter   OrderGetter
	id       int64
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	order    domain.Order
	loaded   bool
	lastErr  error
	lastRead time.Time

	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}
}

func NewWatcher(getter OrderGetter, id int64, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		getter:   getter,
		id:       id,
		interval: interval,
		logger:   logger,
		lastRead: time.Now(),
		first:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run polls until the order completes or is unknown to the backend, ctx is done, or nobody has
// read the watcher for its idle period. It returns nil unless ctx ended it.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if w.poll(ctx) {
			w.logger.Info("watcher stopped", "order_id", w.id)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if w.isIdle() {
			return nil
		}
	}
}

// poll reports whether the watcher is finished.
func (w *Watcher) poll(ctx context.Context) bool {
	order, err := w.getter.GetOrder(ctx, w.id)

	w.mu.Lock()
	defer w.mu.Unlock()
	defer w.firstOnce.Do(func() { close(w.first) })

	if err != nil {
		w.lastErr = err
		if errors.Is(err, backendapi.ErrNotFound) {
			w.loaded = false
			return true
		}
		if ctx.Err() == nil {
			w.logger.Warn("order status poll failed", "error", err, "order_id", w.id)
		}
		return false
	}
	w.order = order
	w.loaded = true
	w.lastErr = nil
	return order.Status.IsTerminal()
}

func (w *Watcher) isIdle() bool {
	if w.idle <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastRead) > w.idle
}

// Current returns the latest known order. Before any successful poll it returns the last error.
func (w *Watcher) Current() (domain.Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRead = time.Now()
	if !w.loaded {
		return domain.Order{}, w.lastErr
	}
	return w.order, nil
}

// Loaded is closed after the first poll finishes, successful or not.
func (w *Watcher) Loaded() <-chan struct{} {
	return w.first
}

func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Watchers shares one Watcher per order among concurrent guest requests.
type Watchers struct {
	getter   OrderGetter
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[int64]*Watcher
}

func NewWatchers(getter OrderGetter, interval time.Duration, logger *slog.Logger) *Watchers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watchers{
		getter:   getter,
		interval: interval,
		idle:     defaultWatchIdle,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[int64]*Watcher),
	}
}

// Status returns the latest known state of an order, starting a watcher on first use.
func (p *Watchers) Status(ctx context.Context, id int64) (domain.Order, error) {
	w := p.watcher(id)
	select {
	case <-w.Loaded():
	case <-ctx.Done():
		return domain.Order{}, ctx.Err()
	}
	return w.Current()
}

func (p *Watchers) watcher(id int64) *Watcher {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.watchers[id]; ok {
		return w
	}

	w := NewWatcher(p.getter, id, p.interval, p.logger)
	w.idle = p.idle
	p.watchers[id] = w

	go func() {
		_ = w.Run(p.ctx)
		p.mu.Lock()
		if p.watchers[id] == w {
			delete(p.watchers, id)
		}
		p.mu.Unlock()
	}()
	return w
}

func (p *Watchers) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

// Close stops every watcher.
func (p *Watchers) Close() {
	p.cancel()
}
