// File: internal/thumbnail/manager.go
// Package thumbnail discovers video thumbnail elements on a live page and
// reports new ones, plus ones whose link target changed, to a listener.
//
// All state lives in a Manager. Scans are triggered externally through
// RequestScan, which may be called on every DOM mutation: calls closer than
// the debounce window collapse into at most one deferred retry.
package thumbnail

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/thumbwatch/internal/waiter"
)

// Hooks is the registration passed to SetListener.
type Hooks[N comparable] struct {
	// Listener receives newly discovered elements and changed ones.
	Listener Listener[N]
	// OnInitialLoad runs once the page has loaded (or immediately if it already has).
	OnInitialLoad func()
	// ConfigReady gates the first scan on caller configuration.
	ConfigReady func() bool
	// Selector and AltSelector override the defaults when non-empty.
	Selector    string
	AltSelector string
}

// Manager owns the registry of tracked elements and the scan scheduler.
type Manager[N comparable] struct {
	page   Page[N]
	opts   options
	clock  clockwork.Clock
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	handled     map[N]Observer[N]
	listener    Listener[N]
	selector    string
	altSelector string
	lastScan    time.Time
	lastGC      time.Time
	retry       clockwork.Timer
	closed      bool

	// throttles repeated query failure warnings
	failures rate.Sometimes
}

// New creates a Manager bound to page. Nothing is scanned until SetListener
// or RequestScan is called.
func New[N comparable](page Page[N], opts ...Option) *Manager[N] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager[N]{
		page:        page,
		opts:        o,
		clock:       o.clock,
		logger:      o.logger.Named("thumbnail"),
		ctx:         ctx,
		cancel:      cancel,
		handled:     make(map[N]Observer[N]),
		selector:    DefaultSelector,
		altSelector: DefaultAltSelector,
		failures:    rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// SetListener registers hooks and primes the initial scans. The listener
// replaces any previous one; events from before registration are not queued.
// Selectors are fixed from here on.
func (m *Manager[N]) SetListener(h Hooks[N]) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.listener = h.Listener
	if h.Selector != "" {
		m.selector = h.Selector
	}
	if h.AltSelector != "" {
		m.altSelector = h.AltSelector
	}
	m.mu.Unlock()

	onLoad := func() {
		if h.OnInitialLoad != nil {
			h.OnInitialLoad()
		}
		// The flavor is only knowable once page state initializes.
		m.spawn(func(ctx context.Context) {
			flavor, err := waiter.WaitFor(ctx, m.opts.flavor,
				func(f Flavor) bool { return f != FlavorUnknown },
				waiter.WithClock(m.clock))
			if err != nil {
				m.logger.Debug("Site flavor never resolved.", zap.Error(err))
				return
			}
			if flavor == FlavorAlternate {
				m.RequestScan()
			}
		})
	}

	if m.page.Loaded(m.ctx) {
		onLoad()
	} else {
		m.page.OnLoad(onLoad)
	}

	if h.ConfigReady != nil {
		m.spawn(func(ctx context.Context) {
			_, err := waiter.WaitFor(ctx, h.ConfigReady, nil,
				waiter.WithClock(m.clock),
				waiter.WithTimeout(m.opts.configReadyTimeout),
				waiter.WithInterval(m.opts.configReadyInterval))
			if err != nil {
				m.logger.Debug("Config never became ready.", zap.Error(err))
				return
			}
			m.RequestScan()
		})
	}
}

// RequestScan asks for a re-scan. Safe to call arbitrarily often: calls within
// the debounce window of the last scan are dropped or folded into a single
// retry fired one window later.
func (m *Manager[N]) RequestScan() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if m.retry != nil || m.clock.Since(m.lastScan) < m.opts.debounce {
		if m.retry == nil {
			m.retry = m.clock.AfterFunc(m.opts.debounce, m.fireRetry)
		}
		m.mu.Unlock()
		return
	}

	m.lastScan = m.clock.Now()
	found, ok := m.scanLocked(m.ctx)
	listener := m.listener
	m.mu.Unlock()

	if ok && listener != nil {
		listener(found)
	}
}

func (m *Manager[N]) fireRetry() {
	m.mu.Lock()
	m.retry = nil
	m.mu.Unlock()
	m.RequestScan()
}

// scanLocked queries the page, registers new elements and, when due,
// collects detached ones. It returns the newly registered elements and
// whether the query succeeded.
func (m *Manager[N]) scanLocked(ctx context.Context) ([]N, bool) {
	// Materialized before any insertion so this pass never collects what it just found.
	notNew := make([]N, 0, len(m.handled))
	for n := range m.handled {
		notNew = append(notNew, n)
	}

	selector := m.selector
	if m.opts.flavor() == FlavorAlternate {
		selector = m.altSelector
	}

	nodes, err := m.page.QueryAll(ctx, selector)
	if err != nil {
		m.failures.Do(func() {
			m.logger.Warn("Thumbnail query failed.", zap.String("selector", selector), zap.Error(err))
		})
		return nil, false
	}

	found := make([]N, 0)
	for _, n := range nodes {
		if _, ok := m.handled[n]; ok {
			continue
		}
		found = append(found, n)
		m.handled[n] = m.watch(ctx, n)
	}

	if m.clock.Since(m.lastGC) > m.opts.gcInterval {
		m.collectLocked(ctx, notNew)
		m.lastGC = m.clock.Now()
	}

	if len(found) > 0 {
		m.logger.Debug("Scan found thumbnails.",
			zap.Int("new", len(found)), zap.Int("tracked", len(m.handled)))
	}
	return found, true
}

// collectLocked drops every candidate that left the document.
func (m *Manager[N]) collectLocked(ctx context.Context, candidates []N) {
	removed := 0
	for _, n := range candidates {
		if m.page.Contains(ctx, n) {
			continue
		}
		if obs, ok := m.handled[n]; ok {
			obs.Disconnect()
			delete(m.handled, n)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Collected detached thumbnails.", zap.Int("removed", removed))
	}
}

// Tracked returns a snapshot of the registry keys.
func (m *Manager[N]) Tracked() []N {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keysLocked()
}

// Len is the registry size.
func (m *Manager[N]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handled)
}

func (m *Manager[N]) keysLocked() []N {
	keys := make([]N, 0, len(m.handled))
	for n := range m.handled {
		keys = append(keys, n)
	}
	return keys
}

// spawn runs fn on a goroutine tied to the manager's lifetime.
func (m *Manager[N]) spawn(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
}

// Close stops pending waits and the retry timer, disconnects every observer
// and empties the registry. It is idempotent.
//
// The context is cancelled before taking the lock so a scan blocked in a page
// query returns and releases it.
func (m *Manager[N]) Close() {
	m.cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	for n, obs := range m.handled {
		obs.Disconnect()
		delete(m.handled, n)
	}
	m.listener = nil
	m.mu.Unlock()

	m.wg.Wait()
}
