// File: internal/browser/cdpdom/page.go
// Package cdpdom exposes a live Chrome tab, driven over the DevTools
// protocol, as a thumbnail discovery page.
//
// chromedp delivers target events on its own goroutine and forbids running
// CDP commands from that goroutine, so the listener only records events.
// Attribute and lifecycle events go through a bounded queue. Structural
// changes are coalesced into a flag that is never dropped. Run drains both and
// dispatches to observers and hooks; it must be running for observers, load
// hooks and mutation signals to work.
package cdpdom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/thumbwatch/internal/browser/extapi"
	"github.com/xkilldash9x/thumbwatch/internal/browser/session"
	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

const (
	// DefaultBindingName is the runtime binding the injected observer calls.
	DefaultBindingName = "__thumbwatchMutated"
	// DefaultQueueSize bounds the event queue between chromedp and Run.
	DefaultQueueSize = 1024
)

// Config tunes a Page.
type Config struct {
	// AltHosts are hostnames served by the alternate front end.
	AltHosts    []string
	BindingName string
	QueueSize   int
}

// Page is a chromedp tab implementing thumbnail.Page[cdp.NodeID].
type Page struct {
	// tab carries the chromedp target; Run stops when it is done.
	tab     context.Context
	backend backend
	logger  *zap.Logger
	cfg     Config

	events  chan any
	dropped atomic.Int64
	// structural is set by the listener for every child-list change, document
	// update or binding call; wake nudges Run to consume it.
	structural atomic.Bool
	wake       chan struct{}

	mu sync.Mutex
	// root is the cached document node; rootGen counts invalidations so a
	// fetch that raced a document update does not cache a stale id.
	root      cdp.NodeID
	rootGen   uint64
	url       string
	loaded    bool
	onLoad    []func()
	observers map[cdp.NodeID]map[*observer]struct{}
	mutated   []func()
}

var (
	_ thumbnail.Page[cdp.NodeID] = (*Page)(nil)
	_ extapi.Evaluator           = (*Page)(nil)
)

// New attaches to the chromedp tab in tab and starts recording its events.
// Commands run through exec, or directly beneath tab when exec is nil.
func New(tab context.Context, exec session.ActionExecutor, logger *zap.Logger, cfg Config) *Page {
	if exec == nil {
		exec = session.NewTabExecutor(tab)
	}
	p := newPage(tab, chromeBackend{exec: exec}, logger, cfg)
	chromedp.ListenTarget(tab, p.enqueue)
	return p
}

func newPage(tab context.Context, b backend, logger *zap.Logger, cfg Config) *Page {
	if cfg.BindingName == "" {
		cfg.BindingName = DefaultBindingName
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		tab:       tab,
		backend:   b,
		logger:    logger.Named("cdpdom"),
		cfg:       cfg,
		events:    make(chan any, cfg.QueueSize),
		wake:      make(chan struct{}, 1),
		observers: make(map[cdp.NodeID]map[*observer]struct{}),
	}
}

// Install registers the mutation binding and injects the observer script
// into the current document and every future one. Call it before navigating.
func (p *Page) Install(ctx context.Context) error {
	if err := p.backend.Install(ctx, p.cfg.BindingName, observerScript(p.cfg.BindingName)); err != nil {
		return fmt.Errorf("cdpdom: install observer: %w", err)
	}
	p.logger.Debug("Mutation observer installed.", zap.String("binding", p.cfg.BindingName))
	return nil
}

// document returns the cached root node id, fetching the full tree when the
// cache was invalidated by a document update.
func (p *Page) document(ctx context.Context) (cdp.NodeID, error) {
	p.mu.Lock()
	root, gen := p.root, p.rootGen
	p.mu.Unlock()
	if root != 0 {
		return root, nil
	}

	root, err := p.backend.Document(ctx)
	if err != nil {
		return 0, fmt.Errorf("cdpdom: get document: %w", err)
	}

	p.mu.Lock()
	if p.rootGen == gen {
		p.root = root
	}
	p.mu.Unlock()
	return root, nil
}

// invalidate drops the cached root if it is still stale.
func (p *Page) invalidate(stale cdp.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stale == 0 || p.root == stale {
		p.root = 0
		p.rootGen++
	}
}

// QueryAll runs querySelectorAll on the document. A failure against the
// cached root refetches the document and retries once, since the cached id
// goes stale whenever the page swaps documents.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]cdp.NodeID, error) {
	for attempt := 0; ; attempt++ {
		root, err := p.document(ctx)
		if err != nil {
			return nil, err
		}
		ids, err := p.backend.QuerySelectorAll(ctx, root, selector)
		if err == nil {
			return ids, nil
		}
		if attempt > 0 || ctx.Err() != nil {
			return nil, fmt.Errorf("cdpdom: query %q: %w", selector, err)
		}
		p.logger.Debug("Query against cached document failed; refetching.",
			zap.String("selector", selector), zap.Error(err))
		p.invalidate(root)
	}
}

// QueryOne runs querySelector scoped to root.
func (p *Page) QueryOne(ctx context.Context, root cdp.NodeID, selector string) (cdp.NodeID, bool, error) {
	id, err := p.backend.QuerySelector(ctx, root, selector)
	if err != nil {
		return 0, false, fmt.Errorf("cdpdom: query %q under %d: %w", selector, root, err)
	}
	return id, id != 0, nil
}

// Attribute reads one attribute of a node.
func (p *Page) Attribute(ctx context.Context, id cdp.NodeID, name string) (string, bool, error) {
	attrs, err := p.backend.Attributes(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("cdpdom: attributes of %d: %w", id, err)
	}
	value, ok := attributeValue(attrs, name)
	return value, ok, nil
}

// attributeValue looks name up in the flat name/value list CDP returns.
func attributeValue(attrs []string, name string) (string, bool) {
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true
		}
	}
	return "", false
}

// Contains resolves the node and asks the page whether the body still holds
// it. A node the backend no longer knows counts as detached.
func (p *Page) Contains(ctx context.Context, id cdp.NodeID) bool {
	attached, err := p.backend.Attached(ctx, id)
	if err != nil {
		p.logger.Debug("Containment check failed; treating node as detached.",
			zap.Int64("node_id", int64(id)), zap.Error(err))
		return false
	}
	return attached
}

// Loaded reports whether the load event fired, falling back to
// document.readyState for pages loaded before the listener attached.
func (p *Page) Loaded(ctx context.Context) bool {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if loaded {
		return true
	}

	var complete bool
	if err := p.Evaluate(ctx, `document.readyState === "complete"`, &complete); err != nil {
		return false
	}
	if complete {
		p.mu.Lock()
		p.loaded = true
		p.mu.Unlock()
	}
	return complete
}

// OnLoad runs fn on the next load event, once.
func (p *Page) OnLoad(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoad = append(p.onLoad, fn)
}

// OnMutation registers fn for structural document changes, reported by the
// injected observer and by DOM child-node events.
func (p *Page) OnMutation(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutated = append(p.mutated, fn)
}

// Evaluate runs expression in the page and decodes the by-value result.
func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	if err := p.backend.Evaluate(ctx, expression, out); err != nil {
		return fmt.Errorf("cdpdom: evaluate: %w", err)
	}
	return nil
}

// URL is the main frame URL as of the last navigation event.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// SetURL seeds the main frame URL, for callers that navigated before Run.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

// Dropped is the number of attribute and lifecycle events discarded because
// the queue was full. Structural changes are never dropped.
func (p *Page) Dropped() int64 {
	return p.dropped.Load()
}
