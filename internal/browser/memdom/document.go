// File: internal/browser/memdom/document.go
// Package memdom is an in-memory DOM backed by golang.org/x/net/html and
// goquery. It implements the thumbnail discovery page surface for HTML
// snapshots and lets callers mutate the tree the way page scripts would.
// Attribute observers fire synchronously on the mutating goroutine.
package memdom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// Document is a mutable parsed HTML page. Node identity is the *html.Node pointer.
type Document struct {
	mu        sync.RWMutex
	doc       *goquery.Document
	loaded    bool
	onLoad    []func()
	observers map[*html.Node]map[*observer]struct{}
	globals   map[string]any

	childHooks []func()
}

var _ thumbnail.Page[*html.Node] = (*Document)(nil)

// Parse reads an HTML document. The page starts out unloaded; call FireLoad
// once "scripts" have run, or use Load.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	return &Document{
		doc:       doc,
		observers: make(map[*html.Node]map[*observer]struct{}),
		globals:   make(map[string]any),
	}, nil
}

// Load parses r and marks the page loaded.
func Load(r io.Reader) (*Document, error) {
	d, err := Parse(r)
	if err != nil {
		return nil, err
	}
	d.loaded = true
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("memdom: invalid selector %q: %w", selector, err)
	}
	return m, nil
}

// QueryAll returns every element matching selector in document order.
func (d *Document) QueryAll(_ context.Context, selector string) ([]*html.Node, error) {
	matcher, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.doc.FindMatcher(matcher).Nodes, nil
}

// QueryOne returns the first descendant of root matching selector. Like
// Element.querySelector, ancestors of root take part in matching.
func (d *Document) QueryOne(_ context.Context, root *html.Node, selector string) (*html.Node, bool, error) {
	matcher, err := compile(selector)
	if err != nil {
		return nil, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	found := goquery.NewDocumentFromNode(root).FindMatcher(matcher).First()
	if found.Length() == 0 {
		return nil, false, nil
	}
	return found.Get(0), true, nil
}

// Contains reports whether n is attached below the document body.
func (d *Document) Contains(_ context.Context, n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	body := d.body()
	if body == nil || n == nil {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p == body {
			return true
		}
	}
	return false
}

func (d *Document) body() *html.Node {
	if sel := d.doc.Find("body"); sel.Length() > 0 {
		return sel.Get(0)
	}
	return nil
}

// Loaded reports whether FireLoad ran.
func (d *Document) Loaded(context.Context) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// OnLoad queues fn for the load event. On an already loaded page fn runs
// right away so a hook registered after a racing FireLoad is not lost.
func (d *Document) OnLoad(fn func()) {
	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		fn()
		return
	}
	d.onLoad = append(d.onLoad, fn)
	d.mu.Unlock()
}

// FireLoad marks the page loaded and runs queued load hooks once.
func (d *Document) FireLoad() {
	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		return
	}
	d.loaded = true
	hooks := d.onLoad
	d.onLoad = nil
	d.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Attr returns an attribute of n.
func (d *Document) Attr(n *html.Node, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
