// File: internal/browser/cdpdom/events.go
package cdpdom

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"go.uber.org/zap"

	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// enqueue is the chromedp listener. It must not block or issue commands.
func (p *Page) enqueue(ev any) {
	switch e := ev.(type) {
	case *dom.EventChildNodeInserted, *dom.EventChildNodeRemoved:
		p.markStructural()
		return
	case *dom.EventDocumentUpdated:
		// Node ids from the old document are invalid from here on.
		p.invalidate(0)
		p.markStructural()
		return
	case *runtime.EventBindingCalled:
		if e.Name == p.cfg.BindingName {
			p.markStructural()
		}
		return
	case *dom.EventAttributeModified, *dom.EventAttributeRemoved,
		*page.EventLoadEventFired, *page.EventFrameNavigated:
	default:
		return
	}

	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Run dispatches queued events until ctx or the tab is done.
func (p *Page) Run(ctx context.Context) error {
	p.logger.Debug("Event pump started.")
	defer p.logger.Debug("Event pump stopped.", zap.Int64("dropped", p.dropped.Load()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.tab.Done():
			return nil
		case ev := <-p.events:
			p.dispatch(ev)
		case <-p.wake:
			if p.structural.Swap(false) {
				p.signalMutation()
			}
		}
	}
}

// markStructural records a structural change for Run. Repeated changes
// before Run catches up collapse into one signal.
func (p *Page) markStructural() {
	p.structural.Store(true)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Page) dispatch(ev any) {
	switch e := ev.(type) {
	case *dom.EventAttributeModified:
		p.attributeChanged(e.NodeID, e.Name)
	case *dom.EventAttributeRemoved:
		p.attributeChanged(e.NodeID, e.Name)

	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			p.mu.Lock()
			p.url = e.Frame.URL
			p.loaded = false
			p.mu.Unlock()
		}
	case *page.EventLoadEventFired:
		p.mu.Lock()
		p.loaded = true
		hooks := p.onLoad
		p.onLoad = nil
		p.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	}
}

func (p *Page) attributeChanged(id cdp.NodeID, name string) {
	p.mu.Lock()
	var cbs []func([]thumbnail.Mutation)
	for o := range p.observers[id] {
		if o.attribute == name {
			cbs = append(cbs, o.cb)
		}
	}
	p.mu.Unlock()

	if len(cbs) == 0 {
		return
	}
	batch := []thumbnail.Mutation{{Type: thumbnail.MutationAttributes, Attribute: name}}
	for _, cb := range cbs {
		cb(batch)
	}
}

func (p *Page) signalMutation() {
	p.mu.Lock()
	hooks := append([]func(){}, p.mutated...)
	p.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

type observer struct {
	page      *Page
	cb        func([]thumbnail.Mutation)
	node      cdp.NodeID
	attribute string
}

// NewObserver returns an observer that is idle until Observe.
func (p *Page) NewObserver(cb func([]thumbnail.Mutation)) thumbnail.Observer[cdp.NodeID] {
	return &observer{page: p, cb: cb}
}

func (o *observer) Observe(node cdp.NodeID, attribute string) {
	p := o.page
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregisterLocked(o)
	o.node = node
	o.attribute = attribute
	set, ok := p.observers[node]
	if !ok {
		set = make(map[*observer]struct{})
		p.observers[node] = set
	}
	set[o] = struct{}{}
}

func (o *observer) Disconnect() {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	o.page.unregisterLocked(o)
	o.node = 0
}

func (p *Page) unregisterLocked(o *observer) {
	if o.node == 0 {
		return
	}
	if set, ok := p.observers[o.node]; ok {
		delete(set, o)
		if len(set) == 0 {
			delete(p.observers, o.node)
		}
	}
}

// observed is the number of nodes with at least one live observer.
func (p *Page) observed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}
