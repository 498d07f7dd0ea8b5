// File: internal/thumbnail/fake_page_test.go
package thumbnail_test

import (
	"context"
	"errors"
	"sync"

	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// fakeNode is one element of the fake document.
type fakeNode struct {
	selectors map[string]bool
	link      int // 0 = no link descendant
	attached  bool
}

// fakePage is an in-memory thumbnail.Page keyed by int ids. Observer
// callbacks fire synchronously from fire.
type fakePage struct {
	mu        sync.Mutex
	order     []int
	nodes     map[int]*fakeNode
	loaded    bool
	onLoad    []func()
	observers []*fakeObserver
	queries   int
	queryErr  error
	// blocking holds QueryAll until its context ends; entered is signalled
	// once the query is waiting.
	blocking bool
	entered  chan struct{}
	// linkSelectors records the selector of every QueryOne call.
	linkSelectors []string
}

func newFakePage() *fakePage {
	return &fakePage{nodes: make(map[int]*fakeNode), loaded: true}
}

func (p *fakePage) add(id int, link int, selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := &fakeNode{selectors: make(map[string]bool), link: link, attached: true}
	for _, s := range selectors {
		n.selectors[s] = true
	}
	p.nodes[id] = n
	p.order = append(p.order, id)
}

func (p *fakePage) detach(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[id].attached = false
}

func (p *fakePage) queryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

func (p *fakePage) fireLoad() {
	p.mu.Lock()
	p.loaded = true
	fns := p.onLoad
	p.onLoad = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// fire delivers batch to every live observer watching node.
func (p *fakePage) fire(node int, batch ...thumbnail.Mutation) {
	p.mu.Lock()
	var targets []*fakeObserver
	for _, o := range p.observers {
		if o.node == node && o.observing && !o.disconnected {
			targets = append(targets, o)
		}
	}
	p.mu.Unlock()
	for _, o := range targets {
		o.cb(batch)
	}
}

func (p *fakePage) observerFor(node int) *fakeObserver {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range p.observers {
		if o.node == node {
			return o
		}
	}
	return nil
}

func (p *fakePage) QueryAll(ctx context.Context, selector string) ([]int, error) {
	p.mu.Lock()
	p.queries++
	if p.blocking {
		entered := p.entered
		p.mu.Unlock()
		if entered != nil {
			close(entered)
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	var out []int
	for _, id := range p.order {
		if n := p.nodes[id]; n.selectors[selector] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (p *fakePage) QueryOne(_ context.Context, root int, selector string) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linkSelectors = append(p.linkSelectors, selector)
	n, ok := p.nodes[root]
	if !ok {
		return 0, false, errors.New("unknown node")
	}
	return n.link, n.link != 0, nil
}

func (p *fakePage) Contains(_ context.Context, id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	return ok && n.attached
}

func (p *fakePage) Loaded(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *fakePage) OnLoad(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoad = append(p.onLoad, fn)
}

func (p *fakePage) NewObserver(cb func([]thumbnail.Mutation)) thumbnail.Observer[int] {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := &fakeObserver{page: p, cb: cb}
	p.observers = append(p.observers, o)
	return o
}

type fakeObserver struct {
	page         *fakePage
	cb           func([]thumbnail.Mutation)
	node         int
	attribute    string
	observing    bool
	disconnected bool
}

func (o *fakeObserver) Observe(node int, attribute string) {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	o.node = node
	o.attribute = attribute
	o.observing = true
}

func (o *fakeObserver) Disconnect() {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	o.disconnected = true
}

func (o *fakeObserver) isDisconnected() bool {
	o.page.mu.Lock()
	defer o.page.mu.Unlock()
	return o.disconnected
}

// recorder captures listener invocations.
type recorder struct {
	mu    sync.Mutex
	calls [][]int
}

func (r *recorder) listen(elements []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]int(nil), elements...)
	r.calls = append(r.calls, cp)
}

func (r *recorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.calls...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
