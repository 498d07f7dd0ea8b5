// File: internal/browser/memdom/mutation.go
package memdom

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

type observer struct {
	doc       *Document
	cb        func([]thumbnail.Mutation)
	node      *html.Node
	attribute string
}

// NewObserver returns an attribute observer that is idle until Observe.
func (d *Document) NewObserver(cb func([]thumbnail.Mutation)) thumbnail.Observer[*html.Node] {
	return &observer{doc: d, cb: cb}
}

// Observe watches node for changes of one attribute. A second call moves the
// observer to the new target.
func (o *observer) Observe(node *html.Node, attribute string) {
	d := o.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unregisterLocked(o)
	o.node = node
	o.attribute = attribute
	set, ok := d.observers[node]
	if !ok {
		set = make(map[*observer]struct{})
		d.observers[node] = set
	}
	set[o] = struct{}{}
}

// Disconnect is idempotent.
func (o *observer) Disconnect() {
	o.doc.mu.Lock()
	defer o.doc.mu.Unlock()
	o.doc.unregisterLocked(o)
	o.node = nil
}

func (d *Document) unregisterLocked(o *observer) {
	if o.node == nil {
		return
	}
	if set, ok := d.observers[o.node]; ok {
		delete(set, o)
		if len(set) == 0 {
			delete(d.observers, o.node)
		}
	}
}

// observersLocked returns the callbacks interested in name on node.
func (d *Document) observersLocked(node *html.Node, name string) []func([]thumbnail.Mutation) {
	var cbs []func([]thumbnail.Mutation)
	for o := range d.observers[node] {
		if o.attribute == name {
			cbs = append(cbs, o.cb)
		}
	}
	return cbs
}

func deliver(cbs []func([]thumbnail.Mutation), name string) {
	batch := []thumbnail.Mutation{{Type: thumbnail.MutationAttributes, Attribute: name}}
	for _, cb := range cbs {
		cb(batch)
	}
}

// SetAttr sets an attribute on node and notifies its observers.
func (d *Document) SetAttr(node *html.Node, name, value string) {
	d.mu.Lock()
	replaced := false
	for i := range node.Attr {
		if node.Attr[i].Key == name {
			node.Attr[i].Val = value
			replaced = true
			break
		}
	}
	if !replaced {
		node.Attr = append(node.Attr, html.Attribute{Key: name, Val: value})
	}
	cbs := d.observersLocked(node, name)
	d.mu.Unlock()

	deliver(cbs, name)
}

// RemoveAttr deletes an attribute. Observers are notified only if it existed.
func (d *Document) RemoveAttr(node *html.Node, name string) {
	d.mu.Lock()
	idx := -1
	for i, a := range node.Attr {
		if a.Key == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return
	}
	node.Attr = append(node.Attr[:idx], node.Attr[idx+1:]...)
	cbs := d.observersLocked(node, name)
	d.mu.Unlock()

	deliver(cbs, name)
}

// Remove detaches node from its parent. The node keeps its identity so a
// later Contains reports it detached.
func (d *Document) Remove(node *html.Node) {
	d.mu.Lock()
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
	d.mu.Unlock()
	d.childListChanged()
}

// AppendHTML parses fragment and appends it to every element matching
// parentSelector. It returns the number of parents that received it.
func (d *Document) AppendHTML(parentSelector, fragment string) (int, error) {
	matcher, err := compile(parentSelector)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	parents := d.doc.FindMatcher(matcher)
	n := parents.Length()
	if n > 0 {
		parents.AppendHtml(fragment)
	}
	d.mu.Unlock()

	if n == 0 {
		return 0, fmt.Errorf("memdom: no element matches %q", parentSelector)
	}
	d.childListChanged()
	return n, nil
}

// OnChildList registers fn to run after every structural change made through
// Remove or AppendHTML. Callers typically hook a scan request here.
func (d *Document) OnChildList(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.childHooks = append(d.childHooks, fn)
}

func (d *Document) childListChanged() {
	d.mu.RLock()
	hooks := append([]func(){}, d.childHooks...)
	d.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}
