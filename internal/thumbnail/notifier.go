// File: internal/thumbnail/notifier.go
package thumbnail

import (
	"context"

	"go.uber.org/zap"
)

// watch creates the observer for a newly tracked element. When the element
// has no link descendant the observer stays idle but is still registered.
func (m *Manager[N]) watch(ctx context.Context, element N) Observer[N] {
	obs := m.page.NewObserver(func(batch []Mutation) {
		m.onMutations(element, batch)
	})

	link, ok, err := m.page.QueryOne(ctx, element, m.linkSelector())
	if err != nil {
		m.logger.Debug("Link lookup failed; thumbnail tracked unobserved.", zap.Error(err))
		return obs
	}
	if ok {
		obs.Observe(link, m.opts.linkAttribute)
	}
	return obs
}

// linkSelector picks the link selector for the active layout.
func (m *Manager[N]) linkSelector() string {
	if m.opts.flavor() == FlavorAlternate {
		return m.opts.altLinkSelector
	}
	return m.opts.linkSelector
}

// onMutations reports the owning element once per batch, on the first
// mutation of the link attribute.
func (m *Manager[N]) onMutations(element N, batch []Mutation) {
	for _, mut := range batch {
		if mut.Type != MutationAttributes || mut.Attribute != m.opts.linkAttribute {
			continue
		}

		m.mu.Lock()
		listener := m.listener
		_, tracked := m.handled[element]
		m.mu.Unlock()

		if tracked && listener != nil {
			listener([]N{element})
		}
		return
	}
}

// NotifyAll invokes the listener once with every tracked element, for callers
// that must re-process everything after a global state change.
func (m *Manager[N]) NotifyAll() {
	m.mu.Lock()
	listener := m.listener
	all := m.keysLocked()
	m.mu.Unlock()

	if listener != nil {
		listener(all)
	}
}
