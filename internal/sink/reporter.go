// File: internal/sink/reporter.go
package sink

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// HrefFunc reads the current link target of a thumbnail element.
type HrefFunc[N comparable] func(ctx context.Context, element N) (string, error)

// Reporter turns listener calls of a thumbnail manager into events. The kind
// is derived from what was last reported for the element: a first sighting is
// discovered, a different href is changed, and the same href is a refresh.
type Reporter[N comparable] struct {
	ctx     context.Context
	href    HrefFunc[N]
	builder Builder
	out     Sink
	logger  *zap.Logger

	mu   sync.Mutex
	last map[N]string
}

// NewReporter creates a Reporter. ctx bounds the href lookups.
func NewReporter[N comparable](ctx context.Context, href HrefFunc[N], b Builder, out Sink, logger *zap.Logger) *Reporter[N] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter[N]{
		ctx:     ctx,
		href:    href,
		builder: b,
		out:     out,
		logger:  logger.Named("reporter"),
		last:    make(map[N]string),
	}
}

// Report is a thumbnail.Listener.
func (r *Reporter[N]) Report(elements []N) {
	for _, el := range elements {
		href, err := r.href(r.ctx, el)
		if err != nil {
			r.logger.Debug("Could not read thumbnail link.", zap.Error(err))
		}

		r.mu.Lock()
		prev, seen := r.last[el]
		r.last[el] = href
		r.mu.Unlock()

		kind := KindDiscovered
		switch {
		case seen && prev != href:
			kind = KindChanged
		case seen:
			kind = KindRefresh
		}

		if err := r.out.Write(r.builder.Build(kind, href)); err != nil {
			r.logger.Warn("Failed to write event.", zap.Error(err))
		}
	}
}

// Prune forgets every element not in tracked.
func (r *Reporter[N]) Prune(tracked []N) {
	keep := make(map[N]struct{}, len(tracked))
	for _, n := range tracked {
		keep[n] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for n := range r.last {
		if _, ok := keep[n]; !ok {
			delete(r.last, n)
		}
	}
}

// Known is the number of elements with a remembered href.
func (r *Reporter[N]) Known() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.last)
}
