// File: internal/thumbnail/page.go
package thumbnail

import "context"

// MutationType mirrors the MutationRecord.type values a page can report.
type MutationType string

const (
	MutationAttributes MutationType = "attributes"
	MutationChildList  MutationType = "childList"
)

// Mutation is one record of an observer batch.
type Mutation struct {
	Type      MutationType
	Attribute string
}

// Observer watches a single node for attribute mutations and delivers them,
// batched, to the callback it was created with.
type Observer[N comparable] interface {
	// Observe starts watching node. attribute names the attribute the caller
	// cares about; implementations may still report others.
	Observe(node N, attribute string)
	// Disconnect stops delivery. Safe to call more than once.
	Disconnect()
}

// Page is the DOM surface the discovery loop scans. N is the node identity:
// two nodes are the same element iff they compare equal.
type Page[N comparable] interface {
	// QueryAll returns every element matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]N, error)
	// QueryOne returns the first descendant of root matching selector.
	QueryOne(ctx context.Context, root N, selector string) (N, bool, error)
	// Contains reports whether n is still attached to the document body.
	Contains(ctx context.Context, n N) bool
	// Loaded reports whether the page finished loading.
	Loaded(ctx context.Context) bool
	// OnLoad runs fn once when the page's load event fires.
	OnLoad(fn func())
	// NewObserver creates an idle observer that reports to cb.
	NewObserver(cb func([]Mutation)) Observer[N]
}

// Flavor is the page layout currently active.
type Flavor int

const (
	// FlavorUnknown means the page state needed to decide is not initialized yet.
	FlavorUnknown Flavor = iota
	// FlavorMain is the primary video site layout.
	FlavorMain
	// FlavorAlternate is the alternate front-end layout (Invidious).
	FlavorAlternate
)

func (f Flavor) String() string {
	switch f {
	case FlavorMain:
		return "main"
	case FlavorAlternate:
		return "alternate"
	default:
		return "unknown"
	}
}

// FlavorProbe reports the active layout.
type FlavorProbe func() Flavor

// Listener receives the elements relevant to a scan or a change.
type Listener[N comparable] func(elements []N)
