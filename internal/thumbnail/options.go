// File: internal/thumbnail/options.go
package thumbnail

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultSelector      = "ytd-thumbnail, ytd-playlist-thumbnail"
	DefaultAltSelector   = "div.thumbnail"
	DefaultLinkSelector  = "ytd-thumbnail a"
	DefaultLinkAttribute = "href"

	// DefaultAltLinkSelector finds the link inside an alternate layout thumbnail.
	DefaultAltLinkSelector = "a"

	// DefaultDebounce is the minimum spacing between two actual scans.
	DefaultDebounce = 50 * time.Millisecond
	// DefaultGCInterval is the minimum spacing between two collections.
	DefaultGCInterval = 5000 * time.Millisecond
	// DefaultConfigReadyTimeout bounds the wait on the config-ready probe.
	DefaultConfigReadyTimeout = 5000 * time.Millisecond
	// DefaultConfigReadyInterval is how often the config-ready probe is polled.
	DefaultConfigReadyInterval = 10 * time.Millisecond
)

type options struct {
	clock               clockwork.Clock
	logger              *zap.Logger
	flavor              FlavorProbe
	linkSelector        string
	altLinkSelector     string
	linkAttribute       string
	debounce            time.Duration
	gcInterval          time.Duration
	configReadyTimeout  time.Duration
	configReadyInterval time.Duration
}

// Option configures a Manager.
type Option func(*options)

func defaultOptions() options {
	return options{
		clock:               clockwork.NewRealClock(),
		logger:              zap.NewNop(),
		flavor:              func() Flavor { return FlavorMain },
		linkSelector:        DefaultLinkSelector,
		altLinkSelector:     DefaultAltLinkSelector,
		linkAttribute:       DefaultLinkAttribute,
		debounce:            DefaultDebounce,
		gcInterval:          DefaultGCInterval,
		configReadyTimeout:  DefaultConfigReadyTimeout,
		configReadyInterval: DefaultConfigReadyInterval,
	}
}

// WithClock injects the clock used for debounce, GC and readiness waits.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the parent logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFlavorProbe sets the site flavor probe. It is consulted on every scan.
func WithFlavorProbe(p FlavorProbe) Option {
	return func(o *options) {
		if p != nil {
			o.flavor = p
		}
	}
}

// WithLink overrides the descendant link selector and the watched attribute.
// Empty values keep the defaults.
func WithLink(selector, attribute string) Option {
	return func(o *options) {
		if selector != "" {
			o.linkSelector = selector
		}
		if attribute != "" {
			o.linkAttribute = attribute
		}
	}
}

// WithAltLink overrides the link selector used on the alternate layout.
func WithAltLink(selector string) Option {
	return func(o *options) {
		if selector != "" {
			o.altLinkSelector = selector
		}
	}
}

// WithTiming overrides the debounce window and the GC interval.
// Non-positive values keep the defaults.
func WithTiming(debounce, gcInterval time.Duration) Option {
	return func(o *options) {
		if debounce > 0 {
			o.debounce = debounce
		}
		if gcInterval > 0 {
			o.gcInterval = gcInterval
		}
	}
}

// WithConfigReadyWait overrides the config-ready wait bounds.
func WithConfigReadyWait(timeout, interval time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.configReadyTimeout = timeout
		}
		if interval > 0 {
			o.configReadyInterval = interval
		}
	}
}
