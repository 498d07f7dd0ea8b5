// File: internal/browser/session/session.go
// Package session launches Chrome through chromedp and owns one tab.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xkilldash9x/thumbwatch/internal/config"
	"github.com/xkilldash9x/thumbwatch/internal/waiter"
)

// startupTimeout bounds the liveness probe after launching the browser.
const startupTimeout = 30 * time.Second

// ErrNavigationTimeout is returned when a page does not finish loading in time.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Session is a launched browser with a single tab.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig
	clock  clockwork.Clock

	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	closeOnce sync.Once
}

// Option customizes a Session.
type Option func(*Session)

// WithClock sets the clock used for navigation timeouts.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// Flags returns the Chrome command line switches for cfg on the given GOOS,
// on top of chromedp's defaults. Values are either bool or string.
func Flags(cfg config.BrowserConfig, goos string) map[string]any {
	flags := map[string]any{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-gpu":               cfg.Headless,
	}

	// Containers on Linux usually lack the sandbox prerequisites.
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	// Custom arguments from config, "--name=value" or "--name". They win over
	// everything above.
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// AllocatorOptions translates browser config into chromedp exec allocator
// options for the given GOOS.
func AllocatorOptions(cfg config.BrowserConfig, goos string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range Flags(cfg, goos) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// New launches the browser, opens a tab and checks that it responds.
// The session lives until Close or until ctx is cancelled.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:    uuid.NewString(),
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.Named("session").With(zap.String("session_id", s.id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg, runtime.GOOS)...)
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Debugf),
	)
	s.allocCancel = allocCancel
	s.tab = tab
	s.tabCancel = tabCancel

	// The first Run starts the browser process.
	probeCtx, cancel := context.WithTimeout(tab, startupTimeout)
	defer cancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	if tasks := Emulation(cfg); len(tasks) > 0 {
		emuCtx, cancel := context.WithTimeout(tab, startupTimeout)
		defer cancel()
		if err := chromedp.Run(emuCtx, tasks); err != nil {
			s.Close()
			return nil, fmt.Errorf("apply emulation overrides: %w", err)
		}
	}

	s.logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Context returns the tab context. chromedp actions must run beneath it.
func (s *Session) Context() context.Context { return s.tab }

// RunActions runs actions in the tab, bounded by ctx as well.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	return NewTabExecutor(s.tab).RunActions(ctx, actions...)
}

// Navigate loads url in the tab and waits for the load event, bounded by the
// configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	_, err := waiter.Race(ctx, s.clock, s.cfg.NavigationTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.RunActions(ctx, chromedp.Navigate(url))
	})
	if errors.Is(err, waiter.ErrTimeout) {
		return fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, url, s.cfg.NavigationTimeout)
	}
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Close closes the tab and terminates the browser. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		// Graceful close first so Chrome flushes its profile.
		if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Graceful tab close failed.", zap.Error(err))
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Info("Browser session closed.")
	})
}
