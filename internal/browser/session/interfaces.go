// File: internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against a tab. Components that issue
// CDP commands depend on it instead of on Session so they can be driven by a
// fake in tests.
type ActionExecutor interface {
	// RunActions runs actions beneath the tab, bounded by ctx as well.
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}

// TabExecutor is the ActionExecutor for a bare chromedp tab context.
type TabExecutor struct {
	tab context.Context
}

var (
	_ ActionExecutor = TabExecutor{}
	_ ActionExecutor = (*Session)(nil)
)

// NewTabExecutor returns an executor running actions beneath tab.
func NewTabExecutor(tab context.Context) TabExecutor {
	return TabExecutor{tab: tab}
}

// RunActions implements ActionExecutor.
func (e TabExecutor) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(e.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
