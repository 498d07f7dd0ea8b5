// File: internal/browser/session/context_utils.go
package session

import "context"

// CombineContext derives a context from primary that is also canceled when
// secondary is. Values and the deadline come from primary only. chromedp
// needs this shape: primary carries the tab, secondary the caller's deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
