// File: internal/browser/extapi/extapi.go
// Package extapi detects which WebExtension API namespace a page exposes.
package extapi

import (
	"context"
	"fmt"
)

// API identifies the extension namespace available to content scripts.
type API int

const (
	// APIChrome is the chrome.* namespace (Chromium family).
	APIChrome API = iota
	// APIBrowser is the promise based browser.* namespace (Firefox, Safari).
	APIBrowser
)

func (a API) String() string {
	switch a {
	case APIBrowser:
		return "browser"
	default:
		return "chrome"
	}
}

// probeExpression is true when the browser.* namespace exists.
const probeExpression = `typeof browser !== "undefined"`

// Evaluator runs a JavaScript expression in the page and decodes the result into out.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Detect evaluates the namespace probe in the page.
func Detect(ctx context.Context, ev Evaluator) (API, error) {
	var present bool
	if err := ev.Evaluate(ctx, probeExpression, &present); err != nil {
		return APIChrome, fmt.Errorf("extapi: evaluate probe: %w", err)
	}
	if present {
		return APIBrowser, nil
	}
	return APIChrome, nil
}

// IsFirefoxOrSafari reports whether the page exposes the browser.* namespace.
// Evaluation failures count as false.
func IsFirefoxOrSafari(ctx context.Context, ev Evaluator) bool {
	api, err := Detect(ctx, ev)
	return err == nil && api == APIBrowser
}
