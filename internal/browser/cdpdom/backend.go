// File: internal/browser/cdpdom/backend.go
package cdpdom

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/thumbwatch/internal/browser/session"
)

// backend is the set of CDP round trips a Page makes.
type backend interface {
	Install(ctx context.Context, binding, script string) error
	Document(ctx context.Context) (cdp.NodeID, error)
	QuerySelectorAll(ctx context.Context, root cdp.NodeID, selector string) ([]cdp.NodeID, error)
	QuerySelector(ctx context.Context, root cdp.NodeID, selector string) (cdp.NodeID, error)
	Attributes(ctx context.Context, id cdp.NodeID) ([]string, error)
	// Attached reports whether the document body contains the node.
	Attached(ctx context.Context, id cdp.NodeID) (bool, error)
	Evaluate(ctx context.Context, expression string, out any) error
}

// containsFunction runs with `this` bound to the resolved node.
const containsFunction = `function() { return document.body != null && document.body.contains(this); }`

// chromeBackend issues each round trip through an ActionExecutor.
type chromeBackend struct {
	exec session.ActionExecutor
}

var _ backend = chromeBackend{}

func (b chromeBackend) Install(ctx context.Context, binding, script string) error {
	return b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		if err := runtime.AddBinding(binding).Do(c); err != nil {
			return fmt.Errorf("add binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(c); err != nil {
			return fmt.Errorf("add script: %w", err)
		}
		_, exc, err := runtime.Evaluate(script).Do(c)
		if err != nil {
			return fmt.Errorf("evaluate script: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("evaluate script: %s", exc.Text)
		}
		return nil
	}))
}

func (b chromeBackend) Document(ctx context.Context) (cdp.NodeID, error) {
	var node *cdp.Node
	err := b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		node, err = dom.GetDocument().WithDepth(-1).Do(c)
		return err
	}))
	if err != nil {
		return 0, err
	}
	return node.NodeID, nil
}

func (b chromeBackend) QuerySelectorAll(ctx context.Context, root cdp.NodeID, selector string) ([]cdp.NodeID, error) {
	var ids []cdp.NodeID
	err := b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		ids, err = dom.QuerySelectorAll(root, selector).Do(c)
		return err
	}))
	return ids, err
}

func (b chromeBackend) QuerySelector(ctx context.Context, root cdp.NodeID, selector string) (cdp.NodeID, error) {
	var id cdp.NodeID
	err := b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		id, err = dom.QuerySelector(root, selector).Do(c)
		return err
	}))
	return id, err
}

func (b chromeBackend) Attributes(ctx context.Context, id cdp.NodeID) ([]string, error) {
	var attrs []string
	err := b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		attrs, err = dom.GetAttributes(id).Do(c)
		return err
	}))
	return attrs, err
}

func (b chromeBackend) Attached(ctx context.Context, id cdp.NodeID) (bool, error) {
	var attached bool
	err := b.exec.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(id).Do(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(c)
		}()

		res, exc, err := runtime.CallFunctionOn(containsFunction).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("contains: %s", exc.Text)
		}
		return json.Unmarshal([]byte(res.Value), &attached)
	}))
	return attached, err
}

func (b chromeBackend) Evaluate(ctx context.Context, expression string, out any) error {
	return b.exec.RunActions(ctx, chromedp.Evaluate(expression, out))
}
