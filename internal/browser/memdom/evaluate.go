// File: internal/browser/memdom/evaluate.go
package memdom

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/thumbwatch/internal/browser/extapi"
)

// ErrUnsupportedExpression is returned for scripts the snapshot cannot run.
var ErrUnsupportedExpression = errors.New("memdom: unsupported expression")

var (
	typeofDefined = regexp.MustCompile(`^typeof\s+([A-Za-z_$][\w$]*)\s*!==?\s*["']undefined["']$`)
	identifier    = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

var _ extapi.Evaluator = (*Document)(nil)

// SetGlobal defines a window global visible to Evaluate.
func (d *Document) SetGlobal(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globals[name] = value
}

// DeleteGlobal removes a window global.
func (d *Document) DeleteGlobal(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.globals, name)
}

// Evaluate supports the two expression shapes a snapshot can answer:
// `typeof name !== "undefined"` and a bare global name. The result is
// round-tripped through JSON into out, like a by-value CDP result.
func (d *Document) Evaluate(_ context.Context, expression string, out any) error {
	expr := strings.TrimSuffix(strings.TrimSpace(expression), ";")

	var result any
	d.mu.RLock()
	if m := typeofDefined.FindStringSubmatch(expr); m != nil {
		_, defined := d.globals[m[1]]
		result = defined
	} else if identifier.MatchString(expr) {
		v, ok := d.globals[expr]
		if !ok {
			d.mu.RUnlock()
			return fmt.Errorf("memdom: ReferenceError: %s is not defined", expr)
		}
		result = v
	} else {
		d.mu.RUnlock()
		return fmt.Errorf("%w: %q", ErrUnsupportedExpression, expression)
	}
	d.mu.RUnlock()

	if out == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("memdom: encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("memdom: decode result: %w", err)
	}
	return nil
}
