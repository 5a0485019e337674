package rule

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	mixerrs "feedmixer/internal/errors"
)

// Func maps the current value of a field to its replacement.
// It must not depend on state other than its argument.
type Func func(v any) (any, error)

// Registry holds named custom transformation functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry preloaded with the built-in functions:
// lowercase, uppercase, trim and strip_html.
func NewRegistry() *Registry {
	strict := bluemonday.StrictPolicy()

	r := &Registry{funcs: make(map[string]Func)}
	r.funcs["lowercase"] = textFunc(strings.ToLower)
	r.funcs["uppercase"] = textFunc(strings.ToUpper)
	r.funcs["trim"] = textFunc(strings.TrimSpace)
	r.funcs["strip_html"] = textFunc(func(s string) string {
		return strings.TrimSpace(strict.Sanitize(s))
	})
	return r
}

// Register adds fn under name. Names are unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return mixerrs.E("custom function needs a name and a body", mixerrs.KindValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[name]; ok {
		return mixerrs.E(fmt.Sprintf("custom function %q already registered", name), mixerrs.KindConflict)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// textFunc lifts a string mapping to text fields and to lists of strings.
func textFunc(f func(string) string) Func {
	return func(v any) (any, error) {
		switch v := v.(type) {
		case string:
			return f(v), nil
		case []string:
			out := make([]string, len(v))
			for i, s := range v {
				out[i] = f(s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("expected text, got %T", v)
	}
}
