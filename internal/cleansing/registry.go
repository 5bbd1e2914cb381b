// Package cleansing holds the catalog of named value-level rules applied
// by validators. Rules are registered at startup and never modified; each
// rule is a pure function and every standard rule is idempotent.
package cleansing

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// Rule transforms a single cell value. Rules must be pure and
// side-effect-free.
type Rule func(string) string

// Registry is a named catalog of cleansing rules.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates a registry pre-loaded with the standard rules.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	for name, fn := range builtins {
		r.rules[name] = fn
	}
	return r
}

// Register adds a rule under the given name. Re-registering an existing
// name is an error; rules are fixed after startup.
func (r *Registry) Register(name string, fn Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[name]; ok {
		return eris.Errorf("cleansing: rule %q already registered", name)
	}
	r.rules[name] = fn
	return nil
}

// Apply runs the named rules left-to-right over the value. Unknown rule
// names fail immediately.
func (r *Registry) Apply(value string, ruleNames []string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range ruleNames {
		fn, ok := r.rules[name]
		if !ok {
			return "", eris.Errorf("cleansing: unknown rule %q", name)
		}
		value = fn(value)
	}
	return value, nil
}

// Names returns the sorted list of registered rule names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for n := range r.rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DomainConfig maps field names to the ordered rule lists applied to them.
type DomainConfig map[string][]string

// Validate checks that every referenced rule exists in the registry.
func (r *Registry) Validate(cfg DomainConfig) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for field, ruleNames := range cfg {
		for _, name := range ruleNames {
			if _, ok := r.rules[name]; !ok {
				return eris.Errorf("cleansing: field %q references unknown rule %q", field, name)
			}
		}
	}
	return nil
}
