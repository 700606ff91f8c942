// Package engines contains the built-in secret engines and the registry that
// maps engine ids to engine instances.
package engines

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/systmms/secretref/pkg/secrets"
)

// Engine ids end up in secret file names, so they are restricted to a
// filename-safe alphabet.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type entry struct {
	engine     secrets.Engine
	engineType string
}

// Registry is the immutable engine lookup handed to the resolver.
//
// It is populated by NewRegistry or Factories.Build and never modified
// afterwards, so concurrent GetEngine calls need no locking.
type Registry struct {
	entries map[string]entry
}

var _ secrets.Registry = (*Registry)(nil)

// NewRegistry creates a registry holding the given engines.
func NewRegistry(list ...secrets.Engine) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(list))}
	for _, e := range list {
		if err := r.add(e, ""); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(e secrets.Engine, engineType string) error {
	if e == nil {
		return fmt.Errorf("cannot register a nil engine")
	}
	id := e.Identifier()
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid engine identifier %q: must match %s", id, validID.String())
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("engine %q is registered more than once", id)
	}
	r.entries[id] = entry{engine: e, engineType: engineType}
	return nil
}

// GetEngine returns the engine registered under id.
func (r *Registry) GetEngine(id string) (secrets.Engine, bool) {
	ent, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return ent.engine, true
}

// Type returns the factory type the engine was built from, or "" for
// engines registered directly.
func (r *Registry) Type(id string) string {
	return r.entries[id].engineType
}

// Identifiers returns the registered ids, sorted.
func (r *Registry) Identifiers() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	return len(r.entries)
}
