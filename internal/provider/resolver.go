package provider

import (
	"fmt"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// Resolver maps configured provider names to backends through an explicit
// table keyed by kind. It is safe for concurrent use once built.
type Resolver struct {
	backends map[model.ProviderKind]Backend
}

// NewResolver registers each backend under its Kind. A later backend for
// the same kind replaces an earlier one.
func NewResolver(backends ...Backend) *Resolver {
	r := &Resolver{backends: make(map[model.ProviderKind]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

// Resolve returns the backend for a provider name such as "m365" or
// "Gmail". Unknown names, and known names without a registered backend,
// yield ErrUnknownProvider.
func (r *Resolver) Resolve(name string) (Backend, error) {
	kind, ok := model.ParseProviderKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no backend registered for %q", ErrUnknownProvider, kind)
	}
	return b, nil
}

// ForAccount resolves the backend serving acct.
func (r *Resolver) ForAccount(acct model.Account) (Backend, error) {
	b, err := r.Resolve(acct.Provider)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", acct.ID, err)
	}
	return b, nil
}
