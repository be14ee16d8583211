// Package registry holds the configured accounts and answers lookups over
// them. A Registry is immutable once built; reloading configuration builds a
// new Registry and swaps it in through a Holder.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// ErrDuplicateAccount is returned by New when two accounts share an ID
// ignoring case.
var ErrDuplicateAccount = errors.New("duplicate account id")

// Registry is an ordered, read-only set of accounts.
type Registry struct {
	accounts []model.Account
	byID     map[string]int
}

// New builds a registry from accounts in the given order. Accounts are
// copied, so later changes to the input do not leak in.
func New(accounts []model.Account) (*Registry, error) {
	r := &Registry{
		accounts: make([]model.Account, 0, len(accounts)),
		byID:     make(map[string]int, len(accounts)),
	}
	for i, acct := range accounts {
		id := strings.TrimSpace(acct.ID)
		if id == "" {
			return nil, fmt.Errorf("account #%d: empty id", i)
		}
		key := strings.ToLower(id)
		if _, dup := r.byID[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, id)
		}
		acct = acct.Clone()
		acct.ID = id
		r.byID[key] = len(r.accounts)
		r.accounts = append(r.accounts, acct)
	}
	return r, nil
}

// All returns every account in registration order.
func (r *Registry) All() []model.Account {
	return r.filter(func(model.Account) bool { return true })
}

// Enabled returns the enabled accounts in registration order.
func (r *Registry) Enabled() []model.Account {
	return r.filter(func(a model.Account) bool { return a.Enabled })
}

// ByID looks an account up ignoring case.
func (r *Registry) ByID(id string) (model.Account, bool) {
	i, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return model.Account{}, false
	}
	return r.accounts[i].Clone(), true
}

// ByProvider returns accounts whose configured provider resolves to kind.
// Accounts with unrecognised provider names never match.
func (r *Registry) ByProvider(kind model.ProviderKind) []model.Account {
	return r.filter(func(a model.Account) bool {
		k, ok := a.Kind()
		return ok && k == kind
	})
}

// ByDomain returns accounts listing domain, ignoring case.
func (r *Registry) ByDomain(domain string) []model.Account {
	return r.filter(func(a model.Account) bool { return a.HasDomain(domain) })
}

// Len returns the number of accounts.
func (r *Registry) Len() int { return len(r.accounts) }

func (r *Registry) filter(keep func(model.Account) bool) []model.Account {
	out := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Holder publishes the current registry to concurrent readers. Replace
// swaps the whole account set at once; a reader sees either the old or the
// new registry, never a mix.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a holder serving r.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.current.Store(r)
	return h
}

// Load returns the registry in effect.
func (h *Holder) Load() *Registry { return h.current.Load() }

// Replace installs r for all subsequent Load calls.
func (h *Holder) Replace(r *Registry) { h.current.Store(r) }
