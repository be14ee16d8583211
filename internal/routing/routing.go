// Package routing picks the account an outbound action is sent from when
// the caller names none.
package routing

import (
	"errors"
	"strings"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
)

// ErrNoRoute is returned when no enabled account exists to route to.
var ErrNoRoute = errors.New("no enabled account to route to")

// Reason records how an account was chosen.
type Reason string

const (
	// ReasonExplicit means the caller named the account.
	ReasonExplicit Reason = "explicit"
	// ReasonDomain means exactly one account listed the recipient domain.
	ReasonDomain Reason = "domain"
	// ReasonPriority means several accounts listed the domain and the
	// highest priority won.
	ReasonPriority Reason = "priority"
	// ReasonFallback means no account listed the domain.
	ReasonFallback Reason = "fallback"
)

// Select chooses the account to act for recipient. Only enabled accounts
// are considered. Among domain matches the highest Priority wins and ties
// go to the earliest registered; without a match the first enabled
// account is used. The result depends only on reg and recipient.
func Select(reg *registry.Registry, recipient string) (model.Account, Reason, error) {
	enabled := reg.Enabled()
	if len(enabled) == 0 {
		return model.Account{}, "", ErrNoRoute
	}

	if domain := Domain(recipient); domain != "" {
		var (
			best    model.Account
			matches int
		)
		for _, acct := range reg.ByDomain(domain) {
			if !acct.Enabled {
				continue
			}
			// Strictly greater keeps the earliest of equal priorities.
			if matches == 0 || acct.Priority > best.Priority {
				best = acct
			}
			matches++
		}
		switch {
		case matches == 1:
			return best, ReasonDomain, nil
		case matches > 1:
			return best, ReasonPriority, nil
		}
	}

	return enabled[0], ReasonFallback, nil
}

// Domain extracts the lowercased domain from an address such as
// "Ann <ann@Corp.com>". It returns "" when there is none.
func Domain(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.LastIndex(address, "<"); i >= 0 {
		address = address[i+1:]
	}
	address = strings.TrimSuffix(address, ">")

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}
