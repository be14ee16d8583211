package model

import (
	"maps"
	"slices"
	"strings"
)

// Account is one configured mailbox/calendar identity. Accounts are loaded
// from configuration and never mutated afterwards.
type Account struct {
	// ID is the unique identifier for this account. Lookups by ID are
	// case-insensitive.
	ID string `mapstructure:"id" yaml:"id" json:"id"`

	// DisplayName is the human-readable label for this account.
	DisplayName string `mapstructure:"display_name" yaml:"display_name" json:"displayName"`

	// Provider is the provider kind as written in configuration
	// (e.g., "m365", "outlook.com", "google"). See ParseProviderKind.
	Provider string `mapstructure:"provider" yaml:"provider" json:"provider"`

	// Domains lists the email domains this account is authoritative for.
	// Used by the routing policy; may be empty.
	Domains []string `mapstructure:"domains" yaml:"domains" json:"domains"`

	// Enabled controls whether this account takes part in fan-out and
	// automatic routing.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Priority breaks ties between accounts matching the same domain.
	// Higher wins.
	Priority int `mapstructure:"priority" yaml:"priority" json:"priority"`

	// ProviderConfig holds provider-specific settings
	// (e.g., tenant ID, client ID, IMAP host). Opaque to the core.
	ProviderConfig map[string]string `mapstructure:"provider_config" yaml:"provider_config" json:"-"`
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	a.Domains = slices.Clone(a.Domains)
	a.ProviderConfig = maps.Clone(a.ProviderConfig)
	return a
}

// HasDomain reports whether the account lists domain, ignoring case.
func (a Account) HasDomain(domain string) bool {
	domain = strings.TrimSpace(domain)
	for _, d := range a.Domains {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

// Kind parses the configured provider string.
func (a Account) Kind() (ProviderKind, bool) {
	return ParseProviderKind(a.Provider)
}

// Setting returns a provider config value, or fallback when unset.
func (a Account) Setting(key, fallback string) string {
	if v, ok := a.ProviderConfig[key]; ok && v != "" {
		return v
	}
	return fallback
}
