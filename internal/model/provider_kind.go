package model

import "strings"

// ProviderKind identifies which family of backend serves an account.
type ProviderKind string

const (
	// ProviderOrganizational is a Microsoft 365 work or school tenant.
	ProviderOrganizational ProviderKind = "organizational"
	// ProviderPersonal is a consumer Microsoft account (Outlook.com, Hotmail).
	ProviderPersonal ProviderKind = "personal"
	// ProviderWorkspace is a Google Workspace or Gmail account.
	ProviderWorkspace ProviderKind = "workspace"
	// ProviderIMAP is a plain IMAP/SMTP mailbox without calendars.
	ProviderIMAP ProviderKind = "imap"
)

var providerSynonyms = map[string]ProviderKind{
	"organizational":   ProviderOrganizational,
	"microsoft365":     ProviderOrganizational,
	"microsoft 365":    ProviderOrganizational,
	"m365":             ProviderOrganizational,
	"office365":        ProviderOrganizational,
	"personal":         ProviderPersonal,
	"outlook.com":      ProviderPersonal,
	"outlook":          ProviderPersonal,
	"hotmail":          ProviderPersonal,
	"live":             ProviderPersonal,
	"workspace":        ProviderWorkspace,
	"google":           ProviderWorkspace,
	"gmail":            ProviderWorkspace,
	"google workspace": ProviderWorkspace,
	"imap":             ProviderIMAP,
	"email":            ProviderIMAP,
}

// ParseProviderKind maps a configured provider name to its kind. Matching
// ignores case and surrounding whitespace. Unknown names report false.
func ParseProviderKind(s string) (ProviderKind, bool) {
	k, ok := providerSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// String returns the canonical name of the kind.
func (k ProviderKind) String() string { return string(k) }
