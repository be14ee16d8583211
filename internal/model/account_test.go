package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderKind
		ok   bool
	}{
		{"m365", ProviderOrganizational, true},
		{"Microsoft365", ProviderOrganizational, true},
		{"OUTLOOK.COM", ProviderPersonal, true},
		{"hotmail", ProviderPersonal, true},
		{" Google Workspace ", ProviderWorkspace, true},
		{"gmail", ProviderWorkspace, true},
		{"imap", ProviderIMAP, true},
		{"exchange2003", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProviderKind(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccount_HasDomain(t *testing.T) {
	acct := Account{Domains: []string{"Contoso.com", " fabrikam.com"}}

	assert.True(t, acct.HasDomain("contoso.com"))
	assert.True(t, acct.HasDomain("FABRIKAM.COM"))
	assert.False(t, acct.HasDomain("example.com"))
}

func TestAccount_CloneIsDeep(t *testing.T) {
	orig := Account{Domains: []string{"a.com"}, ProviderConfig: map[string]string{"k": "v"}}
	cp := orig.Clone()
	cp.Domains[0] = "b.com"
	cp.ProviderConfig["k"] = "changed"

	assert.Equal(t, "a.com", orig.Domains[0])
	assert.Equal(t, "v", orig.ProviderConfig["k"])
}
