package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

func TestAccountInput(t *testing.T) {
	tests := []struct {
		name    string
		in      accountInput
		want    model.Account
		wantErr string
	}{
		{
			name: "organizational",
			in: accountInput{
				ID: " work ", Provider: "m365", Domains: "Corp.com, corp.io,,corp.com", Priority: "3",
				TenantID: "tenant", ClientID: "client",
			},
			want: model.Account{
				ID: "work", DisplayName: "work", Provider: "m365",
				Domains: []string{"corp.com", "corp.io"}, Enabled: true, Priority: 3,
				ProviderConfig: map[string]string{"tenant_id": "tenant", "client_id": "client"},
			},
		},
		{
			name: "imap without provider settings for other kinds",
			in: accountInput{
				ID: "box", DisplayName: "Mailbox", Provider: "imap", Disabled: true,
				Address: "me@box.net", IMAPHost: "imap.box.net", SMTPHost: "smtp.box.net", TenantID: "ignored",
			},
			want: model.Account{
				ID: "box", DisplayName: "Mailbox", Provider: "imap", Domains: []string{},
				ProviderConfig: map[string]string{"address": "me@box.net", "imap_host": "imap.box.net", "smtp_host": "smtp.box.net"},
			},
		},
		{
			name: "google without settings",
			in:   accountInput{ID: "g", Provider: "gmail"},
			want: model.Account{ID: "g", DisplayName: "g", Provider: "gmail", Domains: []string{}, Enabled: true},
		},
		{name: "missing id", in: accountInput{Provider: "m365"}, wantErr: "account id is required"},
		{name: "unknown provider", in: accountInput{ID: "x", Provider: "aol"}, wantErr: `unknown provider "aol"`},
		{name: "bad priority", in: accountInput{ID: "x", Provider: "m365", Priority: "high"}, wantErr: "priority must be an integer"},
		{name: "imap without hosts", in: accountInput{ID: "x", Provider: "imap", IMAPHost: "imap.x"}, wantErr: "SMTP host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.account()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddAccount_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	work, err := accountInput{ID: "work", Provider: "m365", Domains: "corp.com", Priority: "2", TenantID: "t1"}.account()
	require.NoError(t, err)
	require.NoError(t, addAccount(path, work))

	box, err := accountInput{ID: "box", Provider: "imap", IMAPHost: "imap.box.net", SMTPHost: "smtp.box.net", Disabled: true}.account()
	require.NoError(t, err)
	require.NoError(t, addAccount(path, box))

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 2)

	got := cfg.Accounts[0]
	assert.Equal(t, "work", got.ID)
	assert.Equal(t, "m365", got.Provider)
	assert.Equal(t, []string{"corp.com"}, got.Domains)
	assert.Equal(t, 2, got.Priority)
	assert.True(t, got.Enabled)
	assert.Equal(t, "t1", got.ProviderConfig["tenant_id"])

	got = cfg.Accounts[1]
	assert.Equal(t, "box", got.ID)
	assert.False(t, got.Enabled)
	assert.Equal(t, "smtp.box.net", got.ProviderConfig["smtp_host"])
}

func TestAddAccount_RejectsDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, addAccount(path, model.Account{ID: "work", Provider: "m365", Enabled: true}))

	err := addAccount(path, model.Account{ID: "WORK", Provider: "google", Enabled: true})
	require.Error(t, err)

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "m365", cfg.Accounts[0].Provider)
}

func TestAccountsAddCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cmd := newAccountsCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"add", "--id", "home", "--provider", "outlook.com", "--domains", "example.com"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "added home")

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "home", cfg.Accounts[0].ID)
	assert.Equal(t, []string{"example.com"}, cfg.Accounts[0].Domains)
}
