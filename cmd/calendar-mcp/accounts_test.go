package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/service"
	"github.com/rockfordlhotka/calendar-mcp/internal/theme"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		acct service.AccountSummary
		want string
	}{
		{"disabled", service.AccountSummary{Enabled: false}, theme.HealthDisabled},
		{"never called", service.AccountSummary{Enabled: true}, theme.HealthUnknown},
		{"failing", service.AccountSummary{Enabled: true, Status: &model.AccountStatus{ConsecutiveFailures: 2}}, theme.HealthFailing},
		{"ok", service.AccountSummary{Enabled: true, Status: &model.AccountStatus{}}, theme.HealthOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, health(tt.acct))
		})
	}
}

func TestAccountRow(t *testing.T) {
	ok := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	bad := ok.Add(time.Hour)

	row := accountRow(service.AccountSummary{
		ID:           "work",
		DisplayName:  "Work",
		Provider:     "m365",
		ProviderKind: "organizational",
		Domains:      []string{"corp.com", "corp.io"},
		Enabled:      true,
		Priority:     3,
		Status: &model.AccountStatus{
			LastOperation:       "get_emails",
			LastSuccessAt:       &ok,
			LastFailureAt:       &bad,
			LastError:           "timeout: deadline exceeded",
			ConsecutiveFailures: 1,
		},
	})

	assert.Equal(t, "work", row[0])
	assert.Equal(t, "m365 (organizational)", row[2])
	assert.Equal(t, "corp.com, corp.io", row[3])
	assert.Equal(t, "3", row[4])
	assert.Equal(t, theme.HealthFailing, row[5])
	assert.Equal(t, "get_emails "+bad.Local().Format(time.DateTime), row[6])
	assert.Equal(t, "timeout: deadline exceeded", row[7])
}

func TestRenderAccounts(t *testing.T) {
	out := renderAccounts([]service.AccountSummary{
		{ID: "work", Provider: "m365", ProviderKind: "organizational", Enabled: true},
		{ID: "old", Provider: "imap", ProviderKind: "imap"},
	})

	assert.Contains(t, out, "work")
	assert.Contains(t, out, "old")
	assert.Contains(t, out, theme.HealthDisabled)
	assert.Contains(t, out, theme.HealthUnknown)
}

func TestLatest(t *testing.T) {
	a := time.Unix(100, 0)
	b := time.Unix(200, 0)

	assert.Nil(t, latest(nil, nil))
	assert.Equal(t, &a, latest(&a, nil))
	assert.Equal(t, &b, latest(nil, &b))
	assert.Equal(t, &b, latest(&a, &b))
}
