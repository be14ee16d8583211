package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/registry"
)

func mustRegistry(t *testing.T, accts ...model.Account) *registry.Registry {
	t.Helper()
	r, err := registry.New(accts)
	require.NoError(t, err)
	return r
}

func TestSelect(t *testing.T) {
	work := model.Account{ID: "work", Provider: "m365", Domains: []string{"corp.com"}, Enabled: true}
	personal := model.Account{ID: "personal", Provider: "outlook", Domains: []string{"example.com"}, Enabled: true}
	disabled := model.Account{ID: "disabled-acct", Provider: "gmail", Domains: []string{"other.org"}, Enabled: false}
	lowA := model.Account{ID: "low-a", Provider: "gmail", Domains: []string{"shared.io"}, Enabled: true, Priority: 1}
	high := model.Account{ID: "high", Provider: "m365", Domains: []string{"shared.io"}, Enabled: true, Priority: 5}
	highLater := model.Account{ID: "high-later", Provider: "m365", Domains: []string{"shared.io"}, Enabled: true, Priority: 5}
	tieA := model.Account{ID: "tie-a", Provider: "m365", Domains: []string{"tie.net"}, Enabled: true}
	tieB := model.Account{ID: "tie-b", Provider: "m365", Domains: []string{"tie.net"}, Enabled: true}
	offHigh := model.Account{ID: "off-high", Provider: "m365", Domains: []string{"shared.io"}, Enabled: false, Priority: 9}

	tests := []struct {
		name      string
		accounts  []model.Account
		recipient string
		want      string
		reason    Reason
	}{
		{
			name:      "single domain match",
			accounts:  []model.Account{personal, work, disabled},
			recipient: "x@corp.com",
			want:      "work",
			reason:    ReasonDomain,
		},
		{
			name:      "domain match ignores case and display name",
			accounts:  []model.Account{personal, work},
			recipient: "Boss <Boss@CORP.com>",
			want:      "work",
			reason:    ReasonDomain,
		},
		{
			name:      "highest priority wins",
			accounts:  []model.Account{lowA, high, highLater},
			recipient: "a@shared.io",
			want:      "high",
			reason:    ReasonPriority,
		},
		{
			name:      "equal priority goes to first registered",
			accounts:  []model.Account{personal, tieA, tieB},
			recipient: "a@tie.net",
			want:      "tie-a",
			reason:    ReasonPriority,
		},
		{
			name:      "no match falls back to first enabled",
			accounts:  []model.Account{disabled, personal, work},
			recipient: "someone@elsewhere.com",
			want:      "personal",
			reason:    ReasonFallback,
		},
		{
			name:      "disabled domain owner is skipped",
			accounts:  []model.Account{work, disabled},
			recipient: "y@other.org",
			want:      "work",
			reason:    ReasonFallback,
		},
		{
			name:      "disabled owner of a shared domain does not count",
			accounts:  []model.Account{offHigh, personal, lowA},
			recipient: "a@shared.io",
			want:      "low-a",
			reason:    ReasonDomain,
		},
		{
			name:      "recipient without domain falls back",
			accounts:  []model.Account{work},
			recipient: "not-an-address",
			want:      "work",
			reason:    ReasonFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mustRegistry(t, tt.accounts...)
			got, reason, err := Select(reg, tt.recipient)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestSelect_NoEnabledAccount(t *testing.T) {
	reg := mustRegistry(t, model.Account{ID: "off", Provider: "m365", Domains: []string{"corp.com"}})

	_, _, err := Select(reg, "x@corp.com")
	assert.ErrorIs(t, err, ErrNoRoute)

	_, _, err = Select(mustRegistry(t), "x@corp.com")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSelect_Deterministic(t *testing.T) {
	reg := mustRegistry(t,
		model.Account{ID: "a", Provider: "m365", Domains: []string{"d.com"}, Enabled: true, Priority: 2},
		model.Account{ID: "b", Provider: "m365", Domains: []string{"d.com"}, Enabled: true, Priority: 2},
	)
	for range 20 {
		got, _, err := Select(reg, "z@d.com")
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "corp.com", Domain("x@corp.com"))
	assert.Equal(t, "corp.com", Domain(" Ann Lee <ann@Corp.COM> "))
	assert.Equal(t, "b.org", Domain(`"a@b"@b.org`))
	assert.Equal(t, "", Domain("nobody"))
	assert.Equal(t, "", Domain(""))
}
