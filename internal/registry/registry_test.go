package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

func sample() []model.Account {
	return []model.Account{
		{ID: "Work", Provider: "m365", Domains: []string{"contoso.com"}, Enabled: true},
		{ID: "home", Provider: "outlook.com", Enabled: true},
		{ID: "side", Provider: "gmail", Domains: []string{"contoso.com"}, Enabled: false},
		{ID: "legacy", Provider: "exchange2003", Enabled: true},
	}
}

func TestNew_RejectsDuplicateIgnoringCase(t *testing.T) {
	_, err := New([]model.Account{{ID: "a"}, {ID: "A"}})
	require.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestNew_RejectsEmptyID(t *testing.T) {
	_, err := New([]model.Account{{ID: "  "}})
	require.Error(t, err)
}

func TestRegistry_Lookups(t *testing.T) {
	r, err := New(sample())
	require.NoError(t, err)

	t.Run("all keeps order", func(t *testing.T) {
		ids := accountIDs(r.All())
		assert.Equal(t, []string{"Work", "home", "side", "legacy"}, ids)
	})

	t.Run("enabled", func(t *testing.T) {
		assert.Equal(t, []string{"Work", "home", "legacy"}, accountIDs(r.Enabled()))
	})

	t.Run("by id ignores case", func(t *testing.T) {
		acct, ok := r.ByID("WORK")
		require.True(t, ok)
		assert.Equal(t, "Work", acct.ID)

		_, ok = r.ByID("nobody")
		assert.False(t, ok)
	})

	t.Run("by provider uses synonyms", func(t *testing.T) {
		assert.Equal(t, []string{"side"}, accountIDs(r.ByProvider(model.ProviderWorkspace)))
		assert.Equal(t, []string{"home"}, accountIDs(r.ByProvider(model.ProviderPersonal)))
	})

	t.Run("by domain", func(t *testing.T) {
		assert.Equal(t, []string{"Work", "side"}, accountIDs(r.ByDomain("CONTOSO.COM")))
		assert.Empty(t, r.ByDomain("example.com"))
	})
}

func TestRegistry_IsolatedFromCallers(t *testing.T) {
	in := sample()
	r, err := New(in)
	require.NoError(t, err)

	in[0].Domains[0] = "mutated.com"
	got := r.All()
	got[0].Domains[0] = "mutated-again.com"

	acct, _ := r.ByID("work")
	assert.Equal(t, []string{"contoso.com"}, acct.Domains)
}

func TestHolder_Replace(t *testing.T) {
	first, err := New(sample()[:1])
	require.NoError(t, err)
	second, err := New(sample())
	require.NoError(t, err)

	h := NewHolder(first)
	assert.Equal(t, 1, h.Load().Len())

	h.Replace(second)
	assert.Equal(t, 4, h.Load().Len())
}

func accountIDs(accts []model.Account) []string {
	ids := make([]string, len(accts))
	for i, a := range accts {
		ids[i] = a.ID
	}
	return ids
}
