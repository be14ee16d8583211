package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

type noAuth struct{}

func (noAuth) GetCredential(context.Context, model.Account, []string) (*provider.Credential, error) {
	return nil, nil
}

var acct = model.Account{
	ID:       "fastmail",
	Provider: "imap",
	ProviderConfig: map[string]string{
		"address":   "me@fastmail.com",
		"imap_host": "imap.fastmail.com",
	},
}

func TestSettingsFor(t *testing.T) {
	s, err := SettingsFor(acct)
	require.NoError(t, err)

	assert.Equal(t, "me@fastmail.com", s.Username, "username defaults to address")
	assert.Equal(t, "993", s.IMAPPort)
	assert.True(t, s.IMAPTLS)
	assert.Equal(t, "imap.fastmail.com", s.SMTPHost, "smtp host defaults to imap host")
	assert.Equal(t, "465", s.SMTPPort)

	_, err = SettingsFor(model.Account{ID: "x"})
	assert.Error(t, err)
}

func TestSearchCriteria(t *testing.T) {
	from := time.Date(2026, 4, 3, 15, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 9, 8, 0, 0, 0, time.UTC)

	c := searchCriteria(provider.SearchQuery{Query: "invoice", From: &from, To: &to})
	assert.Equal(t, []string{"invoice"}, c.Text)
	assert.Equal(t, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC), c.Since)
	assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), c.Before)

	assert.Equal(t, []imap.Flag{imap.FlagSeen}, listCriteria(true).NotFlag)
	assert.Empty(t, listCriteria(false).NotFlag)
}

func TestMissingCredentialRefusesWithoutDialing(t *testing.T) {
	b := New(noAuth{}, zap.NewNop())
	ctx := context.Background()

	msgs, err := b.GetEmails(ctx, acct, 10, false)
	assert.True(t, provider.IsCredentialError(err))
	assert.Empty(t, msgs)

	_, err = b.SendEmail(ctx, acct, model.OutgoingEmail{To: []string{"a@b.c"}})
	assert.True(t, provider.IsCredentialError(err))
}

func TestCalendarOperations(t *testing.T) {
	b := New(noAuth{}, zap.NewNop())
	ctx := context.Background()

	cals, err := b.ListCalendars(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, cals)

	_, err = b.CreateEvent(ctx, acct, model.NewEvent{Subject: "x"})
	assert.ErrorIs(t, err, provider.ErrUnsupported)
	assert.ErrorIs(t, b.DeleteEvent(ctx, acct, "", "1"), provider.ErrUnsupported)
}

func TestParseUID(t *testing.T) {
	uid, err := parseUID("42")
	require.NoError(t, err)
	assert.Equal(t, imap.UID(42), uid)

	_, err = parseUID("abc")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []model.EmailMessage{
		{ID: "1", ReceivedDateTime: base},
		{ID: "3", ReceivedDateTime: base.Add(2 * time.Hour)},
		{ID: "2", ReceivedDateTime: base.Add(time.Hour)},
	}
	sortNewestFirst(msgs)
	assert.Equal(t, "3", msgs[0].ID)
	assert.Equal(t, "1", msgs[2].ID)
}
